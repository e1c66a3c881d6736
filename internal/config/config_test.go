package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/conduit/internal/testutil/testlog"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadClientConfigDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, `
url = "wss://chat.example.com/socket"
buffer_on_disconnect = false
protocols = ["chat.v1", " "]
headers = { Authorization = "Bearer token" }
codec = "TEXT"
handshake_timeout = "3s"
backoff_initial = "100ms"
backoff_max = "2s"
backoff_jitter = false
max_connect_attempts = 4
`)

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.URL != "wss://chat.example.com/socket" || cfg.BufferOnDisconnect {
		t.Fatalf("unexpected url/buffer: %+v", cfg)
	}
	if len(cfg.Protocols) != 1 || cfg.Protocols[0] != "chat.v1" {
		t.Fatalf("unexpected protocols: %v", cfg.Protocols)
	}
	if cfg.Headers["Authorization"] != "Bearer token" || cfg.Codec != "text" {
		t.Fatalf("unexpected headers/codec: %+v", cfg)
	}
	if cfg.Socket.HandshakeTimeout != 3*time.Second || cfg.Socket.MaxAttempts != 4 {
		t.Fatalf("unexpected socket config: %+v", cfg.Socket)
	}
	if cfg.Socket.Backoff.InitialDelay != 100*time.Millisecond || cfg.Socket.Backoff.MaxDelay != 2*time.Second || cfg.Socket.Backoff.Jitter {
		t.Fatalf("unexpected backoff: %+v", cfg.Socket.Backoff)
	}
	// Untouched keys keep their defaults.
	def := DefaultClientConfig()
	if cfg.Socket.WriteTimeout != def.Socket.WriteTimeout || cfg.Socket.Backoff.Multiplier != def.Socket.Backoff.Multiplier {
		t.Fatalf("expected defaults preserved: %+v", cfg.Socket)
	}
	if cfg.AdminAddr != def.AdminAddr {
		t.Fatalf("unexpected admin addr: %q", cfg.AdminAddr)
	}
}

func TestLoadClientConfigRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	cases := []string{
		`url = "http://example.com"`,
		`url = ""`,
		`codec = "xml"`,
		`handshake_timeout = "later"`,
		`max_connect_attempts = -1`,
	}
	for _, body := range cases {
		if _, err := LoadClientConfig(writeFile(t, body)); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig for %q, got %v", body, err)
		}
	}
	if _, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestLoadServerConfig(t *testing.T) {
	testlog.Start(t)
	cfg, err := LoadServerConfig(writeFile(t, `
addr = ":7000"
protocols = ["chat.v1"]
cors_origins = ["http://localhost:3000"]
auth_token = " secret "
`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Addr != ":7000" || cfg.Path != "/socket" || len(cfg.Protocols) != 1 || len(cfg.CorsOrigins) != 1 {
		t.Fatalf("unexpected server config: %+v", cfg)
	}
	if cfg.AuthToken != "secret" {
		t.Fatalf("unexpected auth token: %q", cfg.AuthToken)
	}
	if _, err := LoadServerConfig(writeFile(t, `path = "socket"`)); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestTemplatesRoundTripDefaults(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()

	clientPath := filepath.Join(dir, "client.toml")
	if err := WriteTemplate(clientPath, "client", false); err != nil {
		t.Fatalf("write client template: %v", err)
	}
	client, err := LoadClientConfig(clientPath)
	if err != nil {
		t.Fatalf("load rendered client template: %v", err)
	}
	def := DefaultClientConfig()
	if client.URL != def.URL || client.Socket.Backoff != def.Socket.Backoff || client.Socket.HandshakeTimeout != def.Socket.HandshakeTimeout {
		t.Fatalf("template drifted from defaults: %+v", client)
	}

	serverPath := filepath.Join(dir, "server.toml")
	if err := WriteTemplate(serverPath, "server", false); err != nil {
		t.Fatalf("write server template: %v", err)
	}
	server, err := LoadServerConfig(serverPath)
	if err != nil {
		t.Fatalf("load rendered server template: %v", err)
	}
	if server.Addr != DefaultServerConfig().Addr {
		t.Fatalf("unexpected server addr: %q", server.Addr)
	}

	if err := WriteTemplate(serverPath, "server", false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if _, err := Template("ghost"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
}

func TestConduitOptionsFromClientConfig(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultClientConfig()
	cfg.Headers = map[string]string{"Authorization": "Bearer t"}
	cfg.Codec = "text"
	stop := make(chan struct{})

	opts, err := ConduitOptions(cfg, stop)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if opts.URL != cfg.URL || !opts.BufferOnDisconnect || opts.Dialer == nil {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.SocketOptions["header"] == nil {
		t.Fatalf("expected header option")
	}
	payload, err := opts.Serializer("not json")
	if err != nil || string(payload) != "not json" {
		t.Fatalf("expected text serializer, payload=%q err=%v", payload, err)
	}

	cfg.Codec = "yaml"
	if _, err := ConduitOptions(cfg, stop); err == nil {
		t.Fatalf("expected codec error")
	}
}
