// Package config loads the TOML files of the conduit binaries.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/conduit/internal/codec"
	"github.com/danmuck/conduit/internal/socket"
)

var ErrInvalidConfig = errors.New("config: invalid")

// ClientConfig drives conduitctl.
type ClientConfig struct {
	URL                string
	BufferOnDisconnect bool
	Protocols          []string
	Headers            map[string]string
	Codec              string
	Socket             socket.Config
	AdminAddr          string
	CorsOrigins        []string
}

// ServerConfig drives echoserver.
type ServerConfig struct {
	Addr        string
	Path        string
	Protocols   []string
	AdminAddr   string
	CorsOrigins []string
	// AuthToken, when set, is required as a bearer token on upgrade.
	AuthToken string
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:                "ws://127.0.0.1:9400/socket",
		BufferOnDisconnect: true,
		Headers:            map[string]string{},
		Codec:              "json",
		Socket:             socket.DefaultConfig(),
		AdminAddr:          "127.0.0.1:9401",
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      "127.0.0.1:9400",
		Path:      "/socket",
		AdminAddr: "127.0.0.1:9402",
	}
}

type clientFile struct {
	URL                string            `toml:"url"`
	BufferOnDisconnect bool              `toml:"buffer_on_disconnect"`
	Protocols          []string          `toml:"protocols"`
	Binary             bool              `toml:"binary"`
	Headers            map[string]string `toml:"headers"`
	Codec              string            `toml:"codec"`
	HandshakeTimeout   string            `toml:"handshake_timeout"`
	WriteTimeout       string            `toml:"write_timeout"`
	ReadLimit          int64             `toml:"read_limit"`
	BackoffInitial     string            `toml:"backoff_initial"`
	BackoffMax         string            `toml:"backoff_max"`
	BackoffMultiplier  float64           `toml:"backoff_multiplier"`
	BackoffJitter      bool              `toml:"backoff_jitter"`
	MaxConnectAttempts int               `toml:"max_connect_attempts"`
	AdminAddr          string            `toml:"admin_addr"`
	CorsOrigins        []string          `toml:"cors_origins"`
}

type serverFile struct {
	Addr        string   `toml:"addr"`
	Path        string   `toml:"path"`
	Protocols   []string `toml:"protocols"`
	AdminAddr   string   `toml:"admin_addr"`
	CorsOrigins []string `toml:"cors_origins"`
	AuthToken   string   `toml:"auth_token"`
}

// LoadClientConfig applies the keys defined in path on top of
// DefaultClientConfig.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}

	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("buffer_on_disconnect") {
		cfg.BufferOnDisconnect = raw.BufferOnDisconnect
	}
	if meta.IsDefined("protocols") {
		cfg.Protocols = normalizeList(raw.Protocols)
	}
	if meta.IsDefined("binary") {
		cfg.Socket.Binary = raw.Binary
	}
	if meta.IsDefined("headers") {
		cfg.Headers = raw.Headers
	}
	if meta.IsDefined("codec") {
		cfg.Codec = strings.ToLower(strings.TrimSpace(raw.Codec))
	}
	if meta.IsDefined("handshake_timeout") {
		if cfg.Socket.HandshakeTimeout, err = parseDuration("handshake_timeout", raw.HandshakeTimeout); err != nil {
			return ClientConfig{}, err
		}
	}
	if meta.IsDefined("write_timeout") {
		if cfg.Socket.WriteTimeout, err = parseDuration("write_timeout", raw.WriteTimeout); err != nil {
			return ClientConfig{}, err
		}
	}
	if meta.IsDefined("read_limit") {
		cfg.Socket.ReadLimit = raw.ReadLimit
	}
	if meta.IsDefined("backoff_initial") {
		if cfg.Socket.Backoff.InitialDelay, err = parseDuration("backoff_initial", raw.BackoffInitial); err != nil {
			return ClientConfig{}, err
		}
	}
	if meta.IsDefined("backoff_max") {
		if cfg.Socket.Backoff.MaxDelay, err = parseDuration("backoff_max", raw.BackoffMax); err != nil {
			return ClientConfig{}, err
		}
	}
	if meta.IsDefined("backoff_multiplier") {
		cfg.Socket.Backoff.Multiplier = raw.BackoffMultiplier
	}
	if meta.IsDefined("backoff_jitter") {
		cfg.Socket.Backoff.Jitter = raw.BackoffJitter
	}
	if meta.IsDefined("max_connect_attempts") {
		cfg.Socket.MaxAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}

	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	var raw serverFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("load server config: %w", err)
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("path") {
		cfg.Path = strings.TrimSpace(raw.Path)
	}
	if meta.IsDefined("protocols") {
		cfg.Protocols = normalizeList(raw.Protocols)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("auth_token") {
		cfg.AuthToken = strings.TrimSpace(raw.AuthToken)
	}

	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	u, err := url.Parse(cfg.URL)
	if strings.TrimSpace(cfg.URL) == "" || err != nil {
		return fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: url scheme must be ws or wss, got %q", ErrInvalidConfig, u.Scheme)
	}
	if _, _, err := codec.ForName(cfg.Codec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Socket.MaxAttempts < 0 {
		return fmt.Errorf("%w: max_connect_attempts must be >= 0", ErrInvalidConfig)
	}
	if cfg.Socket.ReadLimit < 0 {
		return fmt.Errorf("%w: read_limit must be >= 0", ErrInvalidConfig)
	}
	return nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("%w: addr is required", ErrInvalidConfig)
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		return fmt.Errorf("%w: path must start with /", ErrInvalidConfig)
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, key, err)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
