package socket

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danmuck/conduit/internal/conn"
	"github.com/danmuck/conduit/internal/testutil/testlog"
)

func TestWithDefaultsFillsZeroFields(t *testing.T) {
	testlog.Start(t)
	cfg := Config{MaxAttempts: 3}.WithDefaults()
	def := DefaultConfig()
	if cfg.HandshakeTimeout != def.HandshakeTimeout || cfg.WriteTimeout != def.WriteTimeout {
		t.Fatalf("expected default timeouts, got %+v", cfg)
	}
	if cfg.Backoff != def.Backoff || cfg.Header == nil || cfg.MaxAttempts != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestWithOptionsAppliesKnownKeys(t *testing.T) {
	testlog.Start(t)
	base := DefaultConfig()
	base.Header.Set("X-Base", "1")

	cfg, err := base.WithOptions(conn.Options{
		"header":            map[string]any{"Authorization": "Bearer t"},
		"handshake_timeout": "2s",
		"write_timeout":     time.Second,
		"read_limit":        4096,
		"binary":            true,
		"unknown":           "ignored",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Header.Get("Authorization") != "Bearer t" || cfg.Header.Get("X-Base") != "1" {
		t.Fatalf("unexpected headers: %v", cfg.Header)
	}
	if cfg.HandshakeTimeout != 2*time.Second || cfg.WriteTimeout != time.Second {
		t.Fatalf("unexpected timeouts: %+v", cfg)
	}
	if cfg.ReadLimit != 4096 || !cfg.Binary {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
	if base.Header.Get("Authorization") != "" {
		t.Fatalf("options must not mutate the base header")
	}
}

func TestWithOptionsRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	cases := []conn.Options{
		{"binary": "yes"},
		{"handshake_timeout": "soon"},
		{"read_limit": "big"},
		{"header": "Authorization: x"},
		{"header": map[string]any{"X-Num": 1}},
	}
	for _, opts := range cases {
		if _, err := DefaultConfig().WithOptions(opts); !errors.Is(err, ErrInvalidOptions) {
			t.Fatalf("expected ErrInvalidOptions for %v, got %v", opts, err)
		}
	}

	cfg, err := DefaultConfig().WithOptions(conn.Options{"header": http.Header{"X-Multi": {"a", "b"}}})
	if err != nil || len(cfg.Header.Values("X-Multi")) != 2 {
		t.Fatalf("expected multi-value header, err=%v header=%v", err, cfg.Header)
	}
}
