package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Template renders the defaults of kind ("client" or "server") as TOML.
func Template(kind string) (string, error) {
	var doc any
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		doc = clientDocument(DefaultClientConfig())
	case "server":
		doc = serverDocument(DefaultServerConfig())
	default:
		return "", fmt.Errorf("%w: unknown config kind %q", ErrInvalidConfig, kind)
	}
	out, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("render %s template: %w", kind, err)
	}
	return string(out), nil
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

func clientDocument(cfg ClientConfig) clientFile {
	return clientFile{
		URL:                cfg.URL,
		BufferOnDisconnect: cfg.BufferOnDisconnect,
		Protocols:          nonNil(cfg.Protocols),
		Binary:             cfg.Socket.Binary,
		Headers:            cfg.Headers,
		Codec:              cfg.Codec,
		HandshakeTimeout:   cfg.Socket.HandshakeTimeout.String(),
		WriteTimeout:       cfg.Socket.WriteTimeout.String(),
		ReadLimit:          cfg.Socket.ReadLimit,
		BackoffInitial:     cfg.Socket.Backoff.InitialDelay.String(),
		BackoffMax:         cfg.Socket.Backoff.MaxDelay.String(),
		BackoffMultiplier:  cfg.Socket.Backoff.Multiplier,
		BackoffJitter:      cfg.Socket.Backoff.Jitter,
		MaxConnectAttempts: cfg.Socket.MaxAttempts,
		AdminAddr:          cfg.AdminAddr,
		CorsOrigins:        nonNil(cfg.CorsOrigins),
	}
}

func serverDocument(cfg ServerConfig) serverFile {
	return serverFile{
		Addr:        cfg.Addr,
		Path:        cfg.Path,
		Protocols:   nonNil(cfg.Protocols),
		AdminAddr:   cfg.AdminAddr,
		CorsOrigins: nonNil(cfg.CorsOrigins),
		AuthToken:   cfg.AuthToken,
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
