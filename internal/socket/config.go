package socket

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/conduit/internal/conn"
)

var ErrInvalidOptions = errors.New("socket: invalid socket options")

// Option keys understood in conn.Options.
const (
	OptionHeader           = "header"
	OptionHandshakeTimeout = "handshake_timeout"
	OptionWriteTimeout     = "write_timeout"
	OptionReadLimit        = "read_limit"
	OptionBinary           = "binary"
)

// Config defines dialing and reconnect defaults for the websocket factory.
type Config struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// ReadLimit caps one inbound message in bytes; 0 leaves it unlimited.
	ReadLimit int64
	// Binary writes binary frames instead of text frames.
	Binary  bool
	Header  http.Header
	Backoff BackoffConfig
	// MaxAttempts bounds consecutive failed dials; 0 retries forever.
	MaxAttempts int
}

func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		Header:           http.Header{},
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Header == nil {
		c.Header = http.Header{}
	}
	if c.Backoff.InitialDelay <= 0 && c.Backoff.MaxDelay <= 0 && c.Backoff.Multiplier == 0 {
		c.Backoff = def.Backoff
	}
	return c
}

// WithOptions returns a copy of c with the opaque socket options applied.
func (c Config) WithOptions(opts conn.Options) (Config, error) {
	c.Header = c.Header.Clone()
	if c.Header == nil {
		c.Header = http.Header{}
	}
	for key, raw := range opts {
		switch strings.ToLower(strings.TrimSpace(key)) {
		case OptionHeader:
			if err := mergeHeader(c.Header, raw); err != nil {
				return Config{}, err
			}
		case OptionHandshakeTimeout:
			d, err := parseDuration(key, raw)
			if err != nil {
				return Config{}, err
			}
			c.HandshakeTimeout = d
		case OptionWriteTimeout:
			d, err := parseDuration(key, raw)
			if err != nil {
				return Config{}, err
			}
			c.WriteTimeout = d
		case OptionReadLimit:
			n, err := parseInt(key, raw)
			if err != nil {
				return Config{}, err
			}
			c.ReadLimit = n
		case OptionBinary:
			v, ok := raw.(bool)
			if !ok {
				return Config{}, fmt.Errorf("%w: %s must be a bool", ErrInvalidOptions, key)
			}
			c.Binary = v
		}
	}
	return c, nil
}

func mergeHeader(dst http.Header, raw any) error {
	switch v := raw.(type) {
	case http.Header:
		for name, values := range v {
			for _, value := range values {
				dst.Add(name, value)
			}
		}
	case map[string]string:
		for name, value := range v {
			dst.Set(name, value)
		}
	case map[string]any:
		for name, value := range v {
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("%w: header %q must be a string", ErrInvalidOptions, name)
			}
			dst.Set(name, s)
		}
	default:
		return fmt.Errorf("%w: header must be a map", ErrInvalidOptions)
	}
	return nil
}

func parseDuration(key string, raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidOptions, key, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a duration", ErrInvalidOptions, key)
	}
}

func parseInt(key string, raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidOptions, key)
	}
}
