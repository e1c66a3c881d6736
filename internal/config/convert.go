package config

import (
	"github.com/danmuck/conduit/internal/codec"
	"github.com/danmuck/conduit/internal/conduit"
	"github.com/danmuck/conduit/internal/conn"
	"github.com/danmuck/conduit/internal/socket"
)

// ConduitOptions builds line-oriented conduit options from cfg. The caller
// supplies the stop signal.
func ConduitOptions(cfg ClientConfig, stop <-chan struct{}) (conduit.Options[string, string], error) {
	encode, decode, err := codec.ForName(cfg.Codec)
	if err != nil {
		return conduit.Options[string, string]{}, err
	}

	opts := conduit.DefaultOptions[string, string]()
	opts.URL = cfg.URL
	opts.BufferOnDisconnect = cfg.BufferOnDisconnect
	opts.Protocols = cfg.Protocols
	opts.Stop = stop
	opts.Serializer = encode
	opts.Deserializer = decode
	opts.Dialer = socket.NewDialer(cfg.Socket)
	if len(cfg.Headers) > 0 {
		opts.SocketOptions = conn.Options{socket.OptionHeader: cfg.Headers}
	}
	return opts, nil
}
