package conduit

import (
	"errors"
	"strings"

	"github.com/danmuck/conduit/internal/codec"
	"github.com/danmuck/conduit/internal/conn"
	"github.com/danmuck/conduit/internal/socket"
	"github.com/danmuck/conduit/internal/stream"
	"github.com/rs/zerolog/log"
)

var ErrNoURL = errors.New("conduit operator requires a {url<String>}")

// Options configures Connect. Start from DefaultOptions; the zero value
// disables buffering.
type Options[Out, In any] struct {
	URL                string
	BufferOnDisconnect bool
	// SocketOptions and Protocols are forwarded untouched to the Dialer.
	SocketOptions conn.Options
	Protocols     []string
	// Stop tears down the connection and every derived pipeline when closed.
	// A nil channel never fires.
	Stop         <-chan struct{}
	Serializer   codec.Serializer[Out]
	Deserializer codec.Deserializer[In]

	Dialer      Dialer
	Sender      Sender[Out]
	Consumer    Consumer[In]
	ErrorMapper ErrorMapper
}

func DefaultOptions[Out, In any]() Options[Out, In] {
	return Options[Out, In]{
		BufferOnDisconnect: true,
		SocketOptions:      conn.Options{},
		Serializer:         codec.JSONEncode[Out],
		Deserializer:       codec.JSONDecode[In],
	}
}

func (o Options[Out, In]) Validate() error {
	if strings.TrimSpace(o.URL) == "" {
		return ErrNoURL
	}
	return nil
}

func (o Options[Out, In]) withDefaults() Options[Out, In] {
	if o.SocketOptions == nil {
		o.SocketOptions = conn.Options{}
	}
	if o.Serializer == nil {
		o.Serializer = codec.JSONEncode[Out]
	}
	if o.Deserializer == nil {
		o.Deserializer = codec.JSONDecode[In]
	}
	if o.Dialer == nil {
		o.Dialer = socket.NewDialer(socket.DefaultConfig())
	}
	if o.Sender == nil {
		o.Sender = SenderFunc[Out](socket.Send[Out])
	}
	if o.Consumer == nil {
		o.Consumer = ConsumerFunc[In](socket.Consume[In])
	}
	if o.ErrorMapper == nil {
		o.ErrorMapper = ErrorMapperFunc(socket.Errors)
	}
	return o
}

// Result is the inbound message stream of a conduit. Errors carries
// connection-level failures and is never mixed into the message stream.
// Connections replays the latest connection event; it shares the dial of the
// message stream while both are subscribed.
type Result[In any] struct {
	stream.Stream[In]
	Errors      stream.Stream[error]
	Connections stream.Stream[conn.Event]
}

// Connect wires messages through an optional disconnect buffer to the socket
// and returns the decoded inbound messages. Nothing is dialed until the result
// or its Errors stream is subscribed. A missing URL yields a result that fails
// with ErrNoURL and touches no collaborator.
func Connect[Out, In any](opts Options[Out, In], messages stream.Stream[Out]) *Result[In] {
	if err := opts.Validate(); err != nil {
		return &Result[In]{
			Stream:      stream.Throw[In](err),
			Errors:      stream.Empty[error](),
			Connections: stream.Empty[conn.Event](),
		}
	}
	opts = opts.withDefaults()

	target := conn.Target{
		URL:       strings.TrimSpace(opts.URL),
		Protocols: opts.Protocols,
		Options:   opts.SocketOptions,
	}
	stop := stream.Share(stream.FromDone(opts.Stop))
	outbound := stream.ShareLatest(messages)
	conns := stream.ShareLatest(stream.TakeUntil(opts.Dialer.Dial(target), stop))

	errs := opts.ErrorMapper.Errors()(conns)

	var routed stream.Stream[Out] = outbound
	if opts.BufferOnDisconnect {
		routed = BufferMessages[Out](conns)(outbound)
	}
	sent := opts.Sender.Send(conns, opts.Serializer)(stream.TakeUntil(routed, stop))
	producer := stream.IgnoreElements[struct{}, In](sent)
	consumer := opts.Consumer.Consume(opts.Deserializer)(conns)

	log.Debug().
		Str("url", target.URL).
		Bool("buffer_on_disconnect", opts.BufferOnDisconnect).
		Strs("protocols", target.Protocols).
		Msg("conduit wired")

	return &Result[In]{
		Stream:      stream.Merge(producer, consumer),
		Errors:      errs,
		Connections: conns,
	}
}
