package conduit

import (
	"github.com/danmuck/conduit/internal/codec"
	"github.com/danmuck/conduit/internal/conn"
	"github.com/danmuck/conduit/internal/stream"
)

// Dialer opens a connection and reports its lifecycle. The stream must start
// with the unconnected default and stop all I/O when unsubscribed.
type Dialer interface {
	Dial(target conn.Target) stream.Stream[conn.Event]
}

// Sender writes messages to the live connection and emits nothing.
type Sender[Out any] interface {
	Send(conns stream.Stream[conn.Event], encode codec.Serializer[Out]) stream.Operator[Out, struct{}]
}

// Consumer decodes inbound payloads of the connection.
type Consumer[In any] interface {
	Consume(decode codec.Deserializer[In]) stream.Operator[conn.Event, In]
}

// ErrorMapper maps connection events to error values.
type ErrorMapper interface {
	Errors() stream.Operator[conn.Event, error]
}

type DialerFunc func(target conn.Target) stream.Stream[conn.Event]

func (f DialerFunc) Dial(target conn.Target) stream.Stream[conn.Event] {
	return f(target)
}

type SenderFunc[Out any] func(conns stream.Stream[conn.Event], encode codec.Serializer[Out]) stream.Operator[Out, struct{}]

func (f SenderFunc[Out]) Send(conns stream.Stream[conn.Event], encode codec.Serializer[Out]) stream.Operator[Out, struct{}] {
	return f(conns, encode)
}

type ConsumerFunc[In any] func(decode codec.Deserializer[In]) stream.Operator[conn.Event, In]

func (f ConsumerFunc[In]) Consume(decode codec.Deserializer[In]) stream.Operator[conn.Event, In] {
	return f(decode)
}

type ErrorMapperFunc func() stream.Operator[conn.Event, error]

func (f ErrorMapperFunc) Errors() stream.Operator[conn.Event, error] {
	return f()
}
