package socket

import (
	"sync"

	"github.com/danmuck/conduit/internal/codec"
	"github.com/danmuck/conduit/internal/conn"
	"github.com/danmuck/conduit/internal/observability"
	"github.com/danmuck/conduit/internal/stream"
	"github.com/rs/zerolog/log"
)

// Send writes each message to the most recent live socket of conns. The
// returned stream never emits a value; it only mirrors termination of the
// message stream. Messages with no live socket are dropped.
func Send[T any](conns stream.Stream[conn.Event], encode codec.Serializer[T]) stream.Operator[T, struct{}] {
	return func(messages stream.Stream[T]) stream.Stream[struct{}] {
		paired := stream.WithLatest(messages, stream.StartWith(conns, conn.Event{}))
		return stream.Create(func(o stream.Observer[struct{}], sub *stream.Subscription) {
			sub.Add(paired.Subscribe(stream.Observer[stream.Pair[T, conn.Event]]{
				Next: func(p stream.Pair[T, conn.Event]) {
					write(p.Second, p.First, encode)
				},
				Error:    o.Error,
				Complete: o.Complete,
			}).Unsubscribe)
		})
	}
}

func write[T any](ev conn.Event, msg T, encode codec.Serializer[T]) {
	if !ev.IsOpen() {
		observability.RecordOutbound(observability.StageDropped, 1)
		log.Warn().Str("state", ev.State.String()).Msg("send dropped: no live socket")
		return
	}
	payload, err := encode(msg)
	if err != nil {
		observability.RecordOutbound(observability.StageSendFailed, 1)
		log.Error().Str("socket", ev.SocketID()).Err(err).Msg("send encode failed")
		return
	}
	if err := ev.Socket.Write(payload); err != nil {
		observability.RecordOutbound(observability.StageSendFailed, 1)
		log.Error().Str("socket", ev.SocketID()).Err(err).Msg("send write failed")
		return
	}
	observability.RecordOutbound(observability.StageSent, 1)
}

// Consume decodes the inbound payloads of every socket that becomes open.
// When a new socket opens, the previous socket's payloads are no longer read.
// Payloads that fail to decode are logged and skipped.
func Consume[T any](decode codec.Deserializer[T]) stream.Operator[conn.Event, T] {
	return func(conns stream.Stream[conn.Event]) stream.Stream[T] {
		return stream.Create(func(o stream.Observer[T], sub *stream.Subscription) {
			var (
				mu        sync.Mutex
				current   *stream.Subscription
				currentID string
			)
			sub.Add(func() {
				mu.Lock()
				inner := current
				current = nil
				mu.Unlock()
				inner.Unsubscribe()
			})

			sub.Add(conns.Subscribe(stream.Observer[conn.Event]{
				Next: func(ev conn.Event) {
					if !ev.IsOpen() {
						return
					}
					mu.Lock()
					if ev.SocketID() == currentID {
						mu.Unlock()
						return
					}
					prev := current
					currentID = ev.SocketID()
					current = nil
					mu.Unlock()
					prev.Unsubscribe()

					socketID := ev.SocketID()
					inner := ev.Socket.Inbound().Subscribe(stream.Observer[[]byte]{
						Next: func(payload []byte) {
							v, err := decode(payload)
							if err != nil {
								observability.RecordInbound(false)
								log.Warn().Str("socket", socketID).Err(err).Msg("inbound decode failed")
								return
							}
							observability.RecordInbound(true)
							o.Next(v)
						},
					})

					mu.Lock()
					if sub.Closed() || currentID != socketID {
						mu.Unlock()
						inner.Unsubscribe()
						return
					}
					current = inner
					mu.Unlock()
				},
				Error:    o.Error,
				Complete: o.Complete,
			}).Unsubscribe)
		})
	}
}

// Errors maps connection events that carry a failure to error values.
func Errors() stream.Operator[conn.Event, error] {
	return func(conns stream.Stream[conn.Event]) stream.Stream[error] {
		failed := stream.Filter(conns, func(ev conn.Event) bool { return ev.Err != nil })
		return stream.Map(failed, eventError)
	}
}

func eventError(ev conn.Event) error {
	if ce, ok := ev.Err.(*conn.Error); ok {
		return ce
	}
	return &conn.Error{
		SocketID: ev.SocketID(),
		State:    ev.State,
		Kind:     conn.KindOf(ev.Err),
		Err:      ev.Err,
	}
}
