package conduit

import (
	"sync"

	"github.com/danmuck/conduit/internal/conn"
	"github.com/danmuck/conduit/internal/observability"
	"github.com/danmuck/conduit/internal/stream"
	"github.com/rs/zerolog/log"
)

// BufferWhileClosed holds every message that arrives while the latest
// connection event is not open and replays the held messages, in arrival
// order, when the connection next transitions from not-open to open.
//
// Messages paired with an open connection are not emitted; PassWhileOpen
// handles them. The engine expects its two inputs to be delivered serially,
// which BufferMessages guarantees.
func BufferWhileClosed[T any](conns stream.Stream[conn.Event]) stream.Operator[T, T] {
	return func(messages stream.Stream[T]) stream.Stream[T] {
		return stream.Create(func(o stream.Observer[T], sub *stream.Subscription) {
			buf := &holdQueue[T]{}
			sub.Add(buf.discard)

			sub.Add(openTransitions(conns).Subscribe(stream.Observer[struct{}]{
				Next: func(struct{}) {
					batch := buf.drain()
					observability.RecordFlush(len(batch))
					log.Debug().Int("count", len(batch)).Msg("conduit buffer flush")
					for _, msg := range batch {
						o.Next(msg)
					}
				},
				Error: o.Error,
			}).Unsubscribe)
			if sub.Closed() {
				return
			}

			held := stream.Filter(withConnection(messages, conns), func(p stream.Pair[T, conn.Event]) bool {
				return !p.Second.IsOpen()
			})
			sub.Add(held.Subscribe(stream.Observer[stream.Pair[T, conn.Event]]{
				Next: func(p stream.Pair[T, conn.Event]) {
					buf.hold(p.First)
				},
				Error:    o.Error,
				Complete: o.Complete,
			}).Unsubscribe)
		})
	}
}

// PassWhileOpen emits a message immediately when the latest connection event
// is open and excludes it otherwise.
func PassWhileOpen[T any](conns stream.Stream[conn.Event]) stream.Operator[T, T] {
	return func(messages stream.Stream[T]) stream.Stream[T] {
		live := stream.Filter(withConnection(messages, conns), func(p stream.Pair[T, conn.Event]) bool {
			return p.Second.IsOpen()
		})
		return stream.Map(live, func(p stream.Pair[T, conn.Event]) T {
			observability.RecordOutbound(observability.StagePassthrough, 1)
			return p.First
		})
	}
}

// BufferMessages multicasts both inputs once, serialises them onto a single
// trampoline, and merges the buffered and live paths. Ordering holds within
// each path only.
//
// A message scheduled before an open transition is processed before it and
// is therefore buffered and flushed by that transition.
func BufferMessages[T any](conns stream.Stream[conn.Event]) stream.Operator[T, T] {
	return func(messages stream.Stream[T]) stream.Stream[T] {
		return stream.Create(func(o stream.Observer[T], sub *stream.Subscription) {
			t := stream.NewTrampoline()
			sharedConns := stream.ShareLatest(stream.ObserveOn(conns, t))
			sharedMessages := stream.Share(stream.ObserveOn(messages, t))
			merged := stream.Merge(
				BufferWhileClosed[T](sharedConns)(sharedMessages),
				PassWhileOpen[T](sharedConns)(sharedMessages),
			)

			// Wiring runs as one trampoline task so values emitted while the
			// engines subscribe are queued until both engines are attached.
			t.Schedule(func() {
				if sub.Closed() {
					return
				}
				sub.Add(merged.Subscribe(o).Unsubscribe)
			})
		})
	}
}

// withConnection pairs each message with the most recent connection event,
// defaulting to the unconnected event.
func withConnection[T any](messages stream.Stream[T], conns stream.Stream[conn.Event]) stream.Stream[stream.Pair[T, conn.Event]] {
	return stream.WithLatest(messages, stream.StartWith(conns, conn.Event{}))
}

// openTransitions fires once per false to true change of "is open". The
// sequence is seeded with false so an initial open event releases messages
// held before any connection event was seen.
func openTransitions(conns stream.Stream[conn.Event]) stream.Stream[struct{}] {
	opens := stream.StartWith(stream.Map(conns, conn.Event.IsOpen), false)
	rising := stream.Filter(stream.Pairwise(opens), func(p stream.Pair[bool, bool]) bool {
		return !p.First && p.Second
	})
	return stream.Map(rising, func(stream.Pair[bool, bool]) struct{} { return struct{}{} })
}

// holdQueue is the FIFO owned by one BufferWhileClosed subscription.
type holdQueue[T any] struct {
	mu    sync.Mutex
	items []T
}

func (q *holdQueue[T]) hold(msg T) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()
	observability.RecordOutbound(observability.StageBuffered, 1)
	observability.AddBufferDepth(1)
}

func (q *holdQueue[T]) drain() []T {
	q.mu.Lock()
	batch := q.items
	q.items = nil
	q.mu.Unlock()
	observability.AddBufferDepth(-len(batch))
	return batch
}

func (q *holdQueue[T]) discard() {
	if n := len(q.drain()); n > 0 {
		log.Debug().Int("count", n).Msg("conduit buffer discarded")
	}
}
