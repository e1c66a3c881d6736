package conduit

import (
	"sync"
	"sync/atomic"

	"github.com/danmuck/conduit/internal/conn"
	"github.com/danmuck/conduit/internal/stream"
)

type fakeSocket struct {
	id      string
	inbound *stream.Subject[[]byte]
	mu      sync.Mutex
	writes  []string
}

func newFakeSocket(id string) *fakeSocket {
	return &fakeSocket{id: id, inbound: stream.NewSubject[[]byte]()}
}

func (s *fakeSocket) ID() string                     { return s.id }
func (s *fakeSocket) ReadyState() conn.ReadyState    { return conn.Open }
func (s *fakeSocket) Inbound() stream.Stream[[]byte] { return s.inbound }
func (s *fakeSocket) receive(payload string)         { s.inbound.Next([]byte(payload)) }
func (s *fakeSocket) openEvent() conn.Event          { return conn.Event{Socket: s, State: conn.Open} }
func (s *fakeSocket) closedEvent() conn.Event        { return conn.Event{Socket: s, State: conn.Closed} }
func (s *fakeSocket) closedWith(err error) conn.Event {
	return conn.Event{Socket: s, State: conn.Closed, Err: err}
}
func (s *fakeSocket) closingEvent() conn.Event { return conn.Event{Socket: s, State: conn.Closing} }
func (s *fakeSocket) connectingEvent() conn.Event {
	return conn.Event{Socket: s, State: conn.Connecting}
}

func (s *fakeSocket) Write(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, string(payload))
	return nil
}

func (s *fakeSocket) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.writes))
	copy(out, s.writes)
	return out
}

// fakeDialer hands out a test-controlled connection event stream.
type fakeDialer struct {
	events  *stream.Subject[conn.Event]
	dials   atomic.Int32
	targets []conn.Target
	mu      sync.Mutex
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{events: stream.NewSubject[conn.Event]()}
}

func (d *fakeDialer) Dial(target conn.Target) stream.Stream[conn.Event] {
	return stream.Create(func(o stream.Observer[conn.Event], sub *stream.Subscription) {
		d.dials.Add(1)
		d.mu.Lock()
		d.targets = append(d.targets, target)
		d.mu.Unlock()
		o.Next(conn.Event{})
		sub.Add(d.events.Subscribe(o).Unsubscribe)
	})
}

func (d *fakeDialer) emit(ev conn.Event) {
	d.events.Next(ev)
}
