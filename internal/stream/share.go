package stream

import "sync"

type hub[T any] interface {
	Stream[T]
	Next(T)
	Error(error)
	Complete()
}

type shared[T any] struct {
	source   Stream[T]
	newHub   func() hub[T]
	mu       sync.Mutex
	current  hub[T]
	upstream *Subscription
	refs     int
}

// Share multicasts s: the first subscriber connects to s, later subscribers
// join the same upstream subscription, and the upstream is released when the
// last subscriber leaves.
func Share[T any](s Stream[T]) Stream[T] {
	return &shared[T]{
		source: s,
		newHub: func() hub[T] { return NewSubject[T]() },
	}
}

// ShareLatest is Share with replay-latest: every subscriber immediately
// receives the most recent upstream value.
func ShareLatest[T any](s Stream[T]) Stream[T] {
	return &shared[T]{
		source: s,
		newHub: func() hub[T] { return NewLatest[T]() },
	}
}

func (s *shared[T]) Subscribe(o Observer[T]) *Subscription {
	s.mu.Lock()
	connect := false
	if s.current == nil {
		s.current = s.newHub()
		connect = true
	}
	h := s.current
	s.refs++
	s.mu.Unlock()

	sub := NewSubscription()
	sub.Add(h.Subscribe(o).Unsubscribe)
	sub.Add(func() { s.release(h) })

	if connect {
		up := s.source.Subscribe(Observer[T]{Next: h.Next, Error: h.Error, Complete: h.Complete})
		s.mu.Lock()
		if s.current == h {
			s.upstream = up
			up = nil
		}
		s.mu.Unlock()
		// Everyone left while connecting.
		up.Unsubscribe()
	}
	return sub
}

func (s *shared[T]) release(h hub[T]) {
	s.mu.Lock()
	if s.current != h {
		s.mu.Unlock()
		return
	}
	s.refs--
	if s.refs > 0 {
		s.mu.Unlock()
		return
	}
	up := s.upstream
	s.current = nil
	s.upstream = nil
	s.mu.Unlock()
	up.Unsubscribe()
}
