package stream

import "sync"

type subscriber[T any] struct {
	id  uint64
	o   Observer[T]
	sub *Subscription
}

// Subject is a hot Stream that broadcasts published values to every current
// subscriber. Late subscribers only see values published after they joined;
// subscribers that join after termination receive the terminal notification.
type Subject[T any] struct {
	mu          sync.Mutex
	tramp       Trampoline
	subscribers []subscriber[T]
	nextID      uint64
	done        bool
	err         error
}

func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

func (s *Subject[T]) Subscribe(o Observer[T]) *Subscription {
	sub := NewSubscription()
	o = guard(o, sub)

	s.mu.Lock()
	if s.done {
		err := s.err
		s.mu.Unlock()
		terminate(o, err)
		return sub
	}
	id := s.nextID
	s.nextID++
	s.subscribers = append(s.subscribers, subscriber[T]{id: id, o: o, sub: sub})
	s.mu.Unlock()

	sub.Add(func() { s.remove(id) })
	return sub
}

// Next publishes v to every current subscriber.
func (s *Subject[T]) Next(v T) {
	s.tramp.Schedule(func() {
		for _, entry := range s.snapshot() {
			entry.o.Next(v)
		}
	})
}

func (s *Subject[T]) Error(err error) {
	s.tramp.Schedule(func() {
		for _, entry := range s.finish(err) {
			entry.o.Error(err)
		}
	})
}

func (s *Subject[T]) Complete() {
	s.tramp.Schedule(func() {
		for _, entry := range s.finish(nil) {
			entry.o.Complete()
		}
	})
}

// Observer returns an observer that publishes into s.
func (s *Subject[T]) Observer() Observer[T] {
	return Observer[T]{Next: s.Next, Error: s.Error, Complete: s.Complete}
}

// Len reports the number of current subscribers.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

func (s *Subject[T]) snapshot() []subscriber[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	out := make([]subscriber[T], len(s.subscribers))
	copy(out, s.subscribers)
	return out
}

func (s *Subject[T]) finish(err error) []subscriber[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	s.err = err
	out := s.subscribers
	s.subscribers = nil
	return out
}

func (s *Subject[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.subscribers {
		if entry.id == id {
			s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
			return
		}
	}
}

// Latest is a Subject that caches the most recent value and replays it to each
// new subscriber ahead of any newer value.
type Latest[T any] struct {
	Subject[T]
	value T
	has   bool
}

func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{}
}

// NewLatestOf returns a Latest seeded with an initial value.
func NewLatestOf[T any](initial T) *Latest[T] {
	return &Latest[T]{value: initial, has: true}
}

func (l *Latest[T]) Subscribe(o Observer[T]) *Subscription {
	sub := NewSubscription()
	o = guard(o, sub)

	// Registration and replay run on the delivery trampoline so a concurrent
	// Next cannot slip in between them.
	l.tramp.Schedule(func() {
		if sub.Closed() {
			return
		}
		l.mu.Lock()
		value, has, done, err := l.value, l.has, l.done, l.err
		if !done {
			id := l.nextID
			l.nextID++
			l.subscribers = append(l.subscribers, subscriber[T]{id: id, o: o, sub: sub})
			sub.Add(func() { l.remove(id) })
		}
		l.mu.Unlock()

		if has {
			o.Next(value)
		}
		if done {
			terminate(o, err)
		}
	})
	return sub
}

func (l *Latest[T]) Next(v T) {
	l.tramp.Schedule(func() {
		l.mu.Lock()
		if l.done {
			l.mu.Unlock()
			return
		}
		l.value = v
		l.has = true
		l.mu.Unlock()
		for _, entry := range l.snapshot() {
			entry.o.Next(v)
		}
	})
}

func (l *Latest[T]) Observer() Observer[T] {
	return Observer[T]{Next: l.Next, Error: l.Error, Complete: l.Complete}
}

// Value returns the cached value, if any.
func (l *Latest[T]) Value() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.has
}

func terminate[T any](o Observer[T], err error) {
	if err != nil {
		o.Error(err)
		return
	}
	o.Complete()
}
