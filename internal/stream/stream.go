package stream

import (
	"sync"
	"sync/atomic"
)

// Observer receives notifications from a Stream. Nil callbacks are ignored.
type Observer[T any] struct {
	Next     func(T)
	Error    func(error)
	Complete func()
}

// Stream is a source of values that pushes to subscribed observers.
type Stream[T any] interface {
	Subscribe(o Observer[T]) *Subscription
}

// Operator transforms one stream into another.
type Operator[A, B any] func(Stream[A]) Stream[B]

// Pair joins two values observed together.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Subscription tracks the teardown work of one subscription.
type Subscription struct {
	mu       sync.Mutex
	closed   bool
	teardown []func()
}

func NewSubscription() *Subscription {
	return &Subscription{}
}

// Add registers fn to run on Unsubscribe. If the subscription is already
// closed fn runs immediately.
func (s *Subscription) Add(fn func()) {
	if s == nil || fn == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.teardown = append(s.teardown, fn)
	s.mu.Unlock()
}

// Unsubscribe runs registered teardowns once, in registration order.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	fns := s.teardown
	s.teardown = nil
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (s *Subscription) Closed() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type streamFunc[T any] func(o Observer[T]) *Subscription

func (f streamFunc[T]) Subscribe(o Observer[T]) *Subscription {
	return f(o)
}

// Create builds a Stream from a producer. The producer receives an observer
// that enforces the termination contract and the subscription it should hang
// its teardown on; a terminal notification unsubscribes it.
func Create[T any](produce func(o Observer[T], sub *Subscription)) Stream[T] {
	return streamFunc[T](func(o Observer[T]) *Subscription {
		sub := NewSubscription()
		produce(guard(o, sub), sub)
		return sub
	})
}

type guarded[T any] struct {
	o    Observer[T]
	sub  *Subscription
	done atomic.Bool
}

func guard[T any](o Observer[T], sub *Subscription) Observer[T] {
	g := &guarded[T]{o: o, sub: sub}
	return Observer[T]{
		Next:     g.next,
		Error:    g.error,
		Complete: g.complete,
	}
}

func (g *guarded[T]) next(v T) {
	if g.done.Load() || g.sub.Closed() {
		return
	}
	if g.o.Next != nil {
		g.o.Next(v)
	}
}

func (g *guarded[T]) error(err error) {
	if !g.done.CompareAndSwap(false, true) || g.sub.Closed() {
		return
	}
	if g.o.Error != nil {
		g.o.Error(err)
	}
	g.sub.Unsubscribe()
}

func (g *guarded[T]) complete() {
	if !g.done.CompareAndSwap(false, true) || g.sub.Closed() {
		return
	}
	if g.o.Complete != nil {
		g.o.Complete()
	}
	g.sub.Unsubscribe()
}

// forward returns an observer that passes terminal notifications of an
// upstream to o while next handles values.
func forward[A, B any](o Observer[B], next func(A)) Observer[A] {
	return Observer[A]{
		Next:     next,
		Error:    o.Error,
		Complete: o.Complete,
	}
}
