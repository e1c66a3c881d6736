package stream

import (
	"sync"
	"sync/atomic"
)

func Map[A, B any](s Stream[A], fn func(A) B) Stream[B] {
	return Create(func(o Observer[B], sub *Subscription) {
		sub.Add(s.Subscribe(forward(o, func(v A) { o.Next(fn(v)) })).Unsubscribe)
	})
}

func Filter[T any](s Stream[T], keep func(T) bool) Stream[T] {
	return Create(func(o Observer[T], sub *Subscription) {
		sub.Add(s.Subscribe(forward(o, func(v T) {
			if keep(v) {
				o.Next(v)
			}
		})).Unsubscribe)
	})
}

// Flatten emits the elements of each slice in order.
func Flatten[T any](s Stream[[]T]) Stream[T] {
	return Create(func(o Observer[T], sub *Subscription) {
		sub.Add(s.Subscribe(forward(o, func(batch []T) {
			for _, v := range batch {
				o.Next(v)
			}
		})).Unsubscribe)
	})
}

// IgnoreElements drops every value and keeps only termination.
func IgnoreElements[T, U any](s Stream[T]) Stream[U] {
	return Create(func(o Observer[U], sub *Subscription) {
		sub.Add(s.Subscribe(forward(o, func(T) {})).Unsubscribe)
	})
}

// StartWith emits vals before the values of s.
func StartWith[T any](s Stream[T], vals ...T) Stream[T] {
	return Create(func(o Observer[T], sub *Subscription) {
		for _, v := range vals {
			if sub.Closed() {
				return
			}
			o.Next(v)
		}
		sub.Add(s.Subscribe(o).Unsubscribe)
	})
}

// Merge interleaves the values of every source. It completes once all sources
// have completed and fails on the first error.
func Merge[T any](sources ...Stream[T]) Stream[T] {
	return Create(func(o Observer[T], sub *Subscription) {
		if len(sources) == 0 {
			o.Complete()
			return
		}
		var active atomic.Int64
		active.Store(int64(len(sources)))
		for _, src := range sources {
			if sub.Closed() {
				return
			}
			sub.Add(src.Subscribe(Observer[T]{
				Next:  o.Next,
				Error: o.Error,
				Complete: func() {
					if active.Add(-1) == 0 {
						o.Complete()
					}
				},
			}).Unsubscribe)
		}
	})
}

// TakeUntil mirrors s until notifier emits its first value, then completes.
// Completion of notifier without a value has no effect.
func TakeUntil[T, U any](s Stream[T], notifier Stream[U]) Stream[T] {
	return Create(func(o Observer[T], sub *Subscription) {
		sub.Add(notifier.Subscribe(Observer[U]{
			Next:  func(U) { o.Complete() },
			Error: o.Error,
		}).Unsubscribe)
		if sub.Closed() {
			return
		}
		sub.Add(s.Subscribe(o).Unsubscribe)
	})
}

// WithLatest pairs each value of s with the most recent value of other.
// Values of s that arrive before other has produced anything are dropped.
func WithLatest[A, B any](s Stream[A], other Stream[B]) Stream[Pair[A, B]] {
	return Create(func(o Observer[Pair[A, B]], sub *Subscription) {
		var (
			mu     sync.Mutex
			latest B
			has    bool
		)
		sub.Add(other.Subscribe(Observer[B]{
			Next: func(v B) {
				mu.Lock()
				latest, has = v, true
				mu.Unlock()
			},
			Error: o.Error,
		}).Unsubscribe)
		if sub.Closed() {
			return
		}
		sub.Add(s.Subscribe(forward(o, func(v A) {
			mu.Lock()
			cur, ok := latest, has
			mu.Unlock()
			if ok {
				o.Next(Pair[A, B]{First: v, Second: cur})
			}
		})).Unsubscribe)
	})
}

// Pairwise emits each value together with its predecessor, starting from the
// second value.
func Pairwise[T any](s Stream[T]) Stream[Pair[T, T]] {
	return Create(func(o Observer[Pair[T, T]], sub *Subscription) {
		var (
			prev T
			has  bool
		)
		sub.Add(s.Subscribe(forward(o, func(v T) {
			if has {
				o.Next(Pair[T, T]{First: prev, Second: v})
			}
			prev, has = v, true
		})).Unsubscribe)
	})
}
