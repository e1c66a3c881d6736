package streamtest

import (
	"sync"
	"time"

	"github.com/danmuck/conduit/internal/stream"
)

// Recorder records notifications for tests and diagnostics.
//
// Recorder is safe under concurrent notifications.
type Recorder[T any] struct {
	mu        sync.Mutex
	values    []T
	err       error
	completed bool
	changed   chan struct{}
}

func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{changed: make(chan struct{}, 1)}
}

// Record subscribes the recorder to s.
func Record[T any](s stream.Stream[T]) (*Recorder[T], *stream.Subscription) {
	r := NewRecorder[T]()
	return r, s.Subscribe(r.Observer())
}

// Observer returns an observer that appends into the recorder.
func (r *Recorder[T]) Observer() stream.Observer[T] {
	return stream.Observer[T]{
		Next: func(v T) {
			r.mu.Lock()
			r.values = append(r.values, v)
			r.mu.Unlock()
			r.notify()
		},
		Error: func(err error) {
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
			r.notify()
		},
		Complete: func() {
			r.mu.Lock()
			r.completed = true
			r.mu.Unlock()
			r.notify()
		},
	}
}

// Values returns a snapshot copy of recorded values.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]T, len(r.values))
	copy(cp, r.values)
	return cp
}

func (r *Recorder[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder[T]) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// Changed is signalled after every recorded notification.
func (r *Recorder[T]) Changed() <-chan struct{} {
	return r.changed
}

// Reset clears recorded values.
func (r *Recorder[T]) Reset() {
	r.mu.Lock()
	r.values = nil
	r.mu.Unlock()
}

func (r *Recorder[T]) notify() {
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// WaitLen blocks until at least n values are recorded or timeout elapses.
func (r *Recorder[T]) WaitLen(n int, timeout time.Duration) bool {
	return r.WaitFor(func() bool { return len(r.Values()) >= n }, timeout)
}

// WaitFor blocks until cond holds or timeout elapses.
func (r *Recorder[T]) WaitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if cond() {
			return true
		}
		select {
		case <-r.changed:
		case <-deadline.C:
			return cond()
		}
	}
}
