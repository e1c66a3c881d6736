package stream

import "sync"

// Trampoline runs scheduled work one task at a time in FIFO order.
//
// Work scheduled while the trampoline is idle runs synchronously on the
// calling goroutine. Work scheduled while a drain is in progress is queued and
// executed by the draining goroutine, so tasks never overlap and reentrant
// scheduling cannot deadlock.
type Trampoline struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

func NewTrampoline() *Trampoline {
	return &Trampoline{}
}

// Schedule enqueues fn and drains the queue if no drain is in progress.
func (t *Trampoline) Schedule(fn func()) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.queue = append(t.queue, fn)
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()
	t.drain()
}

func (t *Trampoline) drain() {
	defer func() {
		if r := recover(); r != nil {
			t.mu.Lock()
			t.running = false
			t.mu.Unlock()
			panic(r)
		}
	}()

	for {
		t.mu.Lock()
		if len(t.queue) == 0 {
			t.running = false
			t.mu.Unlock()
			return
		}
		next := t.queue[0]
		t.queue[0] = nil
		t.queue = t.queue[1:]
		t.mu.Unlock()

		next()
	}
}

// ObserveOn delivers every notification of s through t.
func ObserveOn[T any](s Stream[T], t *Trampoline) Stream[T] {
	return Create(func(o Observer[T], sub *Subscription) {
		up := s.Subscribe(Observer[T]{
			Next: func(v T) {
				t.Schedule(func() { o.Next(v) })
			},
			Error: func(err error) {
				t.Schedule(func() { o.Error(err) })
			},
			Complete: func() {
				t.Schedule(o.Complete)
			},
		})
		sub.Add(up.Unsubscribe)
	})
}
