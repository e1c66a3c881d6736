package stream

import "context"

// Of emits vals synchronously and completes.
func Of[T any](vals ...T) Stream[T] {
	return Create(func(o Observer[T], sub *Subscription) {
		for _, v := range vals {
			if sub.Closed() {
				return
			}
			o.Next(v)
		}
		o.Complete()
	})
}

func Empty[T any]() Stream[T] {
	return Create(func(o Observer[T], _ *Subscription) {
		o.Complete()
	})
}

func Never[T any]() Stream[T] {
	return Create(func(Observer[T], *Subscription) {})
}

// Throw fails every subscriber immediately with err.
func Throw[T any](err error) Stream[T] {
	return Create(func(o Observer[T], _ *Subscription) {
		o.Error(err)
	})
}

// FromDone emits once and completes when done is closed. A nil channel never
// fires. An already closed channel fires synchronously on subscribe.
func FromDone(done <-chan struct{}) Stream[struct{}] {
	if done == nil {
		return Never[struct{}]()
	}
	return Create(func(o Observer[struct{}], sub *Subscription) {
		select {
		case <-done:
			o.Next(struct{}{})
			o.Complete()
			return
		default:
		}

		stop := make(chan struct{})
		sub.Add(func() { close(stop) })
		go func() {
			select {
			case <-done:
				o.Next(struct{}{})
				o.Complete()
			case <-stop:
			}
		}()
	})
}

// FromChan emits every value received from ch and completes when ch closes.
func FromChan[T any](ch <-chan T) Stream[T] {
	return Create(func(o Observer[T], sub *Subscription) {
		stop := make(chan struct{})
		sub.Add(func() { close(stop) })
		go func() {
			for {
				select {
				case <-stop:
					return
				case v, ok := <-ch:
					if !ok {
						o.Complete()
						return
					}
					o.Next(v)
				}
			}
		}()
	})
}

// Wait subscribes to s, hands every value to next, and blocks until s
// terminates or ctx is done. It returns the stream error, or ctx.Err().
func Wait[T any](ctx context.Context, s Stream[T], next func(T)) error {
	done := make(chan error, 1)
	sub := s.Subscribe(Observer[T]{
		Next: next,
		Error: func(err error) {
			done <- err
		},
		Complete: func() {
			done <- nil
		},
	})
	defer sub.Unsubscribe()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
