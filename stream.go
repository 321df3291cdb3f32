package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fgrzl/enumerators"
	"github.com/zoobzio/clockz"
)

// Stream is a lazy sequence of values. Nothing happens until the stream is
// collected; each collection runs the producer again from the start.
//
// A producer calls emit for every value in order and returns when it is
// exhausted, when it fails, or when emit returns an error. An error returned
// by emit must be returned by the producer unchanged.
type Stream[V any] func(ctx context.Context, emit func(V) error) error

// errStop ends collection early without reporting a failure.
var errStop = errors.New("stop")

// Of returns a stream of the given values.
func Of[V any](values ...V) Stream[V] {
	return FromSlice(values)
}

// FromSlice returns a stream over values.
func FromSlice[V any](values []V) Stream[V] {
	return func(ctx context.Context, emit func(V) error) error {
		for _, v := range values {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := emit(v); err != nil {
				return err
			}
		}
		return nil
	}
}

// Empty returns a stream that completes without values.
func Empty[V any]() Stream[V] {
	return func(context.Context, func(V) error) error { return nil }
}

// Fail returns a stream that fails immediately with err.
func Fail[V any](err error) Stream[V] {
	return func(context.Context, func(V) error) error { return err }
}

// FromChannel returns a stream that forwards values from ch until it is
// closed. The channel is shared: concurrent collections split its values
// between them.
func FromChannel[V any](ch <-chan V) Stream[V] {
	return func(ctx context.Context, emit func(V) error) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case v, ok := <-ch:
				if !ok {
					return nil
				}
				if err := emit(v); err != nil {
					return err
				}
			}
		}
	}
}

// FromEnumerator returns a stream that pulls from a fresh enumerator on every
// collection. The enumerator is disposed when collection ends.
func FromEnumerator[V any](open func(ctx context.Context) enumerators.Enumerator[V]) Stream[V] {
	return func(ctx context.Context, emit func(V) error) error {
		e := open(ctx)
		defer e.Dispose()
		for e.MoveNext() {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := e.Current()
			if err != nil {
				return err
			}
			if err := emit(v); err != nil {
				return err
			}
		}
		return e.Err()
	}
}

// FromPublisher returns a stream that subscribes to p for the duration of
// each collection. Values are queued between the publisher and the collector,
// so a publisher that delivers synchronously inside Subscribe cannot block.
// The stream ends when the publisher closes the subscription and fails with
// the publisher's error, if any.
func FromPublisher[V any](p Publisher[V]) Stream[V] {
	return func(ctx context.Context, emit func(V) error) error {
		var (
			mu      sync.Mutex
			queue   []V
			closed  bool
			failure error
		)
		wake := make(chan struct{}, 1)
		notify := func() {
			select {
			case wake <- struct{}{}:
			default:
			}
		}

		sub := p.Subscribe(Callbacks[V]{
			OnValue: func(v V) {
				mu.Lock()
				queue = append(queue, v)
				mu.Unlock()
				notify()
			},
			OnFailure: func(err error) {
				mu.Lock()
				if failure == nil {
					failure = err
				}
				mu.Unlock()
			},
			OnComplete: func() {
				mu.Lock()
				closed = true
				mu.Unlock()
				notify()
			},
		})
		defer sub.Dispose()

		for {
			mu.Lock()
			batch := queue
			queue = nil
			done, err := closed, failure
			mu.Unlock()

			for _, v := range batch {
				if err := emit(v); err != nil {
					return err
				}
			}
			if len(batch) == 0 && done {
				return err
			}
			if len(batch) > 0 {
				continue
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-wake:
			}
		}
	}
}

// Map returns a stream of fn applied to every value of s. A failing fn ends
// the stream with a TransactionError.
func Map[V, R any](s Stream[V], fn Mapper[V, R]) Stream[R] {
	return func(ctx context.Context, emit func(R) error) error {
		return s(ctx, func(v V) error {
			r, err := apply(fn, v)
			if err != nil {
				return TransactionFailed(err)
			}
			return emit(r)
		})
	}
}

func apply[V, R any](fn Mapper[V, R], v V) (r R, err error) {
	defer func() {
		if p := recovered(recover()); p != nil {
			err = p
		}
	}()
	return fn(v)
}

// Filter keeps the values for which keep returns true.
func (s Stream[V]) Filter(keep func(V) bool) Stream[V] {
	return func(ctx context.Context, emit func(V) error) error {
		return s(ctx, func(v V) error {
			if !keep(v) {
				return nil
			}
			return emit(v)
		})
	}
}

// Take ends the stream successfully after n values.
func (s Stream[V]) Take(n int) Stream[V] {
	return func(ctx context.Context, emit func(V) error) error {
		if n <= 0 {
			return nil
		}
		seen := 0
		err := s(ctx, func(v V) error {
			if err := emit(v); err != nil {
				return err
			}
			seen++
			if seen >= n {
				return errStop
			}
			return nil
		})
		if errors.Is(err, errStop) {
			return nil
		}
		return err
	}
}

// OnEach calls fn for every value before passing it on. A panic in fn fails
// the stream with a PanicError.
func (s Stream[V]) OnEach(fn func(V)) Stream[V] {
	return func(ctx context.Context, emit func(V) error) error {
		return s(ctx, func(v V) (err error) {
			func() {
				defer func() {
					err = recovered(recover())
				}()
				fn(v)
			}()
			if err != nil {
				return err
			}
			return emit(v)
		})
	}
}

// Catch handles a failure of s, and of any OnEach or Map stage before it, by
// passing it to fn and completing normally. A panic upstream is handled as a
// PanicError. Failures raised downstream of Catch and cancellation of ctx
// pass through untouched.
func (s Stream[V]) Catch(fn func(error)) Stream[V] {
	return func(ctx context.Context, emit func(V) error) error {
		var downstream error
		err := func() (err error) {
			defer func() {
				if p := recovered(recover()); p != nil {
					err = p
				}
			}()
			return s(ctx, func(v V) (err error) {
				defer func() {
					if p := recovered(recover()); p != nil {
						err = p
					}
					if err != nil {
						downstream = err
					}
				}()
				return emit(v)
			})
		}()
		if err == nil || downstream != nil || ctx.Err() != nil {
			return err
		}
		fn(err)
		return nil
	}
}

// OnCompletion calls fn once after s returns, with the error it returned.
// fn receives nil on normal completion and the context error on cancellation.
func (s Stream[V]) OnCompletion(fn func(error)) Stream[V] {
	return func(ctx context.Context, emit func(V) error) (err error) {
		defer func() {
			if p := recovered(recover()); p != nil {
				err = p
			}
			fn(err)
		}()
		return s(ctx, emit)
	}
}

// Debounce coalesces values that arrive within d of each other, emitting only
// the latest once the stream has been quiet for d. A pending value is flushed
// when the upstream ends, before its error if it failed.
func (s Stream[V]) Debounce(clock clockz.Clock, d time.Duration) Stream[V] {
	if d <= 0 {
		return s
	}
	return func(ctx context.Context, emit func(V) error) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		values, result := s.Channel(ctx)

		var (
			timer      clockz.Timer
			pending    V
			hasPending bool
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			var timerC <-chan time.Time
			if timer != nil {
				timerC = timer.C()
			}

			select {
			case <-ctx.Done():
				return ctx.Err()

			case v, ok := <-values:
				if !ok {
					err := <-result
					if hasPending {
						if emitErr := emit(pending); emitErr != nil {
							return emitErr
						}
					}
					return err
				}
				pending = v
				hasPending = true

				if timer == nil {
					timer = clock.NewTimer(d)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C():
						default:
						}
					}
					timer.Reset(d)
				}

			case <-timerC:
				if hasPending {
					hasPending = false
					if err := emit(pending); err != nil {
						return err
					}
				}
			}
		}
	}
}

// Collect runs the stream and calls fn for each value. It returns the error
// that ended the stream, or nil.
func (s Stream[V]) Collect(ctx context.Context, fn func(V) error) error {
	if fn == nil {
		fn = func(V) error { return nil }
	}
	return s(ctx, fn)
}

// ToSlice collects every value of a finite stream.
func (s Stream[V]) ToSlice(ctx context.Context) ([]V, error) {
	var out []V
	err := s(ctx, func(v V) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

// Channel runs the stream on a new goroutine and forwards its values. The
// values channel is closed when the stream ends; result then receives the
// terminal error (nil on success) and is closed. Cancel ctx to stop early.
func (s Stream[V]) Channel(ctx context.Context) (<-chan V, <-chan error) {
	values := make(chan V)
	result := make(chan error, 1)
	go func() {
		var err error
		defer func() {
			if p := recovered(recover()); p != nil {
				err = p
			}
			close(values)
			result <- err
			close(result)
		}()
		err = s(ctx, func(v V) error {
			select {
			case values <- v:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return values, result
}

// LaunchIn collects the stream as a job of scope and discards its values.
// Combine with OnEach, Catch and OnCompletion to observe it.
func (s Stream[V]) LaunchIn(scope *Scope) *Job {
	return scope.Launch(func(ctx context.Context) {
		_ = s.Collect(ctx, nil) //nolint:errcheck // observed through OnCompletion
	})
}

// String names the stream type for diagnostics.
func (s Stream[V]) String() string {
	var zero V
	return fmt.Sprintf("Stream[%T]", zero)
}
