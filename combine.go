package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoInitialValue is reported when a combined source completes before it
// produced a value.
var ErrNoInitialValue = errors.New("source completed without a value")

// SourceError identifies which of several combined sources failed.
type SourceError struct {
	Index int
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %d: %v", e.Index, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// CombineLatest runs every stream concurrently and, once each has produced at
// least one value, emits a snapshot of the latest value from each, in the
// order the streams were given. Every later value from any stream emits a new
// snapshot. The combined stream completes when all sources complete and fails
// with a SourceError when any source fails or completes without a value.
func CombineLatest[V any](streams ...Stream[V]) Stream[[]V] {
	return func(ctx context.Context, emit func([]V) error) error {
		if len(streams) == 0 {
			return nil
		}

		ctx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup
		defer func() {
			cancel()
			wg.Wait()
		}()

		type update struct {
			index int
			value V
			done  bool
			err   error
		}
		updates := make(chan update)

		for i, s := range streams {
			wg.Add(1)
			go func(index int, s Stream[V]) {
				defer wg.Done()
				var err error
				func() {
					defer func() {
						if p := recovered(recover()); p != nil {
							err = p
						}
					}()
					err = s(ctx, func(v V) error {
						select {
						case updates <- update{index: index, value: v}:
							return nil
						case <-ctx.Done():
							return ctx.Err()
						}
					})
				}()
				select {
				case updates <- update{index: index, done: true, err: err}:
				case <-ctx.Done():
				}
			}(i, s)
		}

		latest := make([]V, len(streams))
		ready := make([]bool, len(streams))
		readyCount := 0
		remaining := len(streams)

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()

			case u := <-updates:
				if u.done {
					if u.err != nil {
						return &SourceError{Index: u.index, Err: u.err}
					}
					if !ready[u.index] {
						return &SourceError{Index: u.index, Err: ErrNoInitialValue}
					}
					remaining--
					if remaining == 0 {
						return nil
					}
					continue
				}

				latest[u.index] = u.value
				if !ready[u.index] {
					ready[u.index] = true
					readyCount++
				}
				if readyCount < len(streams) {
					continue
				}
				snapshot := append([]V(nil), latest...)
				if err := emit(snapshot); err != nil {
					return err
				}
			}
		}
	}
}
