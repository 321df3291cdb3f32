package relay

import (
	"context"
	"fmt"
)

// Watcher observes a source for changes and emits raw bytes on a channel.
// Implementations must emit the current value immediately upon Watch() being
// called to support initial loading.
type Watcher interface {
	// Watch begins observing the source and returns a channel that emits
	// raw bytes when changes occur. The channel is closed when the context
	// is canceled or an unrecoverable error occurs.
	Watch(ctx context.Context) (<-chan []byte, error)
}

// WatcherFunc adapts a function to Watcher.
type WatcherFunc func(ctx context.Context) (<-chan []byte, error)

// Watch calls f(ctx).
func (f WatcherFunc) Watch(ctx context.Context) (<-chan []byte, error) {
	return f(ctx)
}

// Source produces a stream of raw configuration documents. The packages under
// pkg/ implement it for files, key-value stores and cluster resources.
type Source interface {
	Stream() Stream[[]byte]
}

// FromWatcher returns a stream that starts w on every collection. A failure
// to start watching fails the stream; the stream completes when the watch
// channel closes.
func FromWatcher(w Watcher) Stream[[]byte] {
	return func(ctx context.Context, emit func([]byte) error) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch, err := w.Watch(ctx)
		if err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		return FromChannel(ch)(ctx, emit)
	}
}
