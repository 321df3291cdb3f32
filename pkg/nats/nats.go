// Package nats provides a relay.Source for NATS JetStream key-value entries.
package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/zoobzio/relay"
)

// Source streams the value of a NATS KV key.
type Source struct {
	kv  jetstream.KeyValue
	key string
}

// Option configures a Source.
type Option func(*Source)

// New creates a Source for the given NATS KV key.
func New(kv jetstream.KeyValue, key string, opts ...Option) *Source {
	s := &Source{
		kv:  kv,
		key: key,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream returns a stream of the key's value: the current value if present,
// then every later put. Deletes and purges are skipped. The stream completes
// if the server closes the watch.
func (s *Source) Stream() relay.Stream[[]byte] {
	return func(ctx context.Context, emit func([]byte) error) error {
		watcher, err := s.kv.Watch(ctx, s.key)
		if err != nil {
			return fmt.Errorf("failed to watch key: %w", err)
		}
		defer watcher.Stop() //nolint:errcheck // nothing to do on stop failure

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case entry, ok := <-watcher.Updates():
				if !ok {
					return nil
				}
				// nil marks the end of the initial values
				if entry == nil {
					continue
				}
				if op := entry.Operation(); op == jetstream.KeyValueDelete || op == jetstream.KeyValuePurge {
					continue
				}
				if err := emit(entry.Value()); err != nil {
					return err
				}
			}
		}
	}
}
