// Package consul provides a relay.Source for Consul KV keys using blocking
// queries.
package consul

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/zoobzio/relay"
)

// Source streams the value of a Consul KV key.
type Source struct {
	client   *api.Client
	key      string
	waitTime time.Duration
}

// Option configures a Source.
type Option func(*Source)

// WithWaitTime sets the maximum duration of each blocking query.
// Defaults to the agent's default of five minutes.
func WithWaitTime(d time.Duration) Option {
	return func(s *Source) {
		s.waitTime = d
	}
}

// New creates a Source for the given Consul KV key.
func New(client *api.Client, key string, opts ...Option) *Source {
	s := &Source{
		client: client,
		key:    key,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream returns a stream of the key's value: the current value if the key
// exists, then the value whenever its modify index advances. Deletes are
// skipped. The stream fails when a query fails.
func (s *Source) Stream() relay.Stream[[]byte] {
	return func(ctx context.Context, emit func([]byte) error) error {
		kv := s.client.KV()

		pair, meta, err := kv.Get(s.key, (&api.QueryOptions{}).WithContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to get initial value: %w", err)
		}
		lastIndex := meta.LastIndex
		if pair != nil {
			if err := emit(pair.Value); err != nil {
				return err
			}
		}

		for {
			opts := (&api.QueryOptions{
				WaitIndex: lastIndex,
				WaitTime:  s.waitTime,
			}).WithContext(ctx)

			pair, meta, err := kv.Get(s.key, opts)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("blocking query failed: %w", err)
			}

			// An index that goes backwards means the agent's state was reset.
			if meta.LastIndex < lastIndex {
				lastIndex = 0
				continue
			}
			if meta.LastIndex == lastIndex {
				continue
			}
			lastIndex = meta.LastIndex
			if pair == nil {
				continue
			}
			if err := emit(pair.Value); err != nil {
				return err
			}
		}
	}
}
