// Package redis provides a relay.Source for Redis keys using keyspace
// notifications.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/zoobzio/relay"
)

// Source streams the value of a Redis key. Requires keyspace notifications:
//
//	CONFIG SET notify-keyspace-events KEA
//
// Or in redis.conf:
//
//	notify-keyspace-events KEA
type Source struct {
	client *redis.Client
	key    string
	db     int
}

// Option configures a Source.
type Option func(*Source)

// WithDB sets the database number used in the keyspace channel.
// Defaults to 0.
func WithDB(db int) Option {
	return func(s *Source) {
		s.db = db
	}
}

// New creates a Source for the given Redis key.
func New(client *redis.Client, key string, opts ...Option) *Source {
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
// exists, then the value after every write. Deletes are skipped. The stream
// fails if the subscription cannot be established or a read fails.
func (s *Source) Stream() relay.Stream[[]byte] {
	return func(ctx context.Context, emit func([]byte) error) error {
		channel := fmt.Sprintf("__keyspace@%d__:%s", s.db, s.key)
		pubsub := s.client.Subscribe(ctx, channel)
		defer pubsub.Close()

		if _, err := pubsub.Receive(ctx); err != nil {
			return fmt.Errorf("failed to subscribe to keyspace notifications: %w", err)
		}

		if err := s.emitCurrent(ctx, emit); err != nil {
			return err
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				switch msg.Payload {
				case "set", "hset", "mset", "setex", "psetex", "setnx", "setrange", "append":
					if err := s.emitCurrent(ctx, emit); err != nil {
						return err
					}
				}
			}
		}
	}
}

func (s *Source) emitCurrent(ctx context.Context, emit func([]byte) error) error {
	val, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read key %s: %w", s.key, err)
	}
	return emit(val)
}
