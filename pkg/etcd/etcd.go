// Package etcd provides a relay.Source for etcd keys using the Watch API.
package etcd

import (
	"context"
	"errors"
	"fmt"

	"github.com/zoobzio/relay"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// errWatchClosed reports a watch channel closed by the client.
var errWatchClosed = errors.New("etcd watch closed")

// Source streams the value of an etcd key.
type Source struct {
	client *clientv3.Client
	key    string
}

// Option configures a Source.
type Option func(*Source)

// New creates a Source for the given etcd key.
func New(client *clientv3.Client, key string, opts ...Option) *Source {
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
// exists, then the value on every put. Deletes are skipped. The watch starts
// at the revision after the initial read, so no put is missed in between.
// The stream fails on a watch error such as compaction.
func (s *Source) Stream() relay.Stream[[]byte] {
	return func(ctx context.Context, emit func([]byte) error) error {
		resp, err := s.client.Get(ctx, s.key)
		if err != nil {
			return fmt.Errorf("failed to get initial value: %w", err)
		}
		if len(resp.Kvs) > 0 {
			if err := emit(resp.Kvs[0].Value); err != nil {
				return err
			}
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		watchChan := s.client.Watch(clientv3.WithRequireLeader(ctx), s.key, clientv3.WithRev(resp.Header.Revision+1))
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case watchResp, ok := <-watchChan:
				if !ok {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					return errWatchClosed
				}
				if err := watchResp.Err(); err != nil {
					return fmt.Errorf("etcd watch failed: %w", err)
				}
				for _, event := range watchResp.Events {
					if event.Type != clientv3.EventTypePut {
						continue
					}
					if err := emit(event.Kv.Value); err != nil {
						return err
					}
				}
			}
		}
	}
}
