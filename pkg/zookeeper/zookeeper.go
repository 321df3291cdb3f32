// Package zookeeper provides a relay.Source for ZooKeeper nodes using
// one-shot watches.
package zookeeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-zookeeper/zk"
	"github.com/zoobzio/relay"
)

// Source streams the data of a ZooKeeper node.
type Source struct {
	conn *zk.Conn
	path string
}

// Option configures a Source.
type Option func(*Source)

// New creates a Source for the node at path.
func New(conn *zk.Conn, path string, opts ...Option) *Source {
	s := &Source{
		conn: conn,
		path: path,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream returns a stream of the node's data: the current data if the node
// exists, then the data after every change. A missing or deleted node is
// waited for. The stream fails if the connection is closed or a watch
// cannot be set.
func (s *Source) Stream() relay.Stream[[]byte] {
	return func(ctx context.Context, emit func([]byte) error) error {
		for {
			data, _, events, err := s.conn.GetW(s.path)
			if errors.Is(err, zk.ErrNoNode) {
				exists, _, existsEvents, err := s.conn.ExistsW(s.path)
				if err != nil {
					return fmt.Errorf("failed to watch %s: %w", s.path, err)
				}
				if exists {
					continue
				}
				events = existsEvents
			} else if err != nil {
				return fmt.Errorf("failed to read %s: %w", s.path, err)
			} else if err := emit(data); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case event := <-events:
				if event.Err != nil {
					return fmt.Errorf("watch on %s failed: %w", s.path, event.Err)
				}
				if event.Type == zk.EventNotWatching {
					return fmt.Errorf("watch on %s dropped: %w", s.path, zk.ErrClosing)
				}
			}
		}
	}
}
