// Package postgres provides a relay.Source for a row of a PostgreSQL table
// using LISTEN/NOTIFY.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zoobzio/relay"
)

// Source streams the value column of one row, keyed by the key column.
// Requires a trigger on the table that notifies with the row key:
//
//	CREATE OR REPLACE FUNCTION notify_config_change() RETURNS trigger AS $$
//	BEGIN
//	    PERFORM pg_notify('config_changed', NEW.key);
//	    RETURN NEW;
//	END;
//	$$ LANGUAGE plpgsql;
//
//	CREATE TRIGGER config_change_trigger
//	    AFTER INSERT OR UPDATE ON config
//	    FOR EACH ROW EXECUTE FUNCTION notify_config_change();
type Source struct {
	pool    *pgxpool.Pool
	channel string
	key     string
	table   string
}

// Option configures a Source.
type Option func(*Source)

// WithTable sets the table name to query for values.
// Defaults to "config".
func WithTable(table string) Option {
	return func(s *Source) {
		s.table = table
	}
}

// New creates a Source listening on channel for notifications about key.
func New(pool *pgxpool.Pool, channel, key string, opts ...Option) *Source {
	s := &Source{
		pool:    pool,
		channel: channel,
		key:     key,
		table:   "config",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream returns a stream of the row's value: the current value if the row
// exists, then the value after every notification for the key. The listening
// connection is held for the duration of each collection.
func (s *Source) Stream() relay.Stream[[]byte] {
	return func(ctx context.Context, emit func([]byte) error) error {
		conn, err := s.pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire connection: %w", err)
		}
		defer conn.Release()

		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
			return fmt.Errorf("failed to listen on channel %s: %w", s.channel, err)
		}
		defer func() {
			_, _ = conn.Exec(context.WithoutCancel(ctx), "UNLISTEN "+pgx.Identifier{s.channel}.Sanitize()) //nolint:errcheck // best effort before release
		}()

		if err := s.emitCurrent(ctx, emit); err != nil {
			return err
		}

		for {
			notification, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("failed waiting for notification: %w", err)
			}
			if notification.Payload != s.key {
				continue
			}
			if err := s.emitCurrent(ctx, emit); err != nil {
				return err
			}
		}
	}
}

func (s *Source) emitCurrent(ctx context.Context, emit func([]byte) error) error {
	value, err := s.fetchValue(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", s.key, err)
	}
	return emit(value)
}

func (s *Source) fetchValue(ctx context.Context) ([]byte, error) {
	var value []byte
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", pgx.Identifier{s.table}.Sanitize())
	if err := s.pool.QueryRow(ctx, query, s.key).Scan(&value); err != nil {
		return nil, err
	}
	return value, nil
}
