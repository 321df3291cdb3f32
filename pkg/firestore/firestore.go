// Package firestore provides a relay.Source for Firestore documents using
// realtime listeners.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/zoobzio/relay"
)

// DefaultField is the document field read when no field is configured.
const DefaultField = "data"

// Source streams one field of a Firestore document.
type Source struct {
	client     *firestore.Client
	collection string
	document   string
	field      string
}

// Option configures a Source.
type Option func(*Source)

// WithField sets the document field holding the payload.
func WithField(field string) Option {
	return func(s *Source) {
		s.field = field
	}
}

// New creates a Source for the given Firestore document.
func New(client *firestore.Client, collection, document string, opts ...Option) *Source {
	s := &Source{
		client:     client,
		collection: collection,
		document:   document,
		field:      DefaultField,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream returns a stream of the document's payload field: the current value
// if the document exists, then the value on every snapshot. Snapshots of a
// missing document, or without a string or bytes payload, are skipped. The
// stream fails if the listener fails.
func (s *Source) Stream() relay.Stream[[]byte] {
	return func(ctx context.Context, emit func([]byte) error) error {
		snapshots := s.client.Collection(s.collection).Doc(s.document).Snapshots(ctx)
		defer snapshots.Stop()

		for {
			snap, err := snapshots.Next()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("snapshot listener failed: %w", err)
			}
			if !snap.Exists() {
				continue
			}

			value := extractField(snap.Data(), s.field)
			if value == nil {
				continue
			}
			if err := emit(value); err != nil {
				return err
			}
		}
	}
}

func extractField(data map[string]any, field string) []byte {
	switch v := data[field].(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return nil
	}
}

// CreateDocument writes a document with data in the default field.
func CreateDocument(ctx context.Context, client *firestore.Client, collection, document string, data []byte) error {
	_, err := client.Collection(collection).Doc(document).Set(ctx, map[string]any{
		DefaultField: data,
	})
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// UpdateDocument replaces the default field of an existing document.
func UpdateDocument(ctx context.Context, client *firestore.Client, collection, document string, data []byte) error {
	_, err := client.Collection(collection).Doc(document).Update(ctx, []firestore.Update{
		{Path: DefaultField, Value: data},
	})
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}
