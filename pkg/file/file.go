// Package file provides a relay.Source for configuration files using
// fsnotify.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/zoobzio/relay"
)

// Source streams the contents of a file each time it is written.
//
// The parent directory is watched rather than the file itself, so editors
// and deploy tools that replace the file with a rename keep being followed.
type Source struct {
	path string

	// watching is called once the watch is registered. Tests only.
	watching func()
}

// Option configures a Source.
type Option func(*Source)

// New creates a Source for the file at path.
func New(path string, opts ...Option) *Source {
	s := &Source{path: filepath.Clean(path)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream returns a stream of the file's contents: the current contents
// first, then the contents after every change. Empty reads are skipped, as
// they are seen mid-write. The stream fails if the file cannot be read at
// start or the watcher fails.
func (s *Source) Stream() relay.Stream[[]byte] {
	return func(ctx context.Context, emit func([]byte) error) error {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create fsnotify watcher: %w", err)
		}
		defer watcher.Close()

		if err := watcher.Add(filepath.Dir(s.path)); err != nil {
			return fmt.Errorf("failed to watch file %s: %w", s.path, err)
		}

		if s.watching != nil {
			s.watching()
		}

		// The watch is registered first so a write after this read is
		// still reported.
		initial, err := os.ReadFile(s.path)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", s.path, err)
		}
		if err := emit(initial); err != nil {
			return err
		}

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) != s.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				data, err := os.ReadFile(s.path)
				if err != nil {
					if errors.Is(err, os.ErrNotExist) {
						continue
					}
					return fmt.Errorf("failed to read file %s: %w", s.path, err)
				}
				if len(data) == 0 {
					continue
				}
				if err := emit(data); err != nil {
					return err
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if errors.Is(err, fsnotify.ErrEventOverflow) {
					continue
				}
				return fmt.Errorf("file watcher failed: %w", err)
			}
		}
	}
}
