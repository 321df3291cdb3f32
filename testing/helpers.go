// Package testing provides test utilities for relay references and
// subscribers.
package testing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/relay"
)

// TestConfig is a standard configuration type for testing references.
// It implements relay.Validator.
type TestConfig struct {
	Port    int    `yaml:"port" json:"port"`
	Host    string `yaml:"host" json:"host"`
	Timeout int    `yaml:"timeout" json:"timeout"`
}

// Validate implements relay.Validator.
func (c TestConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if c.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// WaitForState waits until the reference reaches the expected state or timeout occurs.
func WaitForState[T relay.Validator](t *testing.T, r *relay.Reference[T], expected relay.State, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return r.State() == expected
	})
}

// RequireState fails the test immediately if the reference is not in the expected state.
func RequireState[T relay.Validator](t *testing.T, r *relay.Reference[T], expected relay.State) {
	t.Helper()
	if got := r.State(); got != expected {
		t.Fatalf("expected state %s, got %s", expected, got)
	}
}

// RequireConfig fails the test if Current() returns false or the value doesn't match.
func RequireConfig[T relay.Validator](t *testing.T, r *relay.Reference[T], check func(T) bool) {
	t.Helper()
	cfg, ok := r.Current()
	if !ok {
		t.Fatal("expected config to be present, got none")
	}
	if !check(cfg) {
		t.Fatalf("config check failed: %+v", cfg)
	}
}

// NewTestReference creates a sync-mode reference fed from a channel. The
// reference's scope is closed when the test ends.
func NewTestReference(t *testing.T, opts ...relay.Option[TestConfig]) (*relay.Reference[TestConfig], chan<- []byte) {
	t.Helper()
	ch := make(chan []byte, 10)
	scope := relay.NewScope(context.Background())
	t.Cleanup(scope.Close)
	r := relay.NewReference[TestConfig](relay.FromChannel(ch), scope, opts...).SyncMode()
	return r, ch
}

// Recorder is a relay.Subscriber that records every signal it receives.
type Recorder[V any] struct {
	mu     sync.Mutex
	values []V
	errs   []error
	closed bool
	done   chan struct{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder[V any]() *Recorder[V] {
	return &Recorder[V]{done: make(chan struct{})}
}

// Submit implements relay.Subscriber.
func (r *Recorder[V]) Submit(v V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

// OnError implements relay.Subscriber.
func (r *Recorder[V]) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

// OnClose implements relay.Subscriber.
func (r *Recorder[V]) OnClose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.done)
	}
}

// Values returns a copy of the values received so far.
func (r *Recorder[V]) Values() []V {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]V(nil), r.values...)
}

// Errors returns a copy of the errors received so far.
func (r *Recorder[V]) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// Closed reports whether OnClose has been called.
func (r *Recorder[V]) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// WaitForValues waits until at least n values have been received.
func (r *Recorder[V]) WaitForValues(t *testing.T, n int, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return len(r.Values()) >= n
	})
}

// RequireClosed fails the test if OnClose is not called within timeout.
func (r *Recorder[V]) RequireClosed(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for OnClose")
	}
}
