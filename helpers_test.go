package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// newTestScope returns a scope that is cancelled and drained when the test
// ends.
func newTestScope(t *testing.T) *Scope {
	t.Helper()
	scope := NewScope(context.Background())
	t.Cleanup(scope.Close)
	return scope
}

// OptionTestConfig is a config for pipeline tests.
type OptionTestConfig struct {
	Value int `json:"value"`
}

func (c OptionTestConfig) Validate() error {
	if c.Value < 0 {
		return errors.New("value must be non-negative")
	}
	return nil
}

// newSyncReference returns a sync-mode Reference over a buffered channel.
func newSyncReference(t *testing.T, opts ...Option[OptionTestConfig]) (*Reference[OptionTestConfig], chan []byte) {
	t.Helper()
	ch := make(chan []byte, 8)
	ref := NewReference[OptionTestConfig](FromChannel(ch), newTestScope(t), opts...).SyncMode()
	return ref, ch
}

// recorder is a Subscriber that records every signal it receives.
type recorder[V any] struct {
	mu     sync.Mutex
	values []V
	errs   []error
	closes int
	closed chan struct{}
}

func newRecorder[V any]() *recorder[V] {
	return &recorder[V]{closed: make(chan struct{})}
}

func (r *recorder[V]) Submit(v V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder[V]) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder[V]) OnClose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	if r.closes == 1 {
		close(r.closed)
	}
}

func (r *recorder[V]) snapshot() ([]V, []error, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]V(nil), r.values...), append([]error(nil), r.errs...), r.closes
}

// waitClosed fails the test if OnClose is not called within a second.
func (r *recorder[V]) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-r.closed:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnClose")
	}
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within timeout")
		}
		time.Sleep(time.Millisecond)
	}
}
