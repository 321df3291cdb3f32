package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/zoobzio/relay"
)

type appConfig struct {
	Feature string `json:"feature" yaml:"feature"`
	Limit   int    `json:"limit" yaml:"limit"`
}

// Validate implements relay.Validator.
func (c appConfig) Validate() error {
	if c.Feature == "" {
		return errors.New("feature is required")
	}
	if c.Limit < 0 {
		return fmt.Errorf("limit must be >= 0, got %d", c.Limit)
	}
	return nil
}

// newScope returns a scope that is closed when the test ends.
func newScope(t *testing.T) *relay.Scope {
	t.Helper()
	scope := relay.NewScope(context.Background())
	t.Cleanup(scope.Close)
	return scope
}

// waitFor polls a condition until it returns true or timeout is reached.
// Uses short polling intervals for fast tests with reliable results.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
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
