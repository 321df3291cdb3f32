package relay

import (
	"testing"
	"time"
)

func TestKeySubscription(t *testing.T) {
	field := KeySubscription.Field("abc")
	if field.Key().Name() != "subscription" {
		t.Errorf("expected key 'subscription', got %q", field.Key().Name())
	}
}

func TestKeyDelivered(t *testing.T) {
	field := KeyDelivered.Field(3)
	if field.Key().Name() != "delivered" {
		t.Errorf("expected key 'delivered', got %q", field.Key().Name())
	}
}

func TestKeyState(t *testing.T) {
	field := KeyState.Field("healthy")
	if field.Key().Name() != "state" {
		t.Errorf("expected key 'state', got %q", field.Key().Name())
	}
}

func TestKeyError(t *testing.T) {
	field := KeyError.Field("something went wrong")
	if field.Key().Name() != "error" {
		t.Errorf("expected key 'error', got %q", field.Key().Name())
	}
}

func TestKeyDebounce(t *testing.T) {
	field := KeyDebounce.Field(100 * time.Millisecond)
	if field.Key().Name() != "debounce" {
		t.Errorf("expected key 'debounce', got %q", field.Key().Name())
	}
}
