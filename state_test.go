package relay

import "testing"

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateLoading, "loading"},
		{StateHealthy, "healthy"},
		{StateDegraded, "degraded"},
		{StateEmpty, "empty"},
		{State(999), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestState_Ready(t *testing.T) {
	if StateLoading.Ready() {
		t.Error("loading should not be ready")
	}
	if !StateHealthy.Ready() {
		t.Error("healthy should be ready")
	}
	if !StateDegraded.Ready() {
		t.Error("degraded keeps the previous value and should be ready")
	}
	if StateEmpty.Ready() {
		t.Error("empty should not be ready")
	}
}
