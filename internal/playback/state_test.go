package playback

import "testing"

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusIdle, "idle"},
		{StatusLoading, "loading"},
		{StatusPlaying, "playing"},
		{StatusPaused, "paused"},
		{StatusBuffering, "buffering"},
		{StatusEnded, "ended"},
		{StatusError, "error"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestState_Active(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusIdle, false},
		{StatusLoading, true},
		{StatusPlaying, true},
		{StatusPaused, true},
		{StatusBuffering, true},
		{StatusEnded, false},
		{StatusError, false},
	}
	for _, tt := range tests {
		st := State{Status: tt.status}
		if got := st.Active(); got != tt.want {
			t.Errorf("Active() with %v = %v, want %v", tt.status, got, tt.want)
		}
	}
}
