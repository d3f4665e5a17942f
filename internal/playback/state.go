// Package playback drives one audio session: a single backend load at
// a time, navigated through a playlist, with every mutation published
// to subscribers as an immutable snapshot.
package playback

import (
	"time"

	"github.com/nvallois/longplay/internal/playlist"
)

// Status is the session lifecycle state.
//
// State machine:
//
//	Idle ──► Loading ──► Playing ◄──► Paused
//	            │           │ ▲
//	            │           │ └──── Buffering
//	            ▼           ▼
//	          Error       Ended ──► Loading (next track)
//	            │           │
//	            ▼           ▼
//	           Idle (settles, ready for retry / restart)
//
// Error and Ended are announced to subscribers, then the session
// settles back to Idle: a failed load must not leave it stuck, and
// the end of the playlist is a full stop. The last error stays on the
// snapshot until the next load or stop clears it.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusPlaying
	StatusPaused
	StatusBuffering
	StatusEnded
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusBuffering:
		return "buffering"
	case StatusEnded:
		return "ended"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of the session captured after a mutation.
// Position is the value known at capture time; the live position
// comes from the backend via Session.PositionNow.
type State struct {
	Status     Status
	Track      *playlist.Track
	TrackIndex int
	Position   time.Duration
	Duration   time.Duration
	Volume     float64
	Shuffle    bool
	Repeat     bool

	// Generation counts loads. A snapshot from a superseded load
	// carries a lower value than the current one.
	Generation uint64

	RecoveryFailed bool
	Err            error
}

// Active reports whether a track is loaded or loading.
func (s State) Active() bool {
	switch s.Status {
	case StatusLoading, StatusPlaying, StatusPaused, StatusBuffering:
		return true
	default:
		return false
	}
}
