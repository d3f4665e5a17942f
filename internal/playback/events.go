package playback

import "github.com/nvallois/longplay/internal/playlist"

// TrackChange is emitted when the session moves to a different track.
//
// Emitted by:
//   - Play/PlayAt/PlayID: when the selected track differs from the
//     one last announced
//   - Next/Previous: on every successful navigation
//   - automatic advance when a track finishes
//
// NOT emitted by pause, resume, seek or stop. Subscribers handle
// track side effects (notifications, scrobbling, now-playing) off
// this event rather than diffing state snapshots.
type TrackChange struct {
	Previous      *playlist.Track
	Current       *playlist.Track
	PreviousIndex int
	Index         int
}

// QueueChange is emitted when the playlist contents, order or
// selection change.
type QueueChange struct {
	Tracks  []playlist.Track
	Index   int
	Shuffle bool
	Repeat  bool
}

// ErrorEvent is emitted when an operation fails, whether or not the
// failure is terminal for the session.
type ErrorEvent struct {
	Operation string
	URI       string
	Err       error
}
