package playback

import (
	"errors"
	"fmt"
)

// ErrNoTrack reports a jump to a track the playlist does not hold.
var ErrNoTrack = errors.New("no such track")

// ErrClosed reports a command issued after Close.
var ErrClosed = errors.New("session closed")

// LoadError reports a track that could not be loaded. The session
// lands in StatusError with this as its terminal error.
type LoadError struct {
	URI string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.URI, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// BackendError reports the audio backend failing mid-stream, after a
// track loaded successfully.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("audio backend: %v", e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
