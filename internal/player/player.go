// Package player defines the media backend contract. A Factory loads
// one URI into a Handle; the Handle drives that single loaded
// resource. Backends report asynchronous events (completion, stalls,
// failures) through status callbacks, while command outcomes travel
// through return values.
package player

import (
	"context"
	"time"
)

// Status is a point-in-time report from a Handle. Backends emit one
// for every asynchronous observable change: completion, buffering
// transitions, mid-stream failures. Synchronous command results are
// not echoed as events.
type Status struct {
	Loaded    bool
	Playing   bool
	Buffering bool
	Position  time.Duration
	Duration  time.Duration
	Finished  bool  // the resource played through to its end
	Err       error // the backend failed mid-stream
}

// StatusFunc receives Status events. Backends invoke it from their own
// goroutines, one event at a time, in emission order.
type StatusFunc func(Status)

// LoadOptions control how a Factory loads a resource.
type LoadOptions struct {
	Autoplay bool
	Start    time.Duration // initial playback position
	Volume   float64       // initial volume level, 0.0 to 1.0
	OnStatus StatusFunc    // may be nil
}

// Handle drives one loaded audio resource. Implementations report
// backend truth from Position, Duration and Playing rather than
// locally predicted values. A Handle is not reusable after Unload.
type Handle interface {
	Play() error
	Pause() error
	Stop() error
	Seek(pos time.Duration) error
	SetVolume(level float64) error
	Playing() bool
	Position() time.Duration
	Duration() time.Duration
	Unload()
}

// Factory creates Handles. The playback session keeps at most one
// Handle live at a time; factories may assume loads never overlap.
type Factory interface {
	Load(ctx context.Context, uri string, opts LoadOptions) (Handle, error)
}

// OutputConfigurator is an optional Factory capability for backends
// whose output path can be (re)configured: the local backend resumes
// a suspended audio device, the MPD backend re-establishes its
// connection. The keepalive guard invokes it before forcing playback
// back to life.
type OutputConfigurator interface {
	ConfigureOutput() error
}
