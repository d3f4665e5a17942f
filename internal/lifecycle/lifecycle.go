// Package lifecycle reports whether the host environment is in the
// foreground, transitioning away, or backgrounded. Playback keepalive
// reacts to these phases when the platform gets aggressive about
// silencing audio.
package lifecycle

import "sync"

// Phase is a coarse host state.
type Phase int

const (
	// PhaseForeground: the session is active and unlocked.
	PhaseForeground Phase = iota
	// PhaseInactive: transitional, the screen locked but the process
	// keeps running normally.
	PhaseInactive
	// PhaseBackground: the host suspended or otherwise pushed the
	// process to the background; audio may have been silenced.
	PhaseBackground
)

func (p Phase) String() string {
	switch p {
	case PhaseForeground:
		return "foreground"
	case PhaseInactive:
		return "inactive"
	case PhaseBackground:
		return "background"
	default:
		return "unknown"
	}
}

// Source delivers phase transitions. The channel is closed when the
// source shuts down.
type Source interface {
	Phases() <-chan Phase
	Close() error
}

// ManualSource is a Source driven by explicit Announce calls. It
// backs tests and platforms without a system integration.
type ManualSource struct {
	mu     sync.Mutex
	ch     chan Phase
	closed bool
}

func NewManualSource() *ManualSource {
	return &ManualSource{ch: make(chan Phase, 8)}
}

func (s *ManualSource) Phases() <-chan Phase {
	return s.ch
}

// Announce delivers a phase to the consumer. It never blocks; with no
// consumer draining, the oldest announcements are simply lost.
func (s *ManualSource) Announce(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- p:
	default:
	}
}

func (s *ManualSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}
