//go:build linux

package lifecycle

import (
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	logindManagerIface = "org.freedesktop.login1.Manager"
	logindSessionIface = "org.freedesktop.login1.Session"
)

// NewSystemSource watches logind for suspend and lock signals:
// entering sleep maps to Background, waking and unlocking map to
// Foreground, locking maps to Inactive. When the system bus is
// unavailable it returns a source that never fires, so callers need
// no special case.
func NewSystemSource(log zerolog.Logger) (Source, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		log.Warn().Err(err).Msg("system bus unavailable, lifecycle watching disabled")
		return NewManualSource(), nil //nolint:nilerr // graceful fallback without D-Bus
	}

	matches := [][]dbus.MatchOption{
		{dbus.WithMatchInterface(logindManagerIface), dbus.WithMatchMember("PrepareForSleep")},
		{dbus.WithMatchInterface(logindSessionIface), dbus.WithMatchMember("Lock")},
		{dbus.WithMatchInterface(logindSessionIface), dbus.WithMatchMember("Unlock")},
	}
	for _, m := range matches {
		if err := conn.AddMatchSignal(m...); err != nil {
			conn.Close()
			return nil, err
		}
	}

	s := &logindSource{
		conn:    conn,
		signals: make(chan *dbus.Signal, 16),
		phases:  make(chan Phase, 8),
		log:     log.With().Str("component", "lifecycle").Logger(),
	}
	conn.Signal(s.signals)
	go s.watch()
	return s, nil
}

type logindSource struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal
	phases  chan Phase
	log     zerolog.Logger
}

func (s *logindSource) Phases() <-chan Phase {
	return s.phases
}

// Close tears down the bus connection; the signal channel closes with
// it, which ends the watch goroutine.
func (s *logindSource) Close() error {
	return s.conn.Close()
}

func (s *logindSource) watch() {
	defer close(s.phases)
	for sig := range s.signals {
		if sig == nil {
			continue
		}
		switch sig.Name {
		case logindManagerIface + ".PrepareForSleep":
			if len(sig.Body) == 0 {
				continue
			}
			sleeping, ok := sig.Body[0].(bool)
			if !ok {
				continue
			}
			if sleeping {
				s.emit(PhaseBackground)
			} else {
				s.emit(PhaseForeground)
			}
		case logindSessionIface + ".Lock":
			s.emit(PhaseInactive)
		case logindSessionIface + ".Unlock":
			s.emit(PhaseForeground)
		}
	}
}

func (s *logindSource) emit(p Phase) {
	s.log.Debug().Stringer("phase", p).Msg("lifecycle phase")
	select {
	case s.phases <- p:
	default:
	}
}
