// Package keepalive defends playback against platforms that silence
// audio when the session locks, suspends, or backgrounds the process.
// A Guard watches lifecycle phases and the playback session, and
// escalates from resume commands to full reloads when the backend
// stops responding.
package keepalive

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nvallois/longplay/internal/lifecycle"
	"github.com/nvallois/longplay/internal/playback"
)

const (
	defaultHealthInterval = time.Second
	defaultMaxResumes     = 5
	defaultMaxRestarts    = 10
)

// Option configures a Guard.
type Option func(*Guard)

// WithHealthInterval sets how often backend health is checked while
// recovering in the background.
func WithHealthInterval(d time.Duration) Option {
	return func(g *Guard) { g.healthInterval = d }
}

// WithMaxResumes sets how many consecutive stalled checks are answered
// with a resume command before escalating to a reload.
func WithMaxResumes(n int) Option {
	return func(g *Guard) { g.maxResumes = n }
}

// WithMaxRestarts bounds the emergency reloads per background episode
// before recovery gives up.
func WithMaxRestarts(n int) Option {
	return func(g *Guard) { g.maxRestarts = n }
}

// Guard keeps backgrounded playback alive.
//
// Locking the session reasserts the volume and records whether
// playback was running. Going to the background reconfigures the
// audio output, forces a resume, and starts a health loop: each
// stalled check is answered with a resume command, and after
// maxResumes of those in a row a single emergency reload of the
// current track is tried instead. After maxRestarts reloads the guard
// gives up, leaving the session paused with its recovery flag set.
// Returning to the foreground stops the loop and resumes once if the
// backend is still silent. A user pause or stop tears the watch down.
type Guard struct {
	session *playback.Session
	phases  lifecycle.Source
	log     zerolog.Logger

	healthInterval time.Duration
	maxResumes     int
	maxRestarts    int

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewGuard creates a guard over session driven by phase changes from
// phases. Start must be called before it does anything.
func NewGuard(session *playback.Session, phases lifecycle.Source, log zerolog.Logger, opts ...Option) *Guard {
	g := &Guard{
		session:        session,
		phases:         phases,
		log:            log.With().Str("component", "keepalive").Logger(),
		healthInterval: defaultHealthInterval,
		maxResumes:     defaultMaxResumes,
		maxRestarts:    defaultMaxRestarts,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start subscribes to the session and launches the watch loop.
func (g *Guard) Start(ctx context.Context) {
	if g.started {
		return
	}
	g.started = true
	go g.run(ctx, g.session.Subscribe())
}

// Stop terminates the watch loop.
func (g *Guard) Stop() {
	g.stopOnce.Do(func() { close(g.stopCh) })
	if g.started {
		<-g.doneCh
	}
}

func (g *Guard) run(ctx context.Context, sub *playback.Subscription) {
	defer close(g.doneCh)

	ticker := time.NewTicker(g.healthInterval)
	ticker.Stop()
	defer ticker.Stop()

	var (
		monitoring   bool
		wantPlayback bool
		stuckChecks  int
		restarts     int
	)

	stopMonitor := func() {
		if monitoring {
			ticker.Stop()
			monitoring = false
		}
		stuckChecks = 0
	}

	phaseCh := g.phases.Phases()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stopCh:
			return
		case <-sub.Done:
			return

		case phase, ok := <-phaseCh:
			if !ok {
				phaseCh = nil
				continue
			}
			switch phase {
			case lifecycle.PhaseInactive:
				st := g.session.State()
				wantPlayback = st.Status == playback.StatusPlaying || st.Status == playback.StatusBuffering
				if wantPlayback {
					if err := g.session.ReassertVolume(); err != nil {
						g.log.Warn().Err(err).Msg("reassert volume")
					}
				}
				g.log.Debug().Bool("playing", wantPlayback).Msg("session inactive")

			case lifecycle.PhaseBackground:
				if !wantPlayback {
					st := g.session.State()
					wantPlayback = st.Status == playback.StatusPlaying || st.Status == playback.StatusBuffering
				}
				if !wantPlayback {
					continue
				}
				g.log.Info().Msg("backgrounded while playing, watching backend health")
				if err := g.session.ReconfigureOutput(); err != nil {
					g.log.Warn().Err(err).Msg("reconfigure output")
				}
				if err := g.session.ForceResume(); err != nil {
					g.log.Warn().Err(err).Msg("force resume")
				}
				monitoring = true
				stuckChecks = 0
				restarts = 0
				ticker.Reset(g.healthInterval)

			case lifecycle.PhaseForeground:
				stopMonitor()
				if wantPlayback && g.session.Stalled() {
					g.log.Info().Msg("resuming after return to foreground")
					if err := g.session.ForceResume(); err != nil {
						g.log.Warn().Err(err).Msg("force resume")
					}
				}
				wantPlayback = false
			}

		case st := <-sub.StateChanged:
			// A pause or stop that the guard did not cause means the
			// user took over; recovering would fight them.
			if st.Status == playback.StatusPaused || st.Status == playback.StatusIdle {
				stopMonitor()
				wantPlayback = false
			}

		case <-ticker.C:
			if !monitoring {
				continue
			}
			if !g.session.Stalled() {
				stuckChecks = 0
				continue
			}
			stuckChecks++
			if stuckChecks <= g.maxResumes {
				g.log.Debug().Int("attempt", stuckChecks).Msg("backend stalled, resuming")
				if err := g.session.ForceResume(); err != nil {
					g.log.Warn().Err(err).Msg("force resume")
				}
				continue
			}

			if restarts >= g.maxRestarts {
				g.log.Error().Int("restarts", restarts).Msg("backend unrecoverable, giving up")
				g.session.MarkRecoveryExhausted()
				stopMonitor()
				wantPlayback = false
				continue
			}
			restarts++
			g.log.Warn().Int("restart", restarts).Int("max", g.maxRestarts).Msg("resume commands ignored, reloading track")
			if err := g.session.RestartCurrent(); err != nil {
				g.log.Warn().Err(err).Msg("restart playback")
			}
			stuckChecks = 0
		}
	}
}
