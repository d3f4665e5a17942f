package playback

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultPollInterval = time.Second
	defaultSaveInterval = 5 * time.Second
)

// PositionSaver persists playback positions.
type PositionSaver interface {
	SavePosition(trackID string, pos time.Duration) error
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithPollInterval sets how often the backend position is read while
// playing.
func WithPollInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.poll = d }
}

// WithSaveInterval sets how often the position is persisted. It is
// rounded down to a whole number of poll intervals.
func WithSaveInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.save = d }
}

// Tracker polls the backend position while the session plays. Every
// tick feeds the session snapshot; a slower cadence persists the
// position so interrupted sessions can resume close to where they
// stopped. Pausing persists immediately; stopping or finishing does
// not, since the session already settled those positions.
type Tracker struct {
	session *Session
	saver   PositionSaver
	log     zerolog.Logger

	poll      time.Duration
	save      time.Duration
	saveEvery int

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewTracker creates a tracker bound to a session. Start must be
// called before it does anything.
func NewTracker(session *Session, saver PositionSaver, log zerolog.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		session: session,
		saver:   saver,
		log:     log.With().Str("component", "tracker").Logger(),
		poll:    defaultPollInterval,
		save:    defaultSaveInterval,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.saveEvery = int(t.save / t.poll)
	if t.saveEvery < 1 {
		t.saveEvery = 1
	}
	return t
}

// Start subscribes to the session and launches the polling loop. The
// subscription is taken before Start returns, so no event is missed.
func (t *Tracker) Start(ctx context.Context) {
	if t.started {
		return
	}
	t.started = true
	go t.run(ctx, t.session.Subscribe())
}

// Stop terminates the loop, persisting the last polled position if a
// track was still playing.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	if t.started {
		<-t.doneCh
	}
}

func (t *Tracker) run(ctx context.Context, sub *Subscription) {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.poll)
	ticker.Stop()
	defer ticker.Stop()

	var (
		polling bool
		ticks   int
		trackID string
		lastPos time.Duration
	)

	finalSave := func() {
		if polling && trackID != "" {
			t.persist(trackID, lastPos)
		}
	}

	for {
		select {
		case <-ctx.Done():
			finalSave()
			return
		case <-t.stopCh:
			finalSave()
			return
		case <-sub.Done:
			return

		case st := <-sub.StateChanged:
			switch st.Status {
			case StatusPlaying, StatusBuffering:
				if st.Track != nil {
					if st.Track.ID != trackID {
						ticks = 0
						lastPos = st.Position
					}
					trackID = st.Track.ID
				}
				if !polling {
					polling = true
					ticks = 0
					ticker.Reset(t.poll)
				}

			case StatusPaused:
				if polling {
					ticker.Stop()
					polling = false
					if trackID != "" {
						t.persist(trackID, st.Position)
					}
				}

			case StatusLoading:
				// The load tears the old handle down; wait for the
				// new track to report Playing.
				ticker.Stop()
				polling = false
				trackID = ""

			default:
				// Idle, Ended, Error: the session settled the
				// position itself, nothing to persist here.
				ticker.Stop()
				polling = false
				trackID = ""
			}

		case <-ticker.C:
			if !polling {
				continue
			}
			ticks++
			pos := t.session.PositionNow()
			lastPos = pos
			t.session.PublishPosition(pos)
			if ticks%t.saveEvery == 0 {
				t.persist(trackID, pos)
			}
		}
	}
}

func (t *Tracker) persist(trackID string, pos time.Duration) {
	if t.saver == nil || trackID == "" {
		return
	}
	if err := t.saver.SavePosition(trackID, pos); err != nil {
		t.log.Warn().Err(err).Str("track", trackID).Msg("save position")
	}
}
