package scrobble

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nvallois/longplay/internal/playback"
	"github.com/nvallois/longplay/internal/playlist"
)

// minTrackLength is the shortest track Last.fm accepts a scrobble for.
const minTrackLength = 30 * time.Second

// scrobbleThreshold is the absolute play time past which a track
// counts regardless of its length.
const scrobbleThreshold = 4 * time.Minute

// Submitter is the slice of Client the scrobbler needs. Submissions
// may block on the network; the scrobbler calls them off its event
// loop.
type Submitter interface {
	UpdateNowPlaying(track Track) error
	Scrobble(track Track) error
}

// Scrobbler watches the playback session and reports plays. A track
// starting sends a now-playing update; a track leaving (navigation,
// natural finish, stop) is scrobbled if it played at least half its
// length or four minutes, whichever comes first.
type Scrobbler struct {
	session   *playback.Session
	submitter Submitter
	log       zerolog.Logger

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScrobbler creates a scrobbler over session. Start must be called
// before it does anything.
func NewScrobbler(session *playback.Session, submitter Submitter, log zerolog.Logger) *Scrobbler {
	return &Scrobbler{
		session:   session,
		submitter: submitter,
		log:       log.With().Str("component", "scrobble").Logger(),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start subscribes to the session and launches the watch loop.
func (s *Scrobbler) Start(ctx context.Context) {
	if s.started {
		return
	}
	s.started = true
	go s.run(ctx, s.session.Subscribe())
}

// Stop terminates the loop, scrobbling the in-flight track if it
// already qualifies, and waits for pending submissions.
func (s *Scrobbler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.started {
		<-s.doneCh
	}
	s.wg.Wait()
}

func (s *Scrobbler) run(ctx context.Context, sub *playback.Subscription) {
	defer close(s.doneCh)

	var (
		current   *playlist.Track
		startedAt time.Time
		played    time.Duration
	)

	finalize := func() {
		if current == nil {
			return
		}
		if qualifies(current.Duration, played) {
			s.submit(*current, startedAt)
		}
		current = nil
		played = 0
	}

	for {
		select {
		case <-ctx.Done():
			finalize()
			return
		case <-s.stopCh:
			finalize()
			return
		case <-sub.Done:
			finalize()
			return

		case e := <-sub.TrackChanged:
			finalize()
			if e.Current != nil {
				cur := *e.Current
				current = &cur
				startedAt = time.Now()
				s.nowPlaying(cur)
			}

		case st := <-sub.StateChanged:
			if current != nil && st.Track != nil && st.Track.ID == current.ID && st.Position > played {
				played = st.Position
			}
			// The session settling means the track will not play
			// further; Ended and Idle both land here.
			if st.Status == playback.StatusIdle || st.Status == playback.StatusEnded {
				finalize()
			}
		}
	}
}

// qualifies applies the Last.fm rule: tracks over 30 seconds count
// once they played half their length or four minutes.
func qualifies(duration, played time.Duration) bool {
	if duration > 0 && duration < minTrackLength {
		return false
	}
	if played >= scrobbleThreshold {
		return true
	}
	return duration > 0 && played >= duration/2
}

func (s *Scrobbler) nowPlaying(t playlist.Track) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.submitter.UpdateNowPlaying(Track{
			Artist:   t.Artist,
			Title:    t.Title,
			Album:    t.Album,
			Duration: t.Duration,
		})
		if err != nil {
			s.log.Warn().Err(err).Str("title", t.Title).Msg("now playing update failed")
		}
	}()
}

func (s *Scrobbler) submit(t playlist.Track, startedAt time.Time) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.submitter.Scrobble(Track{
			Artist:    t.Artist,
			Title:     t.Title,
			Album:     t.Album,
			Duration:  t.Duration,
			StartedAt: startedAt,
		})
		if err != nil {
			s.log.Warn().Err(err).Str("title", t.Title).Msg("scrobble failed")
			return
		}
		s.log.Debug().Str("title", t.Title).Str("artist", t.Artist).Msg("scrobbled")
	}()
}
