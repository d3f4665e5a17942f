package keepalive

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/rs/zerolog"

	"github.com/nvallois/longplay/internal/lifecycle"
	"github.com/nvallois/longplay/internal/playback"
	"github.com/nvallois/longplay/internal/player"
	"github.com/nvallois/longplay/internal/playlist"
)

func testTrack() []playlist.Track {
	return []playlist.Track{{
		ID:       "t1",
		Title:    "Track 1",
		URI:      "/music/t1.flac",
		Duration: 3 * time.Minute,
	}}
}

func newGuardedSession(opts ...Option) (*playback.Session, *player.MockFactory, *lifecycle.ManualSource, *Guard) {
	f := player.NewMockFactory()
	sess := playback.NewSession(f, nil, zerolog.Nop())
	src := lifecycle.NewManualSource()
	g := NewGuard(sess, src, zerolog.Nop(), opts...)
	return sess, f, src, g
}

func TestGuard_InactiveReassertsVolume(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sess, f, src, g := newGuardedSession()
		g.Start(context.Background())
		defer g.Stop()

		_ = sess.SetVolume(0.6)
		_ = sess.Play(testTrack(), 0)
		synctest.Wait()

		src.Announce(lifecycle.PhaseInactive)
		synctest.Wait()

		vols := f.LastHandle().VolumeCalls()
		if len(vols) != 1 || vols[0] != 0.6 {
			t.Errorf("VolumeCalls = %v, want [0.6]", vols)
		}
	})
}

func TestGuard_Inactive_IgnoresPausedSession(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sess, f, src, g := newGuardedSession()
		g.Start(context.Background())
		defer g.Stop()

		_ = sess.Play(testTrack(), 0)
		synctest.Wait()
		_ = sess.Pause()
		synctest.Wait()

		src.Announce(lifecycle.PhaseInactive)
		src.Announce(lifecycle.PhaseBackground)
		time.Sleep(5 * time.Second)
		synctest.Wait()

		if got := f.ConfigureCalls(); got != 0 {
			t.Errorf("ConfigureCalls = %d, want 0", got)
		}
		if got := f.LastHandle().PlayCalls(); got != 0 {
			t.Errorf("PlayCalls = %d, want 0 (paused session left alone)", got)
		}
	})
}

func TestGuard_BackgroundRecoversSilencedPlayback(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sess, f, src, g := newGuardedSession()
		g.Start(context.Background())
		defer g.Stop()

		_ = sess.Play(testTrack(), 0)
		synctest.Wait()
		h := f.LastHandle()

		// The platform silences audio on the way to the background.
		h.SetPlaying(false)
		src.Announce(lifecycle.PhaseInactive)
		src.Announce(lifecycle.PhaseBackground)
		synctest.Wait()

		if got := f.ConfigureCalls(); got != 1 {
			t.Errorf("ConfigureCalls = %d, want 1", got)
		}
		if got := h.PlayCalls(); got != 1 {
			t.Errorf("PlayCalls = %d, want 1", got)
		}
		if sess.Stalled() {
			t.Error("session still stalled after background recovery")
		}

		// Healthy playback needs no further intervention.
		time.Sleep(10 * time.Second)
		synctest.Wait()
		if got := h.PlayCalls(); got != 1 {
			t.Errorf("PlayCalls after healthy watch = %d, want 1", got)
		}
		if got := len(f.LoadCalls()); got != 1 {
			t.Errorf("LoadCalls = %d, want 1 (no reload)", got)
		}
	})
}

func TestGuard_RestartsOnceWhenResumesIgnored(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sess, f, src, g := newGuardedSession()
		g.Start(context.Background())
		defer g.Stop()

		_ = sess.Play(testTrack(), 0)
		synctest.Wait()
		h := f.LastHandle()

		// Resume commands land on a dead output.
		h.SetPlaying(false)
		h.SetPlayError(errors.New("sink gone"))

		src.Announce(lifecycle.PhaseBackground)
		time.Sleep(10 * time.Second)
		synctest.Wait()

		// Five resume attempts on top of the initial one, then a
		// single reload that heals the backend.
		if got := h.PlayCalls(); got != 6 {
			t.Errorf("PlayCalls on dead handle = %d, want 6", got)
		}
		if got := len(f.LoadCalls()); got != 2 {
			t.Errorf("LoadCalls = %d, want 2 (exactly one reload)", got)
		}
		if !h.Unloaded() {
			t.Error("dead handle was not unloaded by the reload")
		}

		st := sess.State()
		if st.Status != playback.StatusPlaying {
			t.Errorf("Status = %v, want Playing", st.Status)
		}
		if st.RecoveryFailed {
			t.Error("RecoveryFailed = true after successful recovery")
		}
	})
}

func TestGuard_GivesUpAfterMaxRestarts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sess, f, src, g := newGuardedSession(WithMaxRestarts(2))
		g.Start(context.Background())

		_ = sess.Play(testTrack(), 0)
		synctest.Wait()

		// Every handle from now on is born silent: reloads cannot fix
		// the output either.
		f.BreakPlayback(errors.New("sink gone"))
		f.LastHandle().SetPlaying(false)
		f.LastHandle().SetPlayError(errors.New("sink gone"))

		src.Announce(lifecycle.PhaseBackground)
		time.Sleep(30 * time.Second)
		synctest.Wait()

		if got := len(f.LoadCalls()); got != 3 {
			t.Errorf("LoadCalls = %d, want 3 (original + 2 reloads)", got)
		}

		st := sess.State()
		if st.Status != playback.StatusPaused {
			t.Errorf("Status = %v, want Paused after giving up", st.Status)
		}
		if !st.RecoveryFailed {
			t.Error("RecoveryFailed = false, want true")
		}

		// The watch is gone: nothing more happens.
		time.Sleep(10 * time.Second)
		synctest.Wait()
		if got := len(f.LoadCalls()); got != 3 {
			t.Errorf("LoadCalls after giving up = %d, want 3", got)
		}

		g.Stop()
	})
}

func TestGuard_ForegroundStopsWatchAndResumesOnce(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sess, f, src, g := newGuardedSession()
		g.Start(context.Background())
		defer g.Stop()

		_ = sess.Play(testTrack(), 0)
		synctest.Wait()
		h := f.LastHandle()

		src.Announce(lifecycle.PhaseInactive)
		src.Announce(lifecycle.PhaseBackground)
		synctest.Wait()

		// Silenced right before the user comes back.
		time.Sleep(500 * time.Millisecond)
		h.SetPlaying(false)
		src.Announce(lifecycle.PhaseForeground)
		synctest.Wait()

		if got := h.PlayCalls(); got != 2 {
			t.Errorf("PlayCalls = %d, want 2 (background resume + foreground resume)", got)
		}

		// The health watch stopped with the foreground transition.
		h.SetPlaying(false)
		time.Sleep(10 * time.Second)
		synctest.Wait()
		if got := h.PlayCalls(); got != 2 {
			t.Errorf("PlayCalls after foreground = %d, want 2", got)
		}
	})
}

func TestGuard_UserPauseStopsWatch(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sess, f, src, g := newGuardedSession()
		g.Start(context.Background())
		defer g.Stop()

		_ = sess.Play(testTrack(), 0)
		synctest.Wait()
		h := f.LastHandle()

		src.Announce(lifecycle.PhaseBackground)
		synctest.Wait()

		_ = sess.Pause()
		synctest.Wait()

		// Pausing by hand ends the watch; the guard must not undo it.
		time.Sleep(10 * time.Second)
		synctest.Wait()

		if got := h.PlayCalls(); got != 1 {
			t.Errorf("PlayCalls = %d, want 1 (background resume only)", got)
		}
		if st := sess.State(); st.Status != playback.StatusPaused {
			t.Errorf("Status = %v, want Paused", st.Status)
		}
	})
}

func TestGuard_StopTerminates(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sess, _, src, g := newGuardedSession()
		g.Start(context.Background())

		_ = sess.Play(testTrack(), 0)
		synctest.Wait()
		src.Announce(lifecycle.PhaseBackground)
		synctest.Wait()

		g.Stop()

		// Stop is idempotent and safe while the watch is active.
		g.Stop()
	})
}
