package playback

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nvallois/longplay/internal/player"
	"github.com/nvallois/longplay/internal/playlist"
)

// Loads that take longer than this fail rather than leaving the
// session stuck in Loading.
const defaultLoadTimeout = 15 * time.Second

// Saved positions this close to the end restart the track instead.
const resumeTailMargin = 5 * time.Second

// PositionStore persists resume positions between runs.
type PositionStore interface {
	SavePosition(trackID string, pos time.Duration) error
	Position(trackID string) (time.Duration, error)
	ResetPosition(trackID string) error
}

// Option configures a Session.
type Option func(*Session)

// WithLoadTimeout bounds how long a single track load may take.
func WithLoadTimeout(d time.Duration) Option {
	return func(s *Session) { s.loadTimeout = d }
}

// WithVolume sets the initial volume level (0.0 to 1.0).
func WithVolume(level float64) Option {
	return func(s *Session) { s.volume = clampVolume(level) }
}

// WithResume controls whether loads resume from saved positions.
func WithResume(enabled bool) Option {
	return func(s *Session) { s.resume = enabled }
}

// Session is the single owner of playback state. Commands mutate it
// under one lock; backend loads run asynchronously and carry a
// generation number, so a load or event that belongs to a superseded
// command is discarded instead of applied.
type Session struct {
	mu sync.Mutex

	factory   player.Factory
	positions PositionStore
	log       zerolog.Logger

	loadTimeout time.Duration
	resume      bool

	queue      *playlist.Controller
	handle     player.Handle
	generation uint64

	status         Status
	position       time.Duration
	duration       time.Duration
	volume         float64
	recoveryFailed bool
	err            error

	lastTrackID string
	closed      bool

	subsMu sync.RWMutex
	subs   []*Subscription
}

// NewSession creates an idle session. Playback starts once a playlist
// is handed over through Play or SetQueue.
func NewSession(factory player.Factory, positions PositionStore, log zerolog.Logger, opts ...Option) *Session {
	s := &Session{
		factory:     factory,
		positions:   positions,
		log:         log.With().Str("component", "playback").Logger(),
		loadTimeout: defaultLoadTimeout,
		resume:      true,
		queue:       playlist.New(),
		status:      StatusIdle,
		volume:      1.0,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe creates a new event subscription.
func (s *Session) Subscribe() *Subscription {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	sub := newSubscription()
	s.subs = append(s.subs, sub)
	return sub
}

// Close unloads the backend and closes every subscription.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.generation++
	if s.handle != nil {
		s.position = s.handle.Position()
	}
	s.unloadLocked()
	s.status = StatusIdle
	s.mu.Unlock()

	s.subsMu.Lock()
	for _, sub := range s.subs {
		sub.close()
	}
	s.subs = nil
	s.subsMu.Unlock()
	return nil
}

// SetQueue replaces the playlist without touching playback. Used to
// restore the previous queue at startup.
func (s *Session) SetQueue(tracks []playlist.Track, startIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Replace(tracks, startIndex)
	s.emitQueueLocked()
}

// RestoreQueue reinstates a saved playlist snapshot, order and flags
// included, without touching playback. Used to bring the previous
// run's queue back at startup.
func (s *Session) RestoreQueue(st playlist.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Restore(st)
	s.emitQueueLocked()
	s.emitStateLocked()
}

// Play replaces the playlist and starts playback at startIndex.
func (s *Session) Play(tracks []playlist.Track, startIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	prev, prevIdx := s.currentCopyLocked(), s.queue.CurrentIndex()
	s.queue.Replace(tracks, startIndex)
	s.emitQueueLocked()

	t := s.queue.Current()
	if t == nil {
		return playlist.ErrEmpty
	}
	s.startLoadLocked(*t, true, -1)
	s.emitStateLocked()
	s.emitTrackLocked(prev, prevIdx)
	return nil
}

// PlayAt jumps to a playlist index and starts playback there.
func (s *Session) PlayAt(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	prev, prevIdx := s.currentCopyLocked(), s.queue.CurrentIndex()
	t, ok := s.queue.JumpTo(index)
	if !ok {
		return ErrNoTrack
	}
	s.startLoadLocked(t, true, -1)
	s.emitQueueLocked()
	s.emitStateLocked()
	s.emitTrackLocked(prev, prevIdx)
	return nil
}

// PlayTrack plays one track. When the track is already part of the
// playlist the selection jumps to it; otherwise the playlist is
// replaced by a single-track one.
func (s *Session) PlayTrack(t playlist.Track) error {
	s.mu.Lock()
	member := false
	for _, qt := range s.queue.Tracks() {
		if qt.ID == t.ID {
			member = true
			break
		}
	}
	s.mu.Unlock()

	if member {
		return s.PlayID(t.ID)
	}
	return s.Play([]playlist.Track{t}, 0)
}

// PlayID jumps to the track with the given id and starts playback.
func (s *Session) PlayID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	prev, prevIdx := s.currentCopyLocked(), s.queue.CurrentIndex()
	t, ok := s.queue.JumpToID(id)
	if !ok {
		return ErrNoTrack
	}
	s.startLoadLocked(t, true, -1)
	s.emitQueueLocked()
	s.emitStateLocked()
	s.emitTrackLocked(prev, prevIdx)
	return nil
}

// Pause halts playback, keeping the load. Pausing a session that is
// not playing is a no-op.
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.handle == nil || (s.status != StatusPlaying && s.status != StatusBuffering) {
		s.mu.Unlock()
		return nil
	}

	s.position = s.handle.Position()
	if err := s.handle.Pause(); err != nil {
		s.mu.Unlock()
		s.emitError("pause", "", err)
		return err
	}
	s.status = StatusPaused
	s.emitStateLocked()
	s.mu.Unlock()
	return nil
}

// Resume continues paused playback. From Idle it starts a fresh load
// of the selected track; while already playing or loading it is a
// no-op.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	switch s.status {
	case StatusPaused:
		if s.handle == nil {
			return nil
		}
		if err := s.handle.Play(); err != nil {
			s.emitError("resume", "", err)
			return err
		}
		s.status = StatusPlaying
		s.emitStateLocked()
		return nil
	case StatusIdle:
		t := s.queue.Current()
		if t == nil {
			return nil
		}
		s.startLoadLocked(*t, true, -1)
		s.emitStateLocked()
		return nil
	default:
		return nil
	}
}

// Toggle pauses when playing and resumes otherwise.
func (s *Session) Toggle() error {
	st := s.State()
	if st.Status == StatusPlaying || st.Status == StatusBuffering {
		return s.Pause()
	}
	return s.Resume()
}

// Stop unloads the backend and returns to Idle. The playlist and the
// selection survive; an in-flight load is discarded.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.generation++
	s.unloadLocked()
	s.status = StatusIdle
	s.position = 0
	s.duration = 0
	s.err = nil
	s.emitStateLocked()
	return nil
}

// Next moves to the following track. At the end of the playlist it
// returns playlist.ErrAtEnd and changes nothing; there is no
// wraparound. A paused session stays paused on the new track.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	prev, prevIdx := s.currentCopyLocked(), s.queue.CurrentIndex()
	wasPaused := s.status == StatusPaused
	t, err := s.queue.Next()
	if err != nil {
		return err
	}
	s.startLoadLocked(t, !wasPaused, -1)
	s.emitQueueLocked()
	s.emitStateLocked()
	s.emitTrackLocked(prev, prevIdx)
	return nil
}

// Previous moves to the preceding track. At the start it returns
// playlist.ErrAtStart and changes nothing.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	prev, prevIdx := s.currentCopyLocked(), s.queue.CurrentIndex()
	wasPaused := s.status == StatusPaused
	t, err := s.queue.Previous()
	if err != nil {
		return err
	}
	s.startLoadLocked(t, !wasPaused, -1)
	s.emitQueueLocked()
	s.emitStateLocked()
	s.emitTrackLocked(prev, prevIdx)
	return nil
}

// SeekTo moves playback to an absolute position, clamped to the
// track bounds. Without a loaded track it is a no-op.
func (s *Session) SeekTo(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.handle == nil {
		return nil
	}

	if pos < 0 {
		pos = 0
	}
	if s.duration > 0 && pos > s.duration {
		pos = s.duration
	}
	if err := s.handle.Seek(pos); err != nil {
		s.emitError("seek", "", err)
		return err
	}
	s.position = pos
	s.emitStateLocked()
	return nil
}

// SeekBy moves playback relative to the current position.
func (s *Session) SeekBy(delta time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.handle == nil {
		s.mu.Unlock()
		return nil
	}
	pos := s.handle.Position() + delta
	s.mu.Unlock()
	return s.SeekTo(pos)
}

// SetVolume applies a volume level (0.0 to 1.0) to the session and
// the current load.
func (s *Session) SetVolume(level float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.volume = clampVolume(level)
	if s.handle != nil {
		if err := s.handle.SetVolume(s.volume); err != nil {
			s.emitError("volume", "", err)
			return err
		}
	}
	s.emitStateLocked()
	return nil
}

// Volume returns the session volume level.
func (s *Session) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetShuffle enables or disables shuffled play order.
func (s *Session) SetShuffle(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.SetShuffle(enabled)
	s.emitQueueLocked()
	s.emitStateLocked()
}

// ToggleShuffle flips shuffle and returns the new setting.
func (s *Session) ToggleShuffle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	on := s.queue.ToggleShuffle()
	s.emitQueueLocked()
	s.emitStateLocked()
	return on
}

// SetRepeat enables or disables single-track repeat.
func (s *Session) SetRepeat(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.SetRepeat(enabled)
	s.emitQueueLocked()
	s.emitStateLocked()
}

// ToggleRepeat flips repeat and returns the new setting.
func (s *Session) ToggleRepeat() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	on := s.queue.ToggleRepeat()
	s.emitQueueLocked()
	s.emitStateLocked()
	return on
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Queue returns a snapshot of the play order.
func (s *Session) Queue() playlist.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.State()
}

// CurrentTrack returns a copy of the selected track, or nil.
func (s *Session) CurrentTrack() *playlist.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentCopyLocked()
}

// HasNext reports whether Next would resolve a track.
func (s *Session) HasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.HasNext()
}

// PublishPosition folds a polled backend position into the session
// snapshot and notifies subscribers. The position tracker calls this
// on every poll tick so progress displays stay current.
func (s *Session) PublishPosition(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPlaying && s.status != StatusBuffering {
		return
	}
	s.position = pos
	s.emitStateLocked()
}

// PositionNow returns the live backend position, falling back to the
// last snapshot when nothing is loaded.
func (s *Session) PositionNow() time.Duration {
	s.mu.Lock()
	h := s.handle
	fallback := s.position
	s.mu.Unlock()

	if h == nil {
		return fallback
	}
	return h.Position()
}

// Stalled reports whether the session intends to play while the
// backend is not actually playing. The keepalive guard polls this to
// catch playback the platform silenced without an event.
func (s *Session) Stalled() bool {
	s.mu.Lock()
	h := s.handle
	want := s.status == StatusPlaying
	s.mu.Unlock()

	if !want || h == nil {
		return false
	}
	return !h.Playing()
}

// ForceResume re-issues a play command on the current handle without
// touching session state. No-op unless the session intends to play.
func (s *Session) ForceResume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPlaying || s.handle == nil {
		return nil
	}
	if err := s.handle.Play(); err != nil {
		return &BackendError{Err: err}
	}
	return nil
}

// ReassertVolume re-applies the session volume to the backend. Some
// platforms reset output settings when the display locks.
func (s *Session) ReassertVolume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return nil
	}
	if err := s.handle.SetVolume(s.volume); err != nil {
		return &BackendError{Err: err}
	}
	return nil
}

// ReconfigureOutput asks the backend to re-establish its audio output,
// if it supports that.
func (s *Session) ReconfigureOutput() error {
	if c, ok := s.factory.(player.OutputConfigurator); ok {
		return c.ConfigureOutput()
	}
	return nil
}

// RestartCurrent discards the current handle and reloads the track at
// the live position. This is the emergency path for a backend that
// stopped responding to resume commands.
func (s *Session) RestartCurrent() error {
	if err := s.ReconfigureOutput(); err != nil {
		s.log.Warn().Err(err).Msg("reconfigure output")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.status != StatusPlaying && s.status != StatusBuffering {
		return nil
	}
	cur := s.currentCopyLocked()
	if cur == nil {
		return nil
	}

	pos := s.position
	if s.handle != nil {
		if p := s.handle.Position(); p > 0 {
			pos = p
		}
	}

	s.log.Warn().Str("title", cur.Title).Dur("position", pos).Msg("restarting playback")
	s.startLoadLocked(*cur, true, pos)
	s.emitStateLocked()
	return nil
}

// MarkRecoveryExhausted records that stall recovery gave up. Playback
// is left paused so the user can resume by hand, and the snapshot
// carries the flag until the next successful load.
func (s *Session) MarkRecoveryExhausted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recoveryFailed = true
	if (s.status == StatusPlaying || s.status == StatusBuffering) && s.handle != nil {
		if pos := s.handle.Position(); pos > 0 {
			s.position = pos
		}
		if err := s.handle.Pause(); err != nil {
			s.log.Warn().Err(err).Msg("pause after failed recovery")
		}
		s.status = StatusPaused
	}
	s.log.Warn().Msg("stall recovery exhausted, leaving playback paused")
	s.emitStateLocked()
}

// startLoadLocked tears down the current load and begins a new one
// for t. startAt below zero means "resolve the saved position".
// Callers hold s.mu.
func (s *Session) startLoadLocked(t playlist.Track, autoplay bool, startAt time.Duration) {
	s.unloadLocked()
	s.generation++
	gen := s.generation

	s.status = StatusLoading
	s.err = nil
	s.position = 0
	if startAt > 0 {
		s.position = startAt
	}
	s.duration = t.Duration
	vol := s.volume
	resume := s.resume

	s.log.Debug().
		Str("title", t.Title).
		Str("uri", t.URI).
		Bool("autoplay", autoplay).
		Msg("loading track")

	go func() {
		start := startAt
		if start < 0 {
			start = 0
			if resume && s.positions != nil {
				if pos, err := s.positions.Position(t.ID); err == nil && pos > 0 {
					if t.Duration == 0 || pos < t.Duration-resumeTailMargin {
						start = pos
					}
				}
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.loadTimeout)
		defer cancel()

		h, err := s.factory.Load(ctx, t.URI, player.LoadOptions{
			Autoplay: autoplay,
			Start:    start,
			Volume:   vol,
			OnStatus: func(st player.Status) { s.onBackendStatus(gen, st) },
		})
		s.finishLoad(gen, t, h, err, autoplay, start)
	}()
}

// finishLoad installs the result of an asynchronous load, unless a
// newer command superseded it in the meantime.
func (s *Session) finishLoad(gen uint64, t playlist.Track, h player.Handle, err error, autoplay bool, start time.Duration) {
	s.mu.Lock()
	if gen != s.generation || s.closed {
		s.mu.Unlock()
		if h != nil {
			h.Unload()
		}
		return
	}

	if err != nil {
		lerr := &LoadError{URI: t.URI, Err: err}
		s.generation++
		s.err = lerr
		s.log.Error().Err(err).Str("uri", t.URI).Msg("load failed")

		// Surface the failure, then settle in Idle so the caller can
		// retry instead of finding the session stuck in Loading.
		s.status = StatusError
		s.emitStateLocked()
		s.status = StatusIdle
		s.position = 0
		s.duration = 0
		s.emitStateLocked()
		s.mu.Unlock()
		s.emitError("load", t.URI, lerr)
		return
	}

	s.handle = h
	if d := h.Duration(); d > 0 {
		s.duration = d
	}
	s.position = start
	if autoplay {
		s.status = StatusPlaying
	} else {
		s.status = StatusPaused
	}
	s.recoveryFailed = false
	s.log.Debug().Str("title", t.Title).Dur("start", start).Msg("track loaded")
	s.emitStateLocked()
	s.mu.Unlock()
}

// onBackendStatus applies an asynchronous backend event. Events from
// superseded loads are discarded by generation.
func (s *Session) onBackendStatus(gen uint64, st player.Status) {
	s.mu.Lock()
	if gen != s.generation || s.closed {
		s.mu.Unlock()
		return
	}

	switch {
	case st.Err != nil:
		berr := &BackendError{Err: st.Err}
		s.generation++
		s.unloadLocked()
		s.err = berr
		s.log.Error().Err(st.Err).Msg("backend failure")

		s.status = StatusError
		s.emitStateLocked()
		s.status = StatusIdle
		s.position = 0
		s.duration = 0
		s.emitStateLocked()
		s.mu.Unlock()
		s.emitError("playback", "", berr)

	case st.Finished:
		s.advanceAfterFinishLocked()

	case st.Buffering:
		if s.status == StatusPlaying {
			s.status = StatusBuffering
			s.emitStateLocked()
		}
		s.mu.Unlock()

	default:
		if s.status == StatusBuffering {
			s.status = StatusPlaying
			s.emitStateLocked()
		}
		s.mu.Unlock()
	}
}

// advanceAfterFinishLocked moves past a naturally finished track:
// repeat replays it, otherwise the next track loads, and the end of
// the playlist stops the session. Called with s.mu held; releases it.
func (s *Session) advanceAfterFinishLocked() {
	s.position = s.duration

	var finishedID string
	if t := s.queue.Current(); t != nil {
		finishedID = t.ID
	}
	prev, prevIdx := s.currentCopyLocked(), s.queue.CurrentIndex()

	next, err := s.queue.Next()
	if err != nil {
		s.generation++
		s.unloadLocked()
		s.status = StatusEnded
		s.emitStateLocked()

		// Full stop: no current track, playlist kept for a restart.
		s.queue.Deselect()
		s.status = StatusIdle
		s.position = 0
		s.duration = 0
		s.lastTrackID = ""
		s.emitQueueLocked()
		s.emitStateLocked()
		s.log.Debug().Msg("end of playlist")
		s.mu.Unlock()
	} else {
		s.startLoadLocked(next, true, 0)
		s.emitQueueLocked()
		s.emitStateLocked()
		s.emitTrackLocked(prev, prevIdx)
		s.mu.Unlock()
	}

	// A finished track restarts from the beginning next time.
	if finishedID != "" && s.positions != nil {
		if err := s.positions.ResetPosition(finishedID); err != nil {
			s.log.Warn().Err(err).Msg("reset saved position")
		}
	}
}

func (s *Session) unloadLocked() {
	if s.handle != nil {
		s.handle.Unload()
		s.handle = nil
	}
}

func (s *Session) currentCopyLocked() *playlist.Track {
	t := s.queue.Current()
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func (s *Session) stateLocked() State {
	st := State{
		Status:         s.status,
		Track:          s.currentCopyLocked(),
		TrackIndex:     s.queue.CurrentIndex(),
		Position:       s.position,
		Duration:       s.duration,
		Volume:         s.volume,
		Shuffle:        s.queue.Shuffle(),
		Repeat:         s.queue.Repeat(),
		Generation:     s.generation,
		RecoveryFailed: s.recoveryFailed,
		Err:            s.err,
	}
	return st
}

func (s *Session) emitStateLocked() {
	st := s.stateLocked()
	s.subsMu.RLock()
	for _, sub := range s.subs {
		sub.sendState(st)
	}
	s.subsMu.RUnlock()
}

func (s *Session) emitQueueLocked() {
	e := QueueChange{
		Tracks:  s.queue.Tracks(),
		Index:   s.queue.CurrentIndex(),
		Shuffle: s.queue.Shuffle(),
		Repeat:  s.queue.Repeat(),
	}
	s.subsMu.RLock()
	for _, sub := range s.subs {
		sub.sendQueue(e)
	}
	s.subsMu.RUnlock()
}

// emitTrackLocked announces a track change when the selection moved
// to a different track id than last announced.
func (s *Session) emitTrackLocked(prev *playlist.Track, prevIdx int) {
	cur := s.currentCopyLocked()
	var curID string
	if cur != nil {
		curID = cur.ID
	}
	if curID == s.lastTrackID {
		return
	}
	s.lastTrackID = curID

	e := TrackChange{
		Previous:      prev,
		Current:       cur,
		PreviousIndex: prevIdx,
		Index:         s.queue.CurrentIndex(),
	}
	s.subsMu.RLock()
	for _, sub := range s.subs {
		sub.sendTrack(e)
	}
	s.subsMu.RUnlock()
}

func (s *Session) emitError(op, uri string, err error) {
	e := ErrorEvent{Operation: op, URI: uri, Err: err}
	s.subsMu.RLock()
	for _, sub := range s.subs {
		sub.sendError(e)
	}
	s.subsMu.RUnlock()
}

func clampVolume(level float64) float64 {
	if level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}
