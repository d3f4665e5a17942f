package player

import (
	"context"
	"sync"
	"time"
)

// LoadCall records one Load invocation on a MockFactory.
type LoadCall struct {
	URI  string
	Opts LoadOptions
}

// MockFactory is an in-memory Factory for tests.
type MockFactory struct {
	mu        sync.Mutex
	loadErr   error
	loadDelay time.Duration
	breakErr  error
	calls     []LoadCall
	handles   []*MockHandle
	confErr   error
	confCalls int
}

func NewMockFactory() *MockFactory {
	return &MockFactory{}
}

// FailLoads makes subsequent Load calls return err. Pass nil to clear.
func (f *MockFactory) FailLoads(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadErr = err
}

// DelayLoads makes Load block for d before completing, honoring
// context cancellation. Used to exercise load timeouts.
func (f *MockFactory) DelayLoads(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadDelay = d
}

// FailConfigure makes ConfigureOutput return err.
func (f *MockFactory) FailConfigure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confErr = err
}

// BreakPlayback makes every handle created from now on start silent
// and fail Play calls, simulating an output device that went away.
// Pass nil to repair.
func (f *MockFactory) BreakPlayback(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.breakErr = err
}

func (f *MockFactory) Load(ctx context.Context, uri string, opts LoadOptions) (Handle, error) {
	f.mu.Lock()
	f.calls = append(f.calls, LoadCall{URI: uri, Opts: opts})
	delay := f.loadDelay
	loadErr := f.loadErr
	breakErr := f.breakErr
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if loadErr != nil {
		return nil, loadErr
	}

	h := &MockHandle{
		uri:      uri,
		onStatus: opts.OnStatus,
		playing:  opts.Autoplay,
		loaded:   true,
		position: opts.Start,
		duration: 3 * time.Minute,
		volume:   opts.Volume,
	}
	if breakErr != nil {
		h.playing = false
		h.playErr = breakErr
	}
	f.mu.Lock()
	f.handles = append(f.handles, h)
	f.mu.Unlock()
	return h, nil
}

func (f *MockFactory) ConfigureOutput() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confCalls++
	return f.confErr
}

// LoadCalls returns every recorded Load invocation.
func (f *MockFactory) LoadCalls() []LoadCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]LoadCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// ConfigureCalls returns how often ConfigureOutput ran.
func (f *MockFactory) ConfigureCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confCalls
}

// LastHandle returns the most recently created handle, or nil.
func (f *MockFactory) LastHandle() *MockHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.handles) == 0 {
		return nil
	}
	return f.handles[len(f.handles)-1]
}

// Handles returns every handle the factory created.
func (f *MockFactory) Handles() []*MockHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*MockHandle, len(f.handles))
	copy(out, f.handles)
	return out
}

// MockHandle is a scriptable Handle. Command methods record their
// calls and update in-memory state; test helpers push asynchronous
// events or flip backend state behind the session's back.
type MockHandle struct {
	mu       sync.Mutex
	uri      string
	onStatus StatusFunc

	loaded   bool
	playing  bool
	position time.Duration
	duration time.Duration
	volume   float64

	playErr  error
	pauseErr error
	seekErr  error

	playCalls   int
	pauseCalls  int
	stopCalls   int
	seekCalls   []time.Duration
	volumeCalls []float64
	unloaded    bool
}

func (h *MockHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playCalls++
	if h.playErr != nil {
		return h.playErr
	}
	h.playing = true
	return nil
}

func (h *MockHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pauseCalls++
	if h.pauseErr != nil {
		return h.pauseErr
	}
	h.playing = false
	return nil
}

func (h *MockHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopCalls++
	h.playing = false
	h.position = 0
	return nil
}

func (h *MockHandle) Seek(pos time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seekCalls = append(h.seekCalls, pos)
	if h.seekErr != nil {
		return h.seekErr
	}
	if pos < 0 {
		pos = 0
	}
	if pos > h.duration {
		pos = h.duration
	}
	h.position = pos
	return nil
}

func (h *MockHandle) SetVolume(level float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volumeCalls = append(h.volumeCalls, level)
	h.volume = level
	return nil
}

func (h *MockHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing && !h.unloaded
}

func (h *MockHandle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

func (h *MockHandle) Duration() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration
}

func (h *MockHandle) Unload() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unloaded = true
	h.playing = false
	h.loaded = false
}

// SetPlaying flips the backend playing flag without emitting any
// event, simulating a platform that silently halted or resumed audio.
func (h *MockHandle) SetPlaying(playing bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = playing
}

// SetPosition moves the backend position without emitting any event.
func (h *MockHandle) SetPosition(pos time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.position = pos
}

// SetDuration overrides the default duration.
func (h *MockHandle) SetDuration(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.duration = d
}

// SetPlayError makes Play return err.
func (h *MockHandle) SetPlayError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playErr = err
}

// SetPauseError makes Pause return err.
func (h *MockHandle) SetPauseError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pauseErr = err
}

// Finish emits the natural end-of-track event the way a real backend
// does when the stream drains.
func (h *MockHandle) Finish() {
	h.mu.Lock()
	h.playing = false
	h.position = h.duration
	st := Status{
		Loaded:   h.loaded,
		Position: h.duration,
		Duration: h.duration,
		Finished: true,
	}
	fn := h.onStatus
	h.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// EmitStatus pushes an arbitrary asynchronous event to the load's
// status callback.
func (h *MockHandle) EmitStatus(st Status) {
	h.mu.Lock()
	fn := h.onStatus
	h.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// URI returns the URI this handle was loaded with.
func (h *MockHandle) URI() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.uri
}

// PlayCalls reports how many times Play ran.
func (h *MockHandle) PlayCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playCalls
}

// PauseCalls reports how many times Pause ran.
func (h *MockHandle) PauseCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pauseCalls
}

// StopCalls reports how many times Stop ran.
func (h *MockHandle) StopCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopCalls
}

// SeekCalls returns every position passed to Seek.
func (h *MockHandle) SeekCalls() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]time.Duration, len(h.seekCalls))
	copy(out, h.seekCalls)
	return out
}

// VolumeCalls returns every level passed to SetVolume.
func (h *MockHandle) VolumeCalls() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]float64, len(h.volumeCalls))
	copy(out, h.volumeCalls)
	return out
}

// Unloaded reports whether Unload ran.
func (h *MockHandle) Unloaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unloaded
}

var (
	_ Factory = (*MockFactory)(nil)
	_ Handle  = (*MockHandle)(nil)
)
