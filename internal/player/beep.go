package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

const (
	extMP3  = ".mp3"
	extFLAC = ".flac"
	extWAV  = ".wav"
	extOGG  = ".ogg"
)

// ErrUnloaded is returned by Handle commands after Unload.
var ErrUnloaded = errors.New("handle unloaded")

// The speaker is process-global and initialized on first load with the
// first track's sample rate; later tracks resample onto it. All access
// runs through the session, which serializes loads.
var (
	speakerInitialized bool
	speakerSampleRate  beep.SampleRate
)

// BeepFactory plays local files through the machine's audio device.
type BeepFactory struct{}

// NewBeepFactory creates the local file backend.
func NewBeepFactory() *BeepFactory {
	return &BeepFactory{}
}

// ConfigureOutput resumes the audio device context. A no-op before the
// first load; after a system suspend it brings the device back.
func (f *BeepFactory) ConfigureOutput() error {
	if !speakerInitialized {
		return nil
	}
	if err := speaker.Resume(); err != nil {
		return fmt.Errorf("resume audio device: %w", err)
	}
	return nil
}

// Load decodes uri and attaches it to the speaker, paused unless
// opts.Autoplay is set.
func (f *BeepFactory) Load(ctx context.Context, uri string, opts LoadOptions) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(uri)
	if err != nil {
		return nil, err
	}

	streamer, format, err := decodeAudio(file, uri)
	if err != nil {
		file.Close()
		return nil, err
	}

	if !speakerInitialized {
		speakerSampleRate = format.SampleRate
		if err := speaker.Init(speakerSampleRate, speakerSampleRate.N(time.Second/10)); err != nil {
			streamer.Close()
			file.Close()
			return nil, err
		}
		speakerInitialized = true
	}

	duration := format.SampleRate.D(streamer.Len())
	if opts.Start > 0 && opts.Start < duration {
		if err := streamer.Seek(format.SampleRate.N(opts.Start)); err != nil {
			streamer.Close()
			file.Close()
			return nil, err
		}
	}

	var play beep.Streamer = streamer
	if format.SampleRate != speakerSampleRate {
		play = beep.Resample(4, format.SampleRate, speakerSampleRate, streamer)
	}

	h := &beepHandle{
		file:     file,
		streamer: streamer,
		format:   format,
		duration: duration,
		level:    opts.Volume,
		onStatus: opts.OnStatus,
		done:     make(chan struct{}),
		unloaded: make(chan struct{}),
	}
	h.ctrl = &beep.Ctrl{Streamer: play, Paused: !opts.Autoplay}
	h.volume = &effects.Volume{
		Streamer: h.ctrl,
		Base:     2,
		Volume:   levelToVolume(opts.Volume),
		Silent:   opts.Volume <= 0,
	}

	speaker.Play(beep.Seq(h.volume, beep.Callback(func() {
		// Runs on the speaker goroutine with its lock held: only
		// signal here, never call back into the speaker.
		close(h.done)
	})))

	go h.watchFinish()

	return h, nil
}

// beepHandle is one file attached to the speaker.
type beepHandle struct {
	mu       sync.Mutex
	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	level    float64
	duration time.Duration
	stopped  bool
	closed   bool
	onStatus StatusFunc
	done     chan struct{} // closed by the stream-end callback
	unloaded chan struct{} // closed by Unload
}

// watchFinish waits for the stream-end signal and reports completion
// from a goroutine that holds no locks.
func (h *beepHandle) watchFinish() {
	select {
	case <-h.done:
	case <-h.unloaded:
		return
	}
	if h.onStatus != nil {
		h.onStatus(Status{
			Loaded:   true,
			Position: h.duration,
			Duration: h.duration,
			Finished: true,
		})
	}
}

func (h *beepHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctrl == nil {
		return ErrUnloaded
	}
	speaker.Lock()
	h.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

func (h *beepHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctrl == nil {
		return ErrUnloaded
	}
	speaker.Lock()
	h.ctrl.Paused = true
	speaker.Unlock()
	return nil
}

func (h *beepHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrUnloaded
	}
	if h.stopped {
		return nil
	}
	h.stopped = true
	speaker.Clear()
	return nil
}

// Seek moves to an absolute position, clamped to the stream bounds.
// Output is muted around the underlying seek so the device buffer
// drains the pre-seek audio instead of glitching.
func (h *beepHandle) Seek(pos time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streamer == nil || h.volume == nil {
		return ErrUnloaded
	}

	if pos < 0 {
		pos = 0
	}
	if pos > h.duration {
		pos = h.duration
	}
	n := h.format.SampleRate.N(pos)
	if total := h.streamer.Len(); n > total {
		n = total
	}

	speaker.Lock()
	h.volume.Silent = true
	err := h.streamer.Seek(n)
	speaker.Unlock()

	time.Sleep(100 * time.Millisecond)

	speaker.Lock()
	h.volume.Silent = h.level <= 0
	speaker.Unlock()

	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

func (h *beepHandle) SetVolume(level float64) error {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.volume == nil {
		return ErrUnloaded
	}
	h.level = level
	speaker.Lock()
	h.volume.Volume = levelToVolume(level)
	h.volume.Silent = level <= 0
	speaker.Unlock()
	return nil
}

func (h *beepHandle) Playing() bool {
	select {
	case <-h.done:
		return false
	default:
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctrl == nil || h.stopped {
		return false
	}
	speaker.Lock()
	paused := h.ctrl.Paused
	speaker.Unlock()
	return !paused
}

func (h *beepHandle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streamer == nil {
		return 0
	}
	// Read without the speaker lock: may be a frame stale, which the
	// poll cadence tolerates.
	return h.format.SampleRate.D(h.streamer.Position())
}

func (h *beepHandle) Duration() time.Duration {
	return h.duration
}

func (h *beepHandle) Unload() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.unloaded)

	if !h.stopped {
		h.stopped = true
		speaker.Clear()
	}
	if h.streamer != nil {
		h.streamer.Close()
		h.streamer = nil
	}
	if h.file != nil {
		h.file.Close()
		h.file = nil
	}
	h.ctrl = nil
	h.volume = nil
}

// decodeAudio picks a decoder by file extension.
func decodeAudio(file *os.File, path string) (beep.StreamSeekCloser, beep.Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case extMP3:
		return mp3.Decode(file)
	case extFLAC:
		// Some taggers prepend ID3v2 to FLAC files, which the FLAC
		// decoder does not handle.
		if err := skipID3v2(file); err != nil {
			return nil, beep.Format{}, err
		}
		return flac.Decode(file)
	case extWAV:
		return wav.Decode(file)
	case extOGG:
		return vorbis.Decode(file)
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported format: %s", ext)
	}
}

// levelToVolume maps a 0.0-1.0 level onto beep's base-2 logarithmic
// volume: 1.0 -> 0, 0.5 -> -1, 0.25 -> -2. Zero and below are
// effectively silent.
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}

// skipID3v2 skips an ID3v2 tag if present at the start of the file.
func skipID3v2(r io.ReadSeeker) error {
	header := make([]byte, 10)
	n, err := r.Read(header)
	if err != nil {
		return err
	}
	if n < 10 || string(header[0:3]) != "ID3" {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}

	// Tag size is a syncsafe integer in bytes 6-9: 7 bits per byte.
	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
