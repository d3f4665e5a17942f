package player

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog"
)

const mpdPollInterval = 500 * time.Millisecond

// MPDFactory plays tracks through a Music Player Daemon instance. The
// engine keeps a single-song MPD queue per load; MPD's own playlist
// machinery is never used for ordering.
type MPDFactory struct {
	mu       sync.RWMutex
	addr     string
	password string
	client   *mpd.Client
	log      zerolog.Logger
}

// NewMPDFactory creates the MPD backend. The connection is established
// lazily on first use and re-established whenever a ping fails.
func NewMPDFactory(addr, password string, log zerolog.Logger) *MPDFactory {
	return &MPDFactory{
		addr:     addr,
		password: password,
		log:      log.With().Str("component", "mpd").Logger(),
	}
}

// ConfigureOutput verifies the connection, reconnecting if needed.
func (f *MPDFactory) ConfigureOutput() error {
	return f.ensureConnected()
}

// Close terminates the MPD connection.
func (f *MPDFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil {
		return nil
	}
	err := f.client.Close()
	f.client = nil
	return err
}

func (f *MPDFactory) ensureConnected() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != nil {
		if err := f.client.Ping(); err == nil {
			return nil
		}
		f.log.Debug().Msg("connection lost, reconnecting")
		f.client.Close()
		f.client = nil
	}

	client, err := mpd.DialAuthenticated("tcp", f.addr, f.password)
	if err != nil {
		return fmt.Errorf("connect to mpd at %s: %w", f.addr, err)
	}
	f.client = client
	return nil
}

// run executes op against a verified connection.
func (f *MPDFactory) run(op func(*mpd.Client) error) error {
	if err := f.ensureConnected(); err != nil {
		return err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return op(f.client)
}

func (f *MPDFactory) status() (mpd.Attrs, error) {
	var attrs mpd.Attrs
	err := f.run(func(c *mpd.Client) error {
		var err error
		attrs, err = c.Status()
		return err
	})
	return attrs, err
}

// Load replaces the MPD queue with uri and positions playback. The
// context bounds the whole exchange; a load that outlives it is
// unloaded when it eventually completes.
func (f *MPDFactory) Load(ctx context.Context, uri string, opts LoadOptions) (Handle, error) {
	type result struct {
		h   Handle
		err error
	}
	ch := make(chan result, 1)
	go func() {
		h, err := f.load(uri, opts)
		ch <- result{h, err}
	}()

	select {
	case r := <-ch:
		return r.h, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.h != nil {
				r.h.Unload()
			}
		}()
		return nil, ctx.Err()
	}
}

func (f *MPDFactory) load(uri string, opts LoadOptions) (Handle, error) {
	err := f.run(func(c *mpd.Client) error {
		if err := c.Clear(); err != nil {
			return err
		}
		if err := c.Add(uri); err != nil {
			return err
		}
		if err := c.Play(0); err != nil {
			return err
		}
		if opts.Start > 0 {
			if err := c.Seek(0, int(opts.Start.Seconds())); err != nil {
				return err
			}
		}
		if !opts.Autoplay {
			if err := c.Pause(true); err != nil {
				return err
			}
		}
		if err := c.SetVolume(int(opts.Volume*100 + 0.5)); err != nil {
			// Hosts without a mixer reject volume commands; playback
			// still works.
			f.log.Warn().Err(err).Msg("set volume failed")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", uri, err)
	}

	h := &mpdHandle{
		f:        f,
		uri:      uri,
		onStatus: opts.OnStatus,
		stopCh:   make(chan struct{}),
	}
	go h.watch()
	return h, nil
}

// mpdHandle is one track loaded into the MPD queue.
type mpdHandle struct {
	f        *MPDFactory
	uri      string
	onStatus StatusFunc

	mu      sync.Mutex
	stopped bool // an explicit Stop was issued
	closed  bool
	stopCh  chan struct{}
}

// watch polls MPD and reports asynchronous events: natural completion
// (state drops to stop without an explicit Stop command) and poll
// failures are the observable ones here.
func (h *mpdHandle) watch() {
	ticker := time.NewTicker(mpdPollInterval)
	defer ticker.Stop()

	var sawPlay bool
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
		}

		attrs, err := h.f.status()
		if err != nil {
			h.f.log.Debug().Err(err).Msg("status poll failed")
			continue
		}

		state := attrs["state"]
		if state == "play" {
			sawPlay = true
		}

		h.mu.Lock()
		stopped := h.stopped
		h.mu.Unlock()

		if state == "stop" && sawPlay && !stopped {
			if h.onStatus != nil {
				d := attrSeconds(attrs, "duration")
				h.onStatus(Status{
					Loaded:   true,
					Position: d,
					Duration: d,
					Finished: true,
				})
			}
			return
		}
	}
}

func (h *mpdHandle) Play() error {
	return h.f.run(func(c *mpd.Client) error {
		attrs, err := c.Status()
		if err != nil {
			return err
		}
		if attrs["state"] == "stop" {
			return c.Play(0)
		}
		return c.Pause(false)
	})
}

func (h *mpdHandle) Pause() error {
	return h.f.run(func(c *mpd.Client) error {
		return c.Pause(true)
	})
}

func (h *mpdHandle) Stop() error {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	return h.f.run(func(c *mpd.Client) error {
		return c.Stop()
	})
}

func (h *mpdHandle) Seek(pos time.Duration) error {
	if pos < 0 {
		pos = 0
	}
	if d := h.Duration(); d > 0 && pos > d {
		pos = d
	}
	return h.f.run(func(c *mpd.Client) error {
		return c.Seek(0, int(pos.Seconds()))
	})
}

func (h *mpdHandle) SetVolume(level float64) error {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	return h.f.run(func(c *mpd.Client) error {
		return c.SetVolume(int(level*100 + 0.5))
	})
}

func (h *mpdHandle) Playing() bool {
	attrs, err := h.f.status()
	if err != nil {
		return false
	}
	return attrs["state"] == "play"
}

func (h *mpdHandle) Position() time.Duration {
	attrs, err := h.f.status()
	if err != nil {
		return 0
	}
	return attrSeconds(attrs, "elapsed")
}

func (h *mpdHandle) Duration() time.Duration {
	attrs, err := h.f.status()
	if err != nil {
		return 0
	}
	return attrSeconds(attrs, "duration")
}

func (h *mpdHandle) Unload() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.stopped = true
	close(h.stopCh)
	h.mu.Unlock()

	_ = h.f.run(func(c *mpd.Client) error {
		if err := c.Stop(); err != nil {
			return err
		}
		return c.Clear()
	})
}

// attrSeconds parses a fractional-seconds status attribute.
func attrSeconds(attrs mpd.Attrs, key string) time.Duration {
	v, ok := attrs[key]
	if !ok {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
