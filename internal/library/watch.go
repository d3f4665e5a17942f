package library

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/nvallois/longplay/internal/player"
)

const rescanDebounce = 2 * time.Second

// Watcher rescans the library when files change under the source
// directories, so finished downloads show up without a restart.
// Events are debounced: a burst of writes triggers one scan.
type Watcher struct {
	lib     *Library
	sources []string
	onScan  func(ScanStats)
	log     zerolog.Logger

	fsw      *fsnotify.Watcher
	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher watches sources and their subdirectories. onScan, when
// not nil, runs after every triggered rescan.
func NewWatcher(lib *Library, sources []string, onScan func(ScanStats), log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		lib:     lib,
		sources: sources,
		onScan:  onScan,
		log:     log.With().Str("component", "watcher").Logger(),
		fsw:     fsw,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	for _, src := range sources {
		w.addRecursive(src)
	}

	return w, nil
}

// Start begins handling events on a background goroutine.
func (w *Watcher) Start(ctx context.Context) {
	if w.started {
		return
	}
	w.started = true
	go w.run(ctx)
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	if w.started {
		<-w.doneCh
	} else {
		w.fsw.Close()
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	defer w.fsw.Close()

	// The timer runs only while a rescan is pending.
	debounce := time.NewTimer(rescanDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(ev) {
				continue
			}
			// New directories must be watched before their contents
			// settle in.
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.addRecursive(ev.Name)
				}
			}
			debounce.Reset(rescanDebounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		case <-debounce.C:
			stats, err := w.lib.Scan(ctx, w.sources)
			if err != nil {
				w.log.Warn().Err(err).Msg("rescan failed")
				continue
			}
			if w.onScan != nil {
				w.onScan(stats)
			}
		}
	}
}

// relevant filters the event stream down to changes that can alter
// the catalog. Writes count only for audio files: in-progress
// downloads land under temporary names and trigger again on rename.
func relevant(ev fsnotify.Event) bool {
	if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
		return true
	}
	return ev.Op.Has(fsnotify.Write) && player.IsAudioFile(ev.Name)
}

// addRecursive registers root and every directory below it. fsnotify
// does not recurse on its own.
func (w *Watcher) addRecursive(root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // skip unreadable entries, keep walking
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("cannot watch directory")
		}
		return nil
	})
}
