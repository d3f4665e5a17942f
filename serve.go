package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nvallois/longplay/internal/config"
	"github.com/nvallois/longplay/internal/errmsg"
	"github.com/nvallois/longplay/internal/keepalive"
	"github.com/nvallois/longplay/internal/library"
	"github.com/nvallois/longplay/internal/lifecycle"
	"github.com/nvallois/longplay/internal/mpris"
	"github.com/nvallois/longplay/internal/notify"
	"github.com/nvallois/longplay/internal/playback"
	"github.com/nvallois/longplay/internal/player"
	"github.com/nvallois/longplay/internal/playlist"
	"github.com/nvallois/longplay/internal/scrobble"
	"github.com/nvallois/longplay/internal/store"
)

var serveNoScan bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the playback engine daemon",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoScan, "no-scan", false, "skip the library scan at startup")
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpInitialize, err))
	}
	log := newLogger(cfg)

	dataDir := cfg.GetDataDir()
	st, err := store.OpenPath(filepath.Join(dataDir, "longplay.db"), log)
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpStoreOpen, err))
	}
	defer st.Close()

	lib := library.New(st, filepath.Join(dataDir, "thumbnails"), log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !serveNoScan && len(cfg.LibrarySources) > 0 {
		if stats, err := lib.Scan(ctx, cfg.LibrarySources); err != nil {
			log.Warn().Err(err).Msg("startup library scan failed")
		} else {
			logScanStats(log, stats)
		}
	}

	factory, err := newFactory(cfg, log)
	if err != nil {
		return err
	}
	if closer, ok := factory.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	pc := cfg.GetPlaybackConfig()
	volume := pc.Volume
	if saved, err := st.Volume(); err == nil && saved != 1.0 {
		volume = saved
	}

	tc := cfg.GetTrackerConfig()
	session := playback.NewSession(factory, st, log,
		playback.WithVolume(volume),
		playback.WithResume(pc.ResumeEnabled()),
	)
	defer session.Close()

	// Bring back the previous run's queue, paused. Resuming is the
	// user's call, through MPRIS or longplayctl.
	if saved, err := st.LoadQueue(); err != nil {
		log.Warn().Err(err).Msg("restore queue")
	} else if len(saved.Tracks) > 0 {
		session.RestoreQueue(saved)
		log.Info().Int("tracks", len(saved.Tracks)).Int("index", saved.Index).Msg("queue restored")
	} else if tracks, err := lib.Tracks(); err != nil {
		log.Warn().Err(err).Msg("load library")
	} else if len(tracks) > 0 {
		// First run: queue the whole library so remote Play has
		// something to start with.
		session.SetQueue(tracks, 0)
		log.Info().Int("tracks", len(tracks)).Msg("queued library")
	}

	tracker := playback.NewTracker(session, st, log,
		playback.WithPollInterval(tc.PollInterval),
		playback.WithSaveInterval(tc.SaveInterval),
	)
	tracker.Start(ctx)
	defer tracker.Stop()

	phases, err := lifecycle.NewSystemSource(log)
	if err != nil {
		log.Warn().Err(err).Msg("lifecycle watch unavailable")
	} else {
		defer phases.Close()
		if kc := cfg.GetKeepaliveConfig(); !kc.Disable {
			guard := keepalive.NewGuard(session, phases, log,
				keepalive.WithHealthInterval(kc.HealthInterval),
				keepalive.WithMaxResumes(kc.MaxResumes),
				keepalive.WithMaxRestarts(kc.MaxRestarts),
			)
			guard.Start(ctx)
			defer guard.Stop()
		}
	}

	adapter, err := mpris.New(session)
	if err != nil {
		log.Warn().Err(err).Msg("mpris export unavailable")
	} else {
		defer adapter.Close()
	}

	go persistChanges(ctx, session, st, volume, log)
	go announceTracks(ctx, session, log)

	if cfg.HasLastfmConfig() {
		client := scrobble.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)
		if err := client.Login(cfg.Lastfm.Username, cfg.Lastfm.Password); err != nil {
			log.Warn().Err(err).Msg("lastfm login failed, scrobbling disabled")
		} else {
			scrobbler := scrobble.NewScrobbler(session, client, log)
			scrobbler.Start(ctx)
			defer scrobbler.Stop()
			log.Info().Str("user", cfg.Lastfm.Username).Msg("scrobbling enabled")
		}
	}

	if len(cfg.LibrarySources) > 0 {
		watcher, err := library.NewWatcher(lib, cfg.LibrarySources, func(stats library.ScanStats) {
			logScanStats(log, stats)
		}, log)
		if err != nil {
			log.Warn().Err(err).Msg("library watcher unavailable")
		} else {
			watcher.Start(ctx)
			defer watcher.Stop()
		}
	}

	log.Info().Str("version", version).Str("backend", pc.Backend).Str("data_dir", dataDir).Msg("longplay running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")
	cancel()
	return nil
}

// newFactory builds the configured playback backend.
func newFactory(cfg *config.Config, log zerolog.Logger) (player.Factory, error) {
	pc := cfg.GetPlaybackConfig()
	switch pc.Backend {
	case "mpd":
		mc := cfg.GetMPDConfig()
		return player.NewMPDFactory(mc.Address, mc.Password, log), nil
	default:
		return player.NewBeepFactory(), nil
	}
}

// persistChanges mirrors queue and volume changes into the store so
// the next run starts where this one left off.
func persistChanges(ctx context.Context, session *playback.Session, st *store.Store, lastVolume float64, log zerolog.Logger) {
	sub := session.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case e := <-sub.QueueChanged:
			st.SaveQueue(playlist.State{
				Tracks:  e.Tracks,
				Index:   e.Index,
				Shuffle: e.Shuffle,
				Repeat:  e.Repeat,
			})
		case s := <-sub.StateChanged:
			if s.Volume != lastVolume {
				lastVolume = s.Volume
				if err := st.SaveVolume(s.Volume); err != nil {
					log.Warn().Err(err).Msg("save volume")
				}
			}
		}
	}
}

// announceTracks sends a desktop notification on every track change,
// replacing the previous one.
func announceTracks(ctx context.Context, session *playback.Session, log zerolog.Logger) {
	notifier, err := notify.New()
	if err != nil {
		log.Warn().Err(err).Msg("desktop notifications unavailable")
		return
	}

	sub := session.Subscribe()
	var lastID uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case e := <-sub.TrackChanged:
			if e.Current == nil {
				continue
			}
			body := e.Current.Artist
			if e.Current.Album != "" {
				body += " · " + e.Current.Album
			}
			id, err := notifier.Notify(notify.Notification{
				Title:      e.Current.Title,
				Body:       body,
				Icon:       notify.ArtPath(*e.Current),
				Timeout:    5000,
				ReplacesID: lastID,
				Urgency:    notify.UrgencyLow,
			})
			if err != nil {
				log.Debug().Err(err).Msg("send notification")
				continue
			}
			lastID = id
		}
	}
}

func logScanStats(log zerolog.Logger, stats library.ScanStats) {
	log.Info().
		Str("scanned", humanize.Comma(int64(stats.Scanned))).
		Int("added", stats.Added).
		Int("updated", stats.Updated).
		Int("removed", stats.Removed).
		Dur("elapsed", stats.Elapsed).
		Msg("library scan complete")
}
