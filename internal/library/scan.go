package library

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/nvallois/longplay/internal/player"
	"github.com/nvallois/longplay/internal/store"
)

const numWorkers = 8

// ScanStats summarizes one scan pass.
type ScanStats struct {
	Scanned int // audio files present on disk
	Added   int
	Updated int
	Removed int
	Elapsed time.Duration
}

// fileInfo is one discovered audio file.
type fileInfo struct {
	path  string
	mtime int64
	size  int64
}

// Scan walks sources and brings the catalog up to date: new and
// modified files are read, rows for vanished files removed. Unchanged
// files are skipped by modification time.
func (l *Library) Scan(ctx context.Context, sources []string) (ScanStats, error) {
	return l.scan(ctx, sources, false)
}

// FullScan rescans every file regardless of modification time. Use it
// to pick up retagged files whose mtime did not change.
func (l *Library) FullScan(ctx context.Context, sources []string) (ScanStats, error) {
	return l.scan(ctx, sources, true)
}

func (l *Library) scan(ctx context.Context, sources []string, force bool) (ScanStats, error) {
	start := time.Now()
	var stats ScanStats

	files := discoverFiles(sources)
	stats.Scanned = len(files)

	existing, err := l.store.ListTracks()
	if err != nil {
		return stats, err
	}
	byPath := make(map[string]store.Track, len(existing))
	for _, t := range existing {
		byPath[t.Path] = t
	}

	var toProcess []fileInfo
	onDisk := make(map[string]struct{}, len(files))
	var totalBytes uint64
	for _, f := range files {
		onDisk[f.path] = struct{}{}
		totalBytes += uint64(f.size)
		if !force {
			if old, ok := byPath[f.path]; ok && old.MTime == f.mtime {
				continue
			}
		}
		toProcess = append(toProcess, f)
	}

	if len(toProcess) > 0 {
		stats.Added, stats.Updated, err = l.processFiles(ctx, toProcess, byPath)
		if err != nil {
			return stats, err
		}
	}

	var gone []string
	for path, t := range byPath {
		if _, ok := onDisk[path]; !ok {
			gone = append(gone, t.ID)
		}
	}
	if err := l.store.DeleteTracks(gone); err != nil {
		return stats, err
	}
	stats.Removed = len(gone)

	stats.Elapsed = time.Since(start)
	l.log.Info().
		Int("scanned", stats.Scanned).
		Int("added", stats.Added).
		Int("updated", stats.Updated).
		Int("removed", stats.Removed).
		Str("size", humanize.IBytes(totalBytes)).
		Dur("elapsed", stats.Elapsed).
		Msg("library scan complete")
	return stats, nil
}

// discoverFiles walks the source directories and returns every audio
// file found.
func discoverFiles(sources []string) []fileInfo {
	var files []fileInfo
	for _, src := range sources {
		_ = filepath.WalkDir(src, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil //nolint:nilerr // skip unreadable entries, keep walking
			}
			if d.IsDir() {
				return nil
			}
			if !player.IsAudioFile(path) {
				return nil
			}
			info, infoErr := d.Info()
			if infoErr != nil {
				return nil //nolint:nilerr // skip files we cannot stat
			}
			files = append(files, fileInfo{
				path:  path,
				mtime: info.ModTime().Unix(),
				size:  info.Size(),
			})
			return nil
		})
	}
	return files
}

// processFiles reads tags and durations in parallel, then writes the
// batch in a single transaction. Files that fail to decode are
// skipped; the rest of the scan proceeds.
func (l *Library) processFiles(ctx context.Context, files []fileInfo, byPath map[string]store.Track) (added, updated int, err error) {
	workCh := make(chan fileInfo, len(files))
	resultCh := make(chan store.Track, len(files))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Go(func() {
			for f := range workCh {
				if ctx.Err() != nil {
					continue
				}
				t, probeErr := l.probeFile(f)
				if probeErr != nil {
					l.log.Debug().Err(probeErr).Str("path", f.path).Msg("skipping undecodable file")
					continue
				}
				resultCh <- t
			}
		})
	}

	go func() {
		for _, f := range files {
			workCh <- f
		}
		close(workCh)
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Collect and write sequentially; SQLite wants a single writer.
	batch := make([]store.Track, 0, len(files))
	for t := range resultCh {
		if old, ok := byPath[t.Path]; ok {
			t.ID = old.ID
			t.AddedAt = old.AddedAt
			updated++
		} else {
			t.ID = uuid.NewString()
			added++
		}
		batch = append(batch, t)
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	return added, updated, l.store.UpsertTracks(batch)
}

// probeFile reads one file's tags, duration and art. The caller
// assigns the ID. Tag failures are tolerated (the filename stands in
// for the title); decode failures reject the file.
func (l *Library) probeFile(f fileInfo) (store.Track, error) {
	t := store.Track{
		Path:  f.path,
		MTime: f.mtime,
		Title: filepath.Base(f.path),
	}

	if fh, err := os.Open(f.path); err == nil {
		if m, tagErr := tag.ReadFrom(fh); tagErr == nil {
			fillTags(&t, m)
			thumb, artErr := l.writeThumbnail(m.Picture())
			if artErr != nil {
				l.log.Debug().Err(artErr).Str("path", f.path).Msg("cover art extraction failed")
			}
			t.Thumbnail = thumb
		}
		fh.Close()
	}

	dur, err := player.ProbeDuration(f.path)
	if err != nil {
		return store.Track{}, err
	}
	t.Duration = dur

	return t, nil
}

func fillTags(t *store.Track, m tag.Metadata) {
	if title := m.Title(); title != "" {
		t.Title = title
	}
	t.Artist = m.Artist()
	t.AlbumArtist = m.AlbumArtist()
	if t.AlbumArtist == "" {
		t.AlbumArtist = t.Artist
	}
	t.Album = m.Album()
	t.Genre = m.Genre()
	t.Year = m.Year()
	t.TrackNumber, _ = m.Track()
	t.DiscNumber, _ = m.Disc()
}
