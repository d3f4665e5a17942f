// Package library keeps the track catalog in sync with the audio
// files on disk. Scans walk the configured source directories, read
// tags and durations from new or modified files, extract cover art
// thumbnails, and drop rows for files that vanished.
package library

import (
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/nvallois/longplay/internal/playlist"
	"github.com/nvallois/longplay/internal/store"
)

// Library scans source directories into the store and serves the
// catalog back as playable tracks.
type Library struct {
	store    *store.Store
	thumbDir string
	log      zerolog.Logger
}

// New creates a library over st. Thumbnails extracted during scans
// land under thumbDir; pass "" to skip art extraction.
func New(st *store.Store, thumbDir string, log zerolog.Logger) *Library {
	return &Library{
		store:    st,
		thumbDir: thumbDir,
		log:      log.With().Str("component", "library").Logger(),
	}
}

// Tracks returns the whole catalog in browse order, converted for
// playback.
func (l *Library) Tracks() ([]playlist.Track, error) {
	rows, err := l.store.ListTracks()
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(t store.Track, _ int) playlist.Track {
		return toPlaylistTrack(t)
	}), nil
}

func toPlaylistTrack(t store.Track) playlist.Track {
	artist := t.Artist
	if artist == "" {
		artist = t.AlbumArtist
	}
	return playlist.Track{
		ID:        t.ID,
		Title:     t.Title,
		Artist:    artist,
		Album:     t.Album,
		URI:       t.Path,
		Duration:  t.Duration,
		Thumbnail: t.Thumbnail,
	}
}
