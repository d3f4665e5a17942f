//go:build linux

package mpris

import (
	"os"
	"path/filepath"

	"github.com/nvallois/longplay/internal/playlist"
)

// coverNames lists common album art filenames in priority order.
var coverNames = []string{
	"cover.jpg", "cover.png", "cover.jpeg",
	"folder.jpg", "folder.png", "folder.jpeg",
	"album.jpg", "album.png", "album.jpeg",
	"front.jpg", "front.png", "front.jpeg",
}

// ArtPath returns the artwork path for a track: the thumbnail the
// scanner extracted from embedded tags, or failing that a cover file
// next to the audio file. Empty if neither exists.
func ArtPath(t playlist.Track) string {
	if t.Thumbnail != "" {
		if _, err := os.Stat(t.Thumbnail); err == nil {
			return t.Thumbnail
		}
	}
	return FindAlbumArt(t.URI)
}

// FindAlbumArt looks for album art in the same directory as the track.
// Returns the path to the art file, or empty string if not found.
func FindAlbumArt(trackPath string) string {
	dir := filepath.Dir(trackPath)
	for _, name := range coverNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
