//go:build linux

package notify

import (
	"github.com/nvallois/longplay/internal/mpris"
	"github.com/nvallois/longplay/internal/playlist"
)

// ArtPath returns the notification icon path for a track, if any.
// This is a convenience wrapper around mpris.ArtPath.
func ArtPath(t playlist.Track) string {
	return mpris.ArtPath(t)
}
