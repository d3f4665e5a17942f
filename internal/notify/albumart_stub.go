//go:build !linux

package notify

import "github.com/nvallois/longplay/internal/playlist"

// ArtPath returns empty on non-Linux platforms.
// Desktop notifications are only supported on Linux via D-Bus.
func ArtPath(_ playlist.Track) string {
	return ""
}
