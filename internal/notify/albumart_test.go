//go:build linux

package notify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvallois/longplay/internal/playlist"
)

func TestArtPath(t *testing.T) {
	dir := t.TempDir()

	// Create a fake track file
	trackPath := filepath.Join(dir, "01-song.mp3")
	if err := os.WriteFile(trackPath, []byte{}, 0o600); err != nil {
		t.Fatal(err)
	}
	track := playlist.Track{ID: "t1", URI: trackPath}

	// No art yet
	got := ArtPath(track)
	if got != "" {
		t.Errorf("ArtPath() = %q, want empty", got)
	}

	// Create cover.jpg next to the file
	coverPath := filepath.Join(dir, "cover.jpg")
	if err := os.WriteFile(coverPath, []byte{0xFF, 0xD8, 0xFF}, 0o600); err != nil {
		t.Fatal(err)
	}

	got = ArtPath(track)
	if got != coverPath {
		t.Errorf("ArtPath() = %q, want %q", got, coverPath)
	}
}

func TestArtPath_PrefersThumbnail(t *testing.T) {
	dir := t.TempDir()
	trackPath := filepath.Join(dir, "track.mp3")
	if err := os.WriteFile(trackPath, []byte{}, 0o600); err != nil {
		t.Fatal(err)
	}

	coverPath := filepath.Join(dir, "cover.jpg")
	if err := os.WriteFile(coverPath, []byte{}, 0o600); err != nil {
		t.Fatal(err)
	}

	thumbPath := filepath.Join(dir, "thumb.jpg")
	if err := os.WriteFile(thumbPath, []byte{}, 0o600); err != nil {
		t.Fatal(err)
	}

	track := playlist.Track{ID: "t1", URI: trackPath, Thumbnail: thumbPath}
	got := ArtPath(track)
	if got != thumbPath {
		t.Errorf("ArtPath() = %q, want %q (extracted thumbnail wins)", got, thumbPath)
	}
}

func TestArtPath_MissingThumbnailFallsBack(t *testing.T) {
	dir := t.TempDir()
	trackPath := filepath.Join(dir, "track.mp3")
	if err := os.WriteFile(trackPath, []byte{}, 0o600); err != nil {
		t.Fatal(err)
	}
	coverPath := filepath.Join(dir, "cover.jpg")
	if err := os.WriteFile(coverPath, []byte{}, 0o600); err != nil {
		t.Fatal(err)
	}

	track := playlist.Track{ID: "t1", URI: trackPath, Thumbnail: filepath.Join(dir, "gone.jpg")}
	got := ArtPath(track)
	if got != coverPath {
		t.Errorf("ArtPath() = %q, want %q (fallback to directory art)", got, coverPath)
	}
}
