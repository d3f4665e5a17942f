package library

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder for embedded album art
	"os"
	"path/filepath"

	"github.com/dhowden/tag"
	"github.com/nfnt/resize"
)

const (
	thumbSize    = 300
	thumbQuality = 85
)

// writeThumbnail scales embedded art down to a small JPEG and returns
// its path. Files are keyed by a hash of the art bytes, so an album's
// tracks share one thumbnail. Returns "" when there is no art or art
// extraction is disabled.
func (l *Library) writeThumbnail(pic *tag.Picture) (string, error) {
	if l.thumbDir == "" || pic == nil || len(pic.Data) == 0 {
		return "", nil
	}

	sum := sha256.Sum256(pic.Data)
	out := filepath.Join(l.thumbDir, hex.EncodeToString(sum[:8])+".jpg")
	if _, err := os.Stat(out); err == nil {
		return out, nil
	}

	img, _, err := image.Decode(bytes.NewReader(pic.Data))
	if err != nil {
		return "", err
	}
	thumb := resize.Thumbnail(thumbSize, thumbSize, img, resize.Lanczos3)

	if err := os.MkdirAll(l.thumbDir, 0o755); err != nil {
		return "", err
	}

	// Workers may race on the same album art: write to a private temp
	// file, then rename into place.
	tmp, err := os.CreateTemp(l.thumbDir, "thumb-*.tmp")
	if err != nil {
		return "", err
	}
	if err := jpeg.Encode(tmp, thumb, &jpeg.Options{Quality: thumbQuality}); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return out, nil
}
