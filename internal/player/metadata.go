package player

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// IsAudioFile reports whether path has an extension the local backend
// can decode.
func IsAudioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case extMP3, extFLAC, extWAV, extOGG:
		return true
	default:
		return false
	}
}

// ProbeDuration decodes the file headers to compute its play length.
func ProbeDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	streamer, format, err := decodeAudio(f, path)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()

	return format.SampleRate.D(streamer.Len()), nil
}
