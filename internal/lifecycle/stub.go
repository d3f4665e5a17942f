//go:build !linux

package lifecycle

import "github.com/rs/zerolog"

// NewSystemSource has no system integration off Linux; the returned
// source never fires.
func NewSystemSource(log zerolog.Logger) (Source, error) {
	log.Debug().Msg("no lifecycle integration on this platform")
	return NewManualSource(), nil
}
