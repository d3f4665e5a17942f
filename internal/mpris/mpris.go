//go:build linux

package mpris

import (
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/nvallois/longplay/internal/playback"
	"github.com/nvallois/longplay/internal/playlist"
)

// Adapter exposes the playback session on the desktop bus as
// org.mpris.MediaPlayer2.longplay.
type Adapter struct {
	session *playback.Session
	server  *server.Server
}

// New creates and starts a new MPRIS adapter.
func New(session *playback.Session) (*Adapter, error) {
	a := &Adapter{session: session}

	rootAdapter := &rootAdapter{}
	playerAdapter := &playerAdapter{session: session}

	a.server = server.NewServer("longplay", rootAdapter, playerAdapter)

	// Serve in background; Listen blocks until Stop.
	go func() {
		_ = a.server.Listen()
	}()

	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error {
	return nil // No window to raise
}

func (r *rootAdapter) Quit() error {
	return nil // Daemon lifecycle is managed by its own signals
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil // Track list interface not implemented
}

func (r *rootAdapter) Identity() (string, error) {
	return "Longplay", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/flac", "audio/ogg", "audio/wav"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter and the
// optional LoopStatus and Shuffle interfaces.
type playerAdapter struct {
	session *playback.Session
}

// boundary swallows expected playlist edges: an MPRIS Next at the end
// of the queue is a no-op, not a D-Bus error.
func boundary(err error) error {
	if errors.Is(err, playlist.ErrAtEnd) || errors.Is(err, playlist.ErrAtStart) || errors.Is(err, playlist.ErrEmpty) {
		return nil
	}
	return err
}

func (p *playerAdapter) Next() error {
	return boundary(p.session.Next())
}

func (p *playerAdapter) Previous() error {
	return boundary(p.session.Previous())
}

func (p *playerAdapter) Pause() error {
	return p.session.Pause()
}

func (p *playerAdapter) PlayPause() error {
	return p.session.Toggle()
}

func (p *playerAdapter) Stop() error {
	return p.session.Stop()
}

func (p *playerAdapter) Play() error {
	return p.session.Resume()
}

func (p *playerAdapter) Seek(offset types.Microseconds) error {
	return p.session.SeekBy(time.Duration(offset) * time.Microsecond)
}

func (p *playerAdapter) SetPosition(_ string, position types.Microseconds) error {
	return p.session.SeekTo(time.Duration(position) * time.Microsecond)
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil // Playback starts from the library, not arbitrary URIs
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.session.State().Status {
	case playback.StatusPlaying, playback.StatusBuffering, playback.StatusLoading:
		return types.PlaybackStatusPlaying, nil
	case playback.StatusPaused:
		return types.PlaybackStatusPaused, nil
	default:
		return types.PlaybackStatusStopped, nil
	}
}

func (p *playerAdapter) Rate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetRate(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	track := p.session.CurrentTrack()
	if track == nil {
		return types.Metadata{}, nil
	}

	meta := types.Metadata{
		TrackId: dbus.ObjectPath(formatTrackID(track.ID)),
		Length:  types.Microseconds(track.Duration.Microseconds()),
		Title:   track.Title,
		Artist:  []string{track.Artist},
		Album:   track.Album,
	}

	if artPath := ArtPath(*track); artPath != "" {
		meta.ArtUrl = "file://" + artPath
	}

	return meta, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return p.session.Volume(), nil
}

func (p *playerAdapter) SetVolume(v float64) error {
	return p.session.SetVolume(v)
}

func (p *playerAdapter) Position() (int64, error) {
	return p.session.PositionNow().Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	return p.session.HasNext(), nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return p.session.State().TrackIndex > 0, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return len(p.session.Queue().Tracks) > 0, nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

// LoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
// The session only supports single-track repeat, so the playlist loop
// status never appears.
func (p *playerAdapter) LoopStatus() (types.LoopStatus, error) {
	if p.session.State().Repeat {
		return types.LoopStatusTrack, nil
	}
	return types.LoopStatusNone, nil
}

// SetLoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
// A requested playlist loop degrades to no repeat.
func (p *playerAdapter) SetLoopStatus(status types.LoopStatus) error {
	p.session.SetRepeat(status == types.LoopStatusTrack)
	return nil
}

// Shuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) Shuffle() (bool, error) {
	return p.session.State().Shuffle, nil
}

// SetShuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) SetShuffle(shuffle bool) error {
	p.session.SetShuffle(shuffle)
	return nil
}

func formatTrackID(id string) string {
	h := fnv.New64a()
	h.Write([]byte(id))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
