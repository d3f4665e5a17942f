// Package scrobble reports played tracks to Last.fm: a now-playing
// update when a track starts, and a scrobble once it has played long
// enough to count.
package scrobble

import (
	"errors"
	"fmt"
	"time"

	"github.com/shkh/lastfm-go/lastfm"
)

// ErrNotAuthenticated is returned when an operation requires authentication.
var ErrNotAuthenticated = errors.New("not authenticated")

// Track carries the metadata Last.fm needs for one play.
type Track struct {
	Artist    string
	Title     string
	Album     string
	Duration  time.Duration
	StartedAt time.Time // when playback of this track began
}

// Client wraps the Last.fm API for scrobbling operations.
type Client struct {
	api    *lastfm.Api
	authed bool
}

// New creates a Last.fm client with the given API credentials.
func New(apiKey, apiSecret string) *Client {
	return &Client{api: lastfm.New(apiKey, apiSecret)}
}

// Login authenticates with a Last.fm username and password.
func (c *Client) Login(username, password string) error {
	if err := c.api.Login(username, password); err != nil {
		return fmt.Errorf("lastfm login: %w", err)
	}
	c.authed = true
	return nil
}

// IsAuthenticated returns true after a successful Login.
func (c *Client) IsAuthenticated() bool {
	return c.authed
}

// UpdateNowPlaying sends a "now playing" notification to Last.fm.
func (c *Client) UpdateNowPlaying(track Track) error {
	if !c.authed {
		return ErrNotAuthenticated
	}

	_, err := c.api.Track.UpdateNowPlaying(c.params(track, false))
	if err != nil {
		return fmt.Errorf("update now playing: %w", err)
	}
	return nil
}

// Scrobble submits a track play to Last.fm.
func (c *Client) Scrobble(track Track) error {
	if !c.authed {
		return ErrNotAuthenticated
	}

	_, err := c.api.Track.Scrobble(c.params(track, true))
	if err != nil {
		return fmt.Errorf("scrobble: %w", err)
	}
	return nil
}

func (c *Client) params(track Track, withTimestamp bool) lastfm.P {
	params := lastfm.P{
		"artist": track.Artist,
		"track":  track.Title,
	}
	if withTimestamp {
		params["timestamp"] = track.StartedAt.Unix()
	}
	if track.Album != "" {
		params["album"] = track.Album
	}
	if track.Duration > 0 {
		params["duration"] = int(track.Duration.Seconds())
	}
	return params
}
