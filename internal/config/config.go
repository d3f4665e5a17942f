package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	LibrarySources []string `koanf:"library_sources"` // paths to scan for music
	DataDir        string   `koanf:"data_dir"`        // overrides the XDG data dir (db, thumbnails)

	// Playback backend selection and tuning
	Playback PlaybackConfig `koanf:"playback"`

	// MPD connection (used when playback.backend = "mpd")
	MPD MPDConfig `koanf:"mpd"`

	// Position polling and persistence cadence
	Tracker TrackerConfig `koanf:"tracker"`

	// Background stall recovery
	Keepalive KeepaliveConfig `koanf:"keepalive"`

	// Last.fm scrobbling (enables scrobbling when configured)
	Lastfm LastfmConfig `koanf:"lastfm"`

	// Log output
	Log LogConfig `koanf:"log"`
}

// PlaybackConfig holds backend selection and startup playback settings.
type PlaybackConfig struct {
	Backend string  `koanf:"backend"` // "local" or "mpd" (default: "local")
	Volume  float64 `koanf:"volume"`  // startup volume (0-1, default: 1.0)
	Resume  *bool   `koanf:"resume"`  // resume tracks from saved position (default: true)
}

// MPDConfig holds the MPD server connection settings.
type MPDConfig struct {
	Address  string `koanf:"address"`  // e.g., "localhost:6600"
	Password string `koanf:"password"` // MPD password, if required
}

// TrackerConfig holds position tracking cadence settings.
type TrackerConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"` // position sampling cadence (default: 1s)
	SaveInterval time.Duration `koanf:"save_interval"` // position persistence cadence (default: 5s)
}

// KeepaliveConfig holds background stall recovery settings.
type KeepaliveConfig struct {
	Disable        bool          `koanf:"disable"`         // turn background recovery off entirely
	HealthInterval time.Duration `koanf:"health_interval"` // health check cadence while backgrounded (default: 1s)
	MaxResumes     int           `koanf:"max_resumes"`     // stalled checks answered with a resume before a reload (default: 5)
	MaxRestarts    int           `koanf:"max_restarts"`    // reloads per background episode before giving up (default: 10)
}

// LastfmConfig holds Last.fm scrobbling configuration.
type LastfmConfig struct {
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
}

// LogConfig holds log output configuration.
type LogConfig struct {
	Level  string `koanf:"level"`  // "trace", "debug", "info", "warn", "error" (default: "info")
	Format string `koanf:"format"` // "console" or "json" (default: "console")
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	configPaths := getConfigPaths()

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	// Expand ~ in library_sources
	for i, src := range cfg.LibrarySources {
		cfg.LibrarySources[i] = expandPath(src)
	}

	// Expand ~ in data_dir
	if cfg.DataDir != "" {
		cfg.DataDir = expandPath(cfg.DataDir)
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. $XDG_CONFIG_HOME/longplay/config.toml (~/.config by default)
	paths = append(paths, filepath.Join(xdg.ConfigHome, "longplay", "config.toml"))

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// HasLastfmConfig returns true if Last.fm scrobbling is configured.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != "" && c.Lastfm.APISecret != "" &&
		c.Lastfm.Username != "" && c.Lastfm.Password != ""
}

// GetDataDir returns the configured data directory, or the XDG
// default when unset.
func (c *Config) GetDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return filepath.Join(xdg.DataHome, "longplay")
}

// GetPlaybackConfig returns the playback configuration with defaults applied.
func (c *Config) GetPlaybackConfig() PlaybackConfig {
	cfg := c.Playback

	switch strings.ToLower(cfg.Backend) {
	case "local", "mpd":
		cfg.Backend = strings.ToLower(cfg.Backend)
	default:
		cfg.Backend = "local"
	}
	if cfg.Volume <= 0 || cfg.Volume > 1 {
		cfg.Volume = 1.0
	}

	return cfg
}

// ResumeEnabled reports whether tracks restart from their saved position.
func (p PlaybackConfig) ResumeEnabled() bool {
	if p.Resume != nil {
		return *p.Resume
	}
	return true
}

// GetMPDConfig returns the MPD configuration with defaults applied.
func (c *Config) GetMPDConfig() MPDConfig {
	cfg := c.MPD

	if cfg.Address == "" {
		cfg.Address = "localhost:6600"
	}

	return cfg
}

// GetTrackerConfig returns the tracker configuration with defaults applied.
func (c *Config) GetTrackerConfig() TrackerConfig {
	cfg := c.Tracker

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = 5 * time.Second
	}
	if cfg.SaveInterval < cfg.PollInterval {
		cfg.SaveInterval = cfg.PollInterval
	}

	return cfg
}

// GetKeepaliveConfig returns the keepalive configuration with defaults applied.
func (c *Config) GetKeepaliveConfig() KeepaliveConfig {
	cfg := c.Keepalive

	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = time.Second
	}
	if cfg.MaxResumes <= 0 {
		cfg.MaxResumes = 5
	}
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = 10
	}

	return cfg
}

// GetLogConfig returns the log configuration with defaults applied.
func (c *Config) GetLogConfig() LogConfig {
	cfg := c.Log

	switch strings.ToLower(cfg.Level) {
	case "trace", "debug", "info", "warn", "error":
		cfg.Level = strings.ToLower(cfg.Level)
	default:
		cfg.Level = "info"
	}
	switch strings.ToLower(cfg.Format) {
	case "console", "json":
		cfg.Format = strings.ToLower(cfg.Format)
	default:
		cfg.Format = "console"
	}

	return cfg
}
