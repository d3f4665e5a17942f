// Package store persists the library, playback positions and the
// last queue in a local SQLite database.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvallois/longplay/internal/playlist"
)

const (
	appName      = "longplay"
	dbFileName   = "longplay.db"
	saveDebounce = 500 * time.Millisecond
)

type Store struct {
	db  *sql.DB
	log zerolog.Logger

	saveMu    sync.Mutex
	saveTimer *time.Timer
	pending   *playlist.State
}

// Open opens the database at the default XDG data location.
func Open(log zerolog.Logger) (*Store, error) {
	dbPath, err := xdg.DataFile(filepath.Join(appName, dbFileName))
	if err != nil {
		return nil, err
	}
	return OpenPath(dbPath, log)
}

// OpenPath opens the database at an explicit path, creating parent
// directories and the schema as needed.
func OpenPath(path string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		log: log.With().Str("component", "store").Logger(),
	}, nil
}

// Close flushes any pending queue save and closes the database.
func (s *Store) Close() error {
	s.saveMu.Lock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	pending := s.pending
	s.pending = nil
	s.saveMu.Unlock()

	if pending != nil {
		if err := saveQueue(s.db, *pending); err != nil {
			s.log.Error().Err(err).Msg("flush queue state")
		}
	}

	return s.db.Close()
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}
