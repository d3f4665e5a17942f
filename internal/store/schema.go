package store

import (
	"database/sql"
)

const currentSchemaVersion = 1

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS tracks (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL UNIQUE,
			mtime INTEGER NOT NULL,
			title TEXT NOT NULL,
			artist TEXT,
			album_artist TEXT,
			album TEXT,
			genre TEXT,
			track_number INTEGER,
			disc_number INTEGER,
			year INTEGER,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			thumbnail TEXT,
			added_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist);
		CREATE INDEX IF NOT EXISTS idx_tracks_album_artist_album ON tracks(album_artist, album);
		CREATE INDEX IF NOT EXISTS idx_tracks_added_at ON tracks(added_at);

		CREATE TABLE IF NOT EXISTS positions (
			track_id TEXT PRIMARY KEY,
			position_ms INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS queue_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			current_index INTEGER NOT NULL DEFAULT -1,
			shuffle INTEGER NOT NULL DEFAULT 0,
			repeat INTEGER NOT NULL DEFAULT 0,
			volume REAL NOT NULL DEFAULT 1.0
		);

		CREATE TABLE IF NOT EXISTS queue_tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			position INTEGER NOT NULL,
			track_id TEXT NOT NULL,
			uri TEXT NOT NULL,
			title TEXT NOT NULL,
			artist TEXT,
			album TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			thumbnail TEXT,
			UNIQUE(position)
		);

		CREATE INDEX IF NOT EXISTS idx_queue_tracks_position ON queue_tracks(position);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	return err
}
