package store

import (
	"database/sql"
	"errors"
	"time"
)

// SavePosition upserts the resume position for a track.
func (s *Store) SavePosition(trackID string, pos time.Duration) error {
	_, err := s.db.Exec(`
		INSERT INTO positions (track_id, position_ms, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			position_ms = excluded.position_ms,
			updated_at = excluded.updated_at
	`, trackID, pos.Milliseconds(), time.Now().Unix())
	return err
}

// Position returns the saved position for a track. A track that was
// never saved reports zero.
func (s *Store) Position(trackID string) (time.Duration, error) {
	var ms int64
	row := s.db.QueryRow(`SELECT position_ms FROM positions WHERE track_id = ?`, trackID)
	err := row.Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ResetPosition forgets the saved position for a track.
func (s *Store) ResetPosition(trackID string) error {
	_, err := s.db.Exec(`DELETE FROM positions WHERE track_id = ?`, trackID)
	return err
}
