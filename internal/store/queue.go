package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/nvallois/longplay/internal/playlist"
)

// LoadQueue returns the persisted queue snapshot. An empty database
// yields a snapshot with no tracks and no selection.
func (s *Store) LoadQueue() (playlist.State, error) {
	st := playlist.State{Index: -1}

	row := s.db.QueryRow(`SELECT current_index, shuffle, repeat FROM queue_state WHERE id = 1`)
	err := row.Scan(&st.Index, &st.Shuffle, &st.Repeat)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return playlist.State{}, err
	}

	rows, err := s.db.Query(`
		SELECT track_id, uri, title, artist, album, duration_ms, thumbnail
		FROM queue_tracks
		ORDER BY position
	`)
	if err != nil {
		return playlist.State{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var t playlist.Track
		var artist, album, thumbnail sql.NullString
		var durationMS int64

		err := rows.Scan(&t.ID, &t.URI, &t.Title, &artist, &album, &durationMS, &thumbnail)
		if err != nil {
			return playlist.State{}, err
		}

		t.Artist = nullString(artist)
		t.Album = nullString(album)
		t.Thumbnail = nullString(thumbnail)
		t.Duration = time.Duration(durationMS) * time.Millisecond
		st.Tracks = append(st.Tracks, t)
	}
	return st, rows.Err()
}

// SaveQueue schedules a debounced write of the queue snapshot. Rapid
// successive updates collapse into one write; Close flushes whatever
// is still pending.
func (s *Store) SaveQueue(st playlist.State) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.pending = &st

	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}

	s.saveTimer = time.AfterFunc(saveDebounce, func() {
		s.saveMu.Lock()
		pending := s.pending
		s.pending = nil
		s.saveMu.Unlock()

		if pending != nil {
			if err := saveQueue(s.db, *pending); err != nil {
				s.log.Error().Err(err).Msg("save queue state")
			}
		}
	})
}

// FlushQueue writes the queue snapshot immediately.
func (s *Store) FlushQueue(st playlist.State) error {
	s.saveMu.Lock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.pending = nil
	s.saveMu.Unlock()

	return saveQueue(s.db, st)
}

func saveQueue(db *sql.DB, st playlist.State) error {
	return withTx(db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM queue_tracks`)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO queue_state (id, current_index, shuffle, repeat)
			VALUES (1, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				current_index = excluded.current_index,
				shuffle = excluded.shuffle,
				repeat = excluded.repeat
		`, st.Index, st.Shuffle, st.Repeat)
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO queue_tracks (position, track_id, uri, title, artist, album, duration_ms, thumbnail)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, t := range st.Tracks {
			_, err := stmt.Exec(
				i, t.ID, t.URI, t.Title,
				emptyAsNull(t.Artist), emptyAsNull(t.Album),
				t.Duration.Milliseconds(), emptyAsNull(t.Thumbnail),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Volume returns the persisted volume level, defaulting to full.
func (s *Store) Volume() (float64, error) {
	var volume float64
	row := s.db.QueryRow(`SELECT volume FROM queue_state WHERE id = 1`)
	err := row.Scan(&volume)
	if errors.Is(err, sql.ErrNoRows) {
		return 1.0, nil
	}
	if err != nil {
		return 0, err
	}
	return volume, nil
}

// SaveVolume persists the volume level.
func (s *Store) SaveVolume(volume float64) error {
	_, err := s.db.Exec(`
		INSERT INTO queue_state (id, current_index, shuffle, repeat, volume)
		VALUES (1, -1, 0, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			volume = excluded.volume
	`, volume)
	return err
}
