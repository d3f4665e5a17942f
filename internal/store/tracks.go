package store

import (
	"database/sql"
	"time"
)

// Track is one library row.
type Track struct {
	ID          string
	Path        string
	MTime       int64
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	Genre       string
	TrackNumber int
	DiscNumber  int
	Year        int
	Duration    time.Duration
	Thumbnail   string
	AddedAt     time.Time
	UpdatedAt   time.Time
}

const trackColumns = `id, path, mtime, title, artist, album_artist, album, genre,
	track_number, disc_number, year, duration_ms, thumbnail, added_at, updated_at`

// ListTracks returns the whole library in browse order.
func (s *Store) ListTracks() ([]Track, error) {
	rows, err := s.db.Query(`
		SELECT ` + trackColumns + `
		FROM tracks
		ORDER BY album_artist, album, disc_number, track_number, title
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// TrackByPath returns the track stored for path, or nil.
func (s *Store) TrackByPath(path string) (*Track, error) {
	row := s.db.QueryRow(`
		SELECT `+trackColumns+`
		FROM tracks
		WHERE path = ?
	`, path)
	t, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TrackMTimes returns path to modification time for every stored
// track. Scans use it to skip unchanged files.
func (s *Store) TrackMTimes() (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT path, mtime FROM tracks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mtimes := make(map[string]int64)
	for rows.Next() {
		var path string
		var mtime int64
		if err := rows.Scan(&path, &mtime); err != nil {
			return nil, err
		}
		mtimes[path] = mtime
	}
	return mtimes, rows.Err()
}

// UpsertTracks inserts or updates tracks in one transaction. A row
// that already exists for the path keeps its original id, so saved
// positions survive rescans.
func (s *Store) UpsertTracks(tracks []Track) error {
	if len(tracks) == 0 {
		return nil
	}
	return withTx(s.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO tracks (` + trackColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				mtime = excluded.mtime,
				title = excluded.title,
				artist = excluded.artist,
				album_artist = excluded.album_artist,
				album = excluded.album,
				genre = excluded.genre,
				track_number = excluded.track_number,
				disc_number = excluded.disc_number,
				year = excluded.year,
				duration_ms = excluded.duration_ms,
				thumbnail = excluded.thumbnail,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now()
		for _, t := range tracks {
			added := t.AddedAt
			if added.IsZero() {
				added = now
			}
			_, err := stmt.Exec(
				t.ID, t.Path, t.MTime, t.Title,
				emptyAsNull(t.Artist), emptyAsNull(t.AlbumArtist),
				emptyAsNull(t.Album), emptyAsNull(t.Genre),
				zeroAsNull(t.TrackNumber), zeroAsNull(t.DiscNumber), zeroAsNull(t.Year),
				t.Duration.Milliseconds(), emptyAsNull(t.Thumbnail),
				added.Unix(), now.Unix(),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteTracks removes tracks and their saved positions.
func (s *Store) DeleteTracks(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return withTx(s.db, func(tx *sql.Tx) error {
		trackStmt, err := tx.Prepare(`DELETE FROM tracks WHERE id = ?`)
		if err != nil {
			return err
		}
		defer trackStmt.Close()

		posStmt, err := tx.Prepare(`DELETE FROM positions WHERE track_id = ?`)
		if err != nil {
			return err
		}
		defer posStmt.Close()

		for _, id := range ids {
			if _, err := trackStmt.Exec(id); err != nil {
				return err
			}
			if _, err := posStmt.Exec(id); err != nil {
				return err
			}
		}
		return nil
	})
}

// TrackCount returns the library size.
func (s *Store) TrackCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tracks`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (Track, error) {
	var t Track
	var artist, albumArtist, album, genre, thumbnail sql.NullString
	var trackNumber, discNumber, year sql.NullInt64
	var durationMS, addedAt, updatedAt int64

	err := row.Scan(
		&t.ID, &t.Path, &t.MTime, &t.Title,
		&artist, &albumArtist, &album, &genre,
		&trackNumber, &discNumber, &year,
		&durationMS, &thumbnail, &addedAt, &updatedAt,
	)
	if err != nil {
		return Track{}, err
	}

	t.Artist = nullString(artist)
	t.AlbumArtist = nullString(albumArtist)
	t.Album = nullString(album)
	t.Genre = nullString(genre)
	t.Thumbnail = nullString(thumbnail)
	t.TrackNumber = int(nullInt64(trackNumber))
	t.DiscNumber = int(nullInt64(discNumber))
	t.Year = int(nullInt64(year))
	t.Duration = time.Duration(durationMS) * time.Millisecond
	t.AddedAt = time.Unix(addedAt, 0)
	t.UpdatedAt = time.Unix(updatedAt, 0)
	return t, nil
}

func emptyAsNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func zeroAsNull(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
