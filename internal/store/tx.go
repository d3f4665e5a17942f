package store

import (
	"database/sql"
)

// withTx runs fn inside a transaction, rolling back on error.
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func nullString(n sql.NullString) string {
	if !n.Valid {
		return ""
	}
	return n.String
}

func nullInt64(n sql.NullInt64) int64 {
	if !n.Valid {
		return 0
	}
	return n.Int64
}
