package store

import (
	"database/sql"
)

// Store is the sqlite-backed fetch audit log: one row per feed download plus
// a compressed archive of every distinct payload. It exists for debugging
// bad feeds; the persisted weather and metrics tables never read from it.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}
