package store

import (
	"time"

	"authflow/pkg/db"
)

// SQLiteStore implements Store on the application database.
type SQLiteStore struct {
	db *db.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore returns a store over d. Closing the store closes d.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(db.TimeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(db.TimeFormat, s, time.UTC)
}
