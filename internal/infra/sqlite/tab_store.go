package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // CGO-free SQLite
)

// TabStore persists tab-scoped values in a SQLite file so a restarted client with
// the same file is recognized as a reload of the same tab.
type TabStore struct {
	db *sql.DB
}

func NewTabStore(path string) (*TabStore, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open tab store: %w", err)
	}
	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS tab_values(
	  key   TEXT PRIMARY KEY,
	  value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tab store table: %w", err)
	}
	return &TabStore{db: db}, nil
}

func (s *TabStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM tab_values WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *TabStore) Set(key, value string) error {
	_, err := s.db.Exec(`
	INSERT INTO tab_values(key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *TabStore) Close() error {
	return s.db.Close()
}
