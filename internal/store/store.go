// Package store is the persistence gateway: opaque JSON snapshots
// keyed by name, backed by SQLite. Two keys are in use, one for the
// user profile and one for the session history log.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mrab/sscprep/internal/model"

	_ "modernc.org/sqlite"
)

// Snapshot keys.
const (
	KeyProfile = "profile"
	KeyHistory = "history"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the snapshot stored under key, or nil when absent.
func (s *Store) Load(key string) ([]byte, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM snapshots WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

// Save upserts the snapshot under key.
func (s *Store) Save(key string, blob []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO snapshots (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, string(blob), string(blob),
	)
	return err
}

// LoadProfile reads the user profile snapshot, defaulting when absent.
func (s *Store) LoadProfile() (model.UserProfile, error) {
	blob, err := s.Load(KeyProfile)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("load profile: %w", err)
	}
	if blob == nil {
		return model.DefaultProfile(), nil
	}
	var p model.UserProfile
	if err := json.Unmarshal(blob, &p); err != nil {
		return model.UserProfile{}, fmt.Errorf("parse profile snapshot: %w", err)
	}
	return p, nil
}

// SaveProfile persists the user profile snapshot.
func (s *Store) SaveProfile(p model.UserProfile) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return s.Save(KeyProfile, blob)
}

// LoadHistory reads the session history log, empty when absent.
func (s *Store) LoadHistory() ([]model.SessionHistory, error) {
	blob, err := s.Load(KeyHistory)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if blob == nil {
		return nil, nil
	}
	var entries []model.SessionHistory
	if err := json.Unmarshal(blob, &entries); err != nil {
		return nil, fmt.Errorf("parse history snapshot: %w", err)
	}
	return entries, nil
}

// SaveHistory persists the full session history log.
func (s *Store) SaveHistory(entries []model.SessionHistory) error {
	blob, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	return s.Save(KeyHistory, blob)
}
