package statestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"doze/internal/fsutil"
	"doze/internal/logging"
)

// Record names used as primary keys in the records table.
const (
	recordIdle     = "idle"
	recordWake     = "wake"
	recordIntent   = "intent"
	recordSnapshot = "snapshot"
)

// SQLiteStore keeps all records in a single SQLite database. Useful when
// the state directory is on persistent storage and operators want the
// write history visible to standard tooling.
type SQLiteStore struct {
	db     *sql.DB
	logger *logging.Logger
}

// OpenSQLite creates or opens the database at dir/state.db.
// Enables WAL mode and a 5-second busy timeout.
func OpenSQLite(dir string, logger *logging.Logger) (*SQLiteStore, error) {
	if err := fsutil.EnsureStateDirectory(dir); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close cleanly shuts down the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate runs idempotent schema migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS records (
			name       TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) LoadIdleTracking() (IdleTracking, bool, error) {
	var rec IdleTracking
	found, err := s.get(recordIdle, &rec)
	return rec, found, err
}

func (s *SQLiteStore) SaveIdleTracking(rec IdleTracking) error {
	return s.put(recordIdle, rec)
}

func (s *SQLiteStore) ClearIdleTracking() error {
	return s.del(recordIdle)
}

func (s *SQLiteStore) LoadWakeRecord() (WakeRecord, bool, error) {
	var rec WakeRecord
	found, err := s.get(recordWake, &rec)
	return rec, found, err
}

func (s *SQLiteStore) SaveWakeRecord(rec WakeRecord) error {
	return s.put(recordWake, rec)
}

func (s *SQLiteStore) SaveHibernationIntent(rec HibernationIntent) error {
	return s.put(recordIntent, rec)
}

func (s *SQLiteStore) LoadHibernationIntent() (HibernationIntent, bool, error) {
	var rec HibernationIntent
	found, err := s.get(recordIntent, &rec)
	return rec, found, err
}

// TakeHibernationIntent reads and deletes the intent in one transaction.
func (s *SQLiteStore) TakeHibernationIntent() (HibernationIntent, bool, error) {
	var rec HibernationIntent

	tx, err := s.db.Begin()
	if err != nil {
		return rec, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var blob []byte
	err = tx.QueryRow(`SELECT value FROM records WHERE name = ?`, recordIntent).Scan(&blob)
	if err == sql.ErrNoRows {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("select intent: %w", err)
	}

	if err := json.Unmarshal(blob, &rec); err != nil {
		return rec, false, fmt.Errorf("parse intent: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM records WHERE name = ?`, recordIntent); err != nil {
		return rec, false, fmt.Errorf("delete intent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return rec, false, fmt.Errorf("commit: %w", err)
	}

	return rec, true, nil
}

func (s *SQLiteStore) SaveSnapshot(rec Snapshot) error {
	return s.put(recordSnapshot, rec)
}

func (s *SQLiteStore) LoadSnapshot() (Snapshot, bool, error) {
	var rec Snapshot
	found, err := s.get(recordSnapshot, &rec)
	return rec, found, err
}

func (s *SQLiteStore) get(name string, v interface{}) (bool, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT value FROM records WHERE name = ?`, name).Scan(&blob)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select %s: %w", name, err)
	}
	if err := json.Unmarshal(blob, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

func (s *SQLiteStore) put(name string, v interface{}) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO records (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		name, blob, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) del(name string) error {
	if _, err := s.db.Exec(`DELETE FROM records WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}
