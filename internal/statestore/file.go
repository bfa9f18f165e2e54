package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"doze/internal/fsutil"
	"doze/internal/logging"
)

const (
	idleFile     = "idle_tracking.json"
	wakeFile     = "last_wake.json"
	intentFile   = "hibernation_intent.json"
	snapshotFile = "status.json"
)

// FileStore persists each record as a JSON file in the state directory.
// Writes go through a temp file and rename, so readers never observe a
// partial record.
type FileStore struct {
	dir    string
	logger *logging.Logger
}

// NewFileStore creates the state directory if needed and returns a store.
func NewFileStore(dir string, logger *logging.Logger) (*FileStore, error) {
	if err := fsutil.EnsureStateDirectory(dir); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Dir returns the directory backing this store.
func (s *FileStore) Dir() string { return s.dir }

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) LoadIdleTracking() (IdleTracking, bool, error) {
	var rec IdleTracking
	found, err := s.read(idleFile, &rec)
	return rec, found, err
}

func (s *FileStore) SaveIdleTracking(rec IdleTracking) error {
	return s.write(idleFile, rec)
}

func (s *FileStore) ClearIdleTracking() error {
	return s.remove(idleFile)
}

func (s *FileStore) LoadWakeRecord() (WakeRecord, bool, error) {
	var rec WakeRecord
	found, err := s.read(wakeFile, &rec)
	return rec, found, err
}

func (s *FileStore) SaveWakeRecord(rec WakeRecord) error {
	return s.write(wakeFile, rec)
}

func (s *FileStore) SaveHibernationIntent(rec HibernationIntent) error {
	return s.write(intentFile, rec)
}

func (s *FileStore) LoadHibernationIntent() (HibernationIntent, bool, error) {
	var rec HibernationIntent
	found, err := s.read(intentFile, &rec)
	return rec, found, err
}

func (s *FileStore) TakeHibernationIntent() (HibernationIntent, bool, error) {
	var rec HibernationIntent
	found, err := s.read(intentFile, &rec)
	if err != nil || !found {
		return rec, found, err
	}
	if err := s.remove(intentFile); err != nil {
		return rec, true, fmt.Errorf("consume intent: %w", err)
	}
	return rec, true, nil
}

func (s *FileStore) SaveSnapshot(rec Snapshot) error {
	return s.write(snapshotFile, rec)
}

func (s *FileStore) LoadSnapshot() (Snapshot, bool, error) {
	var rec Snapshot
	found, err := s.read(snapshotFile, &rec)
	return rec, found, err
}

// read unmarshals the named record. A missing file is not an error.
func (s *FileStore) read(name string, v interface{}) (bool, error) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path) // #nosec G304 -- path is inside the state directory
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

func (s *FileStore) write(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	if err := fsutil.AtomicWriteFile(path, data, fsutil.DefaultFilePermissions, s.logger); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) remove(name string) error {
	path := filepath.Join(s.dir, name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}
