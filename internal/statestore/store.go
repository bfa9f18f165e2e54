package statestore

import (
	"fmt"

	"doze/internal/logging"
)

// Store is the typed persistence interface shared by the file and
// sqlite backends. Load methods report whether a record exists instead
// of inventing zero values.
type Store interface {
	LoadIdleTracking() (IdleTracking, bool, error)
	SaveIdleTracking(IdleTracking) error
	ClearIdleTracking() error

	LoadWakeRecord() (WakeRecord, bool, error)
	SaveWakeRecord(WakeRecord) error

	// SaveHibernationIntent overwrites any previous intent.
	SaveHibernationIntent(HibernationIntent) error
	// LoadHibernationIntent reads the intent without consuming it.
	LoadHibernationIntent() (HibernationIntent, bool, error)
	// TakeHibernationIntent returns the stored intent and deletes it,
	// so a second wake cannot replay a stale transition.
	TakeHibernationIntent() (HibernationIntent, bool, error)

	SaveSnapshot(Snapshot) error
	LoadSnapshot() (Snapshot, bool, error)

	Close() error
}

// Open creates the store backend selected by configuration. dir is the
// resolved state directory.
func Open(backend, dir string, logger *logging.Logger) (Store, error) {
	switch backend {
	case "sqlite":
		return OpenSQLite(dir, logger)
	case "file", "":
		return NewFileStore(dir, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
