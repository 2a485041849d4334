// Package lock provides MySQL advisory locking to keep concurrent
// imports and round-trip runs from interleaving writes.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrLockTimeout is returned when another instance holds the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// acquireTimeoutSeconds is how long GET_LOCK waits before giving up.
// Imports fail fast when another run is in progress.
const acquireTimeoutSeconds = 1

// TransferLock is a named MySQL advisory lock (GET_LOCK) guarding one
// tenant's write path. The lock auto-releases when the connection
// closes.
type TransferLock struct {
	db       *sql.DB
	lockName string
	held     bool
}

// NewTransferLock creates a lock scoped to an operation and tenant,
// e.g. NewTransferLock(db, "import", 42).
func NewTransferLock(db *sql.DB, operation string, orgID int64) *TransferLock {
	return &TransferLock{
		db:       db,
		lockName: lockName(operation, orgID),
	}
}

// Acquire takes the lock, returning ErrLockTimeout when another
// instance is already running a write operation for this tenant.
func (l *TransferLock) Acquire(ctx context.Context) error {
	if l.held {
		return nil
	}

	var result sql.NullInt64
	err := l.db.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", l.lockName, acquireTimeoutSeconds).Scan(&result)
	if err != nil {
		return fmt.Errorf("failed to execute GET_LOCK: %w", err)
	}

	// GET_LOCK returns 1 on success, 0 on timeout, NULL on error.
	if !result.Valid {
		return fmt.Errorf("GET_LOCK returned NULL for lock %q", l.lockName)
	}
	switch result.Int64 {
	case 1:
		l.held = true
		return nil
	case 0:
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, l.lockName)
	default:
		return fmt.Errorf("unexpected GET_LOCK return value: %d", result.Int64)
	}
}

// Release frees the lock. Safe to call when the lock is not held.
func (l *TransferLock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}

	var result sql.NullInt64
	err := l.db.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", l.lockName).Scan(&result)
	l.held = false
	if err != nil {
		return fmt.Errorf("failed to execute RELEASE_LOCK: %w", err)
	}
	if !result.Valid {
		return fmt.Errorf("RELEASE_LOCK returned NULL for lock %q", l.lockName)
	}
	return nil
}

// IsHeld reports whether this instance currently holds the lock.
func (l *TransferLock) IsHeld() bool {
	return l.held
}

// LockName returns the generated lock name.
func (l *TransferLock) LockName() string {
	return l.lockName
}

// lockName builds "dataport:<operation>:<org>" with the operation
// sanitized to the identifier character set.
func lockName(operation string, orgID int64) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, operation)
	return fmt.Sprintf("dataport:%s:%d", sanitized, orgID)
}
