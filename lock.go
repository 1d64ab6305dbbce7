package migrator

import (
	"context"
	"fmt"
	"hash/fnv"
)

// DefaultLockKey is the key runs lock on unless configured otherwise.
const DefaultLockKey = "ledgermigrator"

// Locker serializes migration runs across processes. Acquire is called
// inside the run's transaction before the ledger is read, and the lock must
// be held until that transaction ends.
type Locker interface {
	Acquire(ctx context.Context, exec Executor, key string) error
}

// NoopLock does not lock. It is the default: runs are assumed to come from a
// single writer.
type NoopLock struct{}

// Acquire implements Locker.
func (NoopLock) Acquire(context.Context, Executor, string) error {
	return nil
}

// PostgresAdvisoryLock takes a transaction scoped advisory lock, released by
// PostgreSQL when the transaction ends.
type PostgresAdvisoryLock struct{}

// Acquire implements Locker. It blocks until the lock is granted or ctx is
// done.
func (PostgresAdvisoryLock) Acquire(
	ctx context.Context, exec Executor, key string,
) error {
	lockID := LockID(key)
	if _, err := exec.ExecContext(
		ctx, `SELECT pg_advisory_xact_lock($1)`, lockID,
	); err != nil {
		return fmt.Errorf("pg_advisory_xact_lock(%d): %w", lockID, err)
	}
	return nil
}

// LockID hashes a lock key to a stable non-negative int64 with FNV-1a.
func LockID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF) //nolint:gosec // truncation is intended
}

// LockerFor returns the locker suited to a dialect. SQLite serializes write
// transactions itself. MySQL only offers session scoped named locks, which
// cannot be tied to the run's transaction, so it gets no lock.
func LockerFor(dialect Dialect) Locker {
	if dialect.Name == Postgres.Name {
		return PostgresAdvisoryLock{}
	}
	return NoopLock{}
}
