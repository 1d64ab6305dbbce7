package migrator

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMigration is returned when a migration is constructed with a
	// non-positive version or a blank name.
	ErrInvalidMigration = errors.New("invalid migration")
	// ErrInvalidOptions is returned for malformed run options, such as an
	// unknown direction.
	ErrInvalidOptions = errors.New("invalid migrate options")
	// ErrDuplicateVersion is returned when a catalog is built with two
	// migrations sharing a version.
	ErrDuplicateVersion = errors.New("duplicate migration version")
	// ErrResourceNotFound is returned when no SQL text exists for a
	// migration in the requested direction.
	ErrResourceNotFound = errors.New("migration sql not found")
	// ErrLedgerMissing is returned when the ledger table is absent for an
	// operation other than reading the current version.
	ErrLedgerMissing = errors.New("ledger table does not exist")
)

// MigrationError identifies the migration that made a run fail. Err holds the
// underlying cause and may match ErrResourceNotFound.
type MigrationError struct {
	Version   int
	Name      string
	Direction Direction
	Err       error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf(
		"migration %03d_%s (%s) failed: %v", e.Version, e.Name, e.Direction, e.Err,
	)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}
