package migrator

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the direction a migration is run in.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// SourceKind tells where a migration's SQL text comes from.
type SourceKind int

const (
	// SourceResource loads SQL through a ResourceLoader by naming convention.
	SourceResource SourceKind = iota
	// SourceInline uses SQL text carried by the migration itself.
	SourceInline
)

// SQLSource is the SQL origin of a migration. It is either a resource
// reference or a pair of literal statements, fixed when the migration is
// built.
type SQLSource struct {
	kind    SourceKind
	upSQL   string
	downSQL string
}

// ResourceSQL returns a source that resolves SQL through a ResourceLoader.
func ResourceSQL() SQLSource {
	return SQLSource{kind: SourceResource}
}

// InlineSQL returns a source carrying literal up and down SQL.
//
// Parameters:
//   - upSQL: The SQL run when applying the migration.
//   - downSQL: The SQL run when rolling the migration back.
//
// Returns:
//   - SQLSource: An inline source.
func InlineSQL(upSQL string, downSQL string) SQLSource {
	return SQLSource{kind: SourceInline, upSQL: upSQL, downSQL: downSQL}
}

// Kind returns the kind of the source.
func (s SQLSource) Kind() SourceKind {
	return s.kind
}

// Inline returns the literal SQL for the given direction and whether the
// source is inline at all.
func (s SQLSource) Inline(direction Direction) (string, bool) {
	if s.kind != SourceInline {
		return "", false
	}
	if direction == DirectionDown {
		return s.downSQL, true
	}
	return s.upSQL, true
}

// Migration identifies one schema change. Values are immutable; the With
// methods return modified copies.
type Migration struct {
	version int
	name    string
	source  SQLSource
}

// NewMigration returns a new migration whose SQL is loaded as a resource.
//
// Parameters:
//   - version: The version of the migration. Must be positive.
//   - name: The name of the migration. Must not be blank.
//
// Returns:
//   - Migration: A new migration.
//   - error: ErrInvalidMigration if the version or name is invalid.
func NewMigration(version int, name string) (Migration, error) {
	if version <= 0 {
		return Migration{}, fmt.Errorf(
			"%w: version must be positive, got %d", ErrInvalidMigration, version,
		)
	}
	if strings.TrimSpace(name) == "" {
		return Migration{}, fmt.Errorf(
			"%w: name must not be blank (version %d)", ErrInvalidMigration, version,
		)
	}
	return Migration{version: version, name: name, source: ResourceSQL()}, nil
}

// MustMigration is like NewMigration but panics on an invalid migration. It
// is meant for package level catalogs and tests.
func MustMigration(version int, name string) Migration {
	mig, err := NewMigration(version, name)
	if err != nil {
		panic(err)
	}
	return mig
}

// WithInlineSQL returns a copy of the migration that uses literal SQL instead
// of loading it as a resource.
//
// Parameters:
//   - upSQL: The SQL run when applying the migration.
//   - downSQL: The SQL run when rolling the migration back.
//
// Returns:
//   - Migration: A new migration.
func (m Migration) WithInlineSQL(upSQL string, downSQL string) Migration {
	m.source = InlineSQL(upSQL, downSQL)
	return m
}

// WithSource returns a copy of the migration with the given SQL source.
func (m Migration) WithSource(source SQLSource) Migration {
	m.source = source
	return m
}

// Version returns the version of the migration.
func (m Migration) Version() int {
	return m.version
}

// Name returns the name of the migration.
func (m Migration) Name() string {
	return m.name
}

// Source returns the SQL source of the migration.
func (m Migration) Source() SQLSource {
	return m.source
}

// String returns the resource style identifier, e.g. "001_create_ledger".
func (m Migration) String() string {
	return fmt.Sprintf("%03d_%s", m.version, m.name)
}

// MigrateOptions limits how many migrations a single run processes.
type MigrateOptions struct {
	// MaxSteps caps the number of migrations applied or rolled back. Nil
	// means unbounded; zero or negative means none.
	MaxSteps *int
}

// NewMigrateOptions returns options with no step limit.
func NewMigrateOptions() *MigrateOptions {
	return &MigrateOptions{}
}

// WithMaxSteps returns a copy of the options with the given step limit.
//
// Parameters:
//   - maxSteps: The maximum number of migrations to process.
//
// Returns:
//   - *MigrateOptions: New options.
func (o *MigrateOptions) WithMaxSteps(maxSteps int) *MigrateOptions {
	var new MigrateOptions
	if o != nil {
		new = *o
	}
	new.MaxSteps = &maxSteps
	return &new
}

// EffectiveSteps returns how many of the available migrations a run may
// process. A nil receiver is unbounded.
func (o *MigrateOptions) EffectiveSteps(available int) int {
	if o == nil || o.MaxSteps == nil {
		return available
	}
	if *o.MaxSteps <= 0 {
		return 0
	}
	return min(*o.MaxSteps, available)
}

// RunResult describes exactly what one up or down run changed.
type RunResult struct {
	// Direction is the direction of the run.
	Direction Direction
	// Versions are the versions applied or rolled back, in processing order.
	Versions []int
	// FinalVersion is the highest applied version after the run, or 0.
	FinalVersion int
	// Durations holds the execution time of each processed version.
	Durations map[int]time.Duration
}

func newRunResult(direction Direction) *RunResult {
	return &RunResult{
		Direction: direction,
		Versions:  []int{},
		Durations: map[int]time.Duration{},
	}
}

// HasChanges reports whether the run applied or rolled back anything.
func (r *RunResult) HasChanges() bool {
	return len(r.Versions) > 0
}

// StepsApplied returns the number of migrations processed.
func (r *RunResult) StepsApplied() int {
	return len(r.Versions)
}
