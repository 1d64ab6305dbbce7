package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultLedgerTable is the ledger table created by the bundled migration 1.
const DefaultLedgerTable = "schema_ledger"

// Executor is an interface that *sql.DB, *sql.Conn and *sql.Tx implement.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LedgerRecord is one applied migration as persisted in the ledger.
type LedgerRecord struct {
	ID        int64
	Version   int
	Name      string
	AppliedAt time.Time
}

// Ledger reads and writes the table recording applied migrations. Every
// method takes the executor to run on, so that ledger changes join the
// caller's transaction.
type Ledger struct {
	Table   string
	Dialect Dialect
}

// NewLedger returns a ledger over the given table.
//
// Parameters:
//   - table: The name of the ledger table.
//   - dialect: The dialect of the database holding the table.
//
// Returns:
//   - *Ledger: A new Ledger.
func NewLedger(table string, dialect Dialect) *Ledger {
	return &Ledger{Table: table, Dialect: dialect}
}

// Exists reports whether the ledger table exists. Checking does not fail
// when the table is absent, so it is safe inside a transaction on engines
// that abort the transaction on any statement error.
func (l *Ledger) Exists(ctx context.Context, exec Executor) (bool, error) {
	query, args, err := l.Dialect.tableExists(l.Table).
		PlaceholderFormat(l.Dialect.Placeholder).
		ToSql()
	if err != nil {
		return false, err
	}

	var count int64
	if err := exec.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("check ledger table %s: %w", l.Table, err)
	}
	return count > 0, nil
}

// CurrentVersion returns the highest applied version. A missing ledger table
// is not an error: nothing has been applied yet, so the version is 0.
//
// Parameters:
//   - ctx: Context to use.
//   - exec: The executor to use.
//
// Returns:
//   - int: The current version, or 0.
//   - error: An error for any failure other than a missing table.
func (l *Ledger) CurrentVersion(ctx context.Context, exec Executor) (int, error) {
	query, args, err := l.Dialect.builder().
		Select("COALESCE(MAX(version), 0)").
		From(l.Table).
		ToSql()
	if err != nil {
		return 0, err
	}

	var version int64
	err = exec.QueryRowContext(ctx, query, args...).Scan(&version)
	if err != nil {
		if l.Dialect.IsUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read current version from %s: %w", l.Table, err)
	}
	return int(version), nil
}

// AppliedDescending returns every ledger row, most recent version first.
//
// Parameters:
//   - ctx: Context to use.
//   - exec: The executor to use.
//
// Returns:
//   - []LedgerRecord: The applied migrations.
//   - error: An error if the query fails, matching ErrLedgerMissing when the
//     table does not exist.
func (l *Ledger) AppliedDescending(
	ctx context.Context, exec Executor,
) ([]LedgerRecord, error) {
	query, args, err := l.Dialect.builder().
		Select("id", "version", "name", "applied_at").
		From(l.Table).
		OrderBy("version DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, l.wrap("query applied migrations", err)
	}
	defer rows.Close()

	var records []LedgerRecord
	for rows.Next() {
		var rec LedgerRecord
		if err := rows.Scan(
			&rec.ID, &rec.Version, &rec.Name, &rec.AppliedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, l.wrap("query applied migrations", err)
	}
	return records, nil
}

// Record inserts a ledger row for a just-applied migration.
//
// Parameters:
//   - ctx: Context to use.
//   - exec: The executor to use.
//   - mig: The migration that was applied.
//   - appliedAt: The time of application.
//
// Returns:
//   - error: An error if the insert fails.
func (l *Ledger) Record(
	ctx context.Context, exec Executor, mig Migration, appliedAt time.Time,
) error {
	query, args, err := l.Dialect.builder().
		Insert(l.Table).
		Columns("version", "name", "applied_at").
		Values(mig.Version(), mig.Name(), appliedAt.UTC()).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return l.wrap(fmt.Sprintf("record version %03d", mig.Version()), err)
	}
	return nil
}

// Remove deletes the ledger row of a version being rolled back.
//
// Parameters:
//   - ctx: Context to use.
//   - exec: The executor to use.
//   - version: The version to remove.
//
// Returns:
//   - error: An error if the delete fails or no row had the version.
func (l *Ledger) Remove(ctx context.Context, exec Executor, version int) error {
	query, args, err := l.Dialect.builder().
		Delete(l.Table).
		Where("version = ?", version).
		ToSql()
	if err != nil {
		return err
	}

	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return l.wrap(fmt.Sprintf("remove version %03d", version), err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("remove version %03d: no row in %s", version, l.Table)
	}
	return nil
}

func (l *Ledger) wrap(action string, err error) error {
	if l.Dialect.IsUndefinedTable(err) {
		return fmt.Errorf("%s: %w: %s: %w", action, ErrLedgerMissing, l.Table, err)
	}
	return fmt.Errorf("%s in %s: %w", action, l.Table, err)
}
