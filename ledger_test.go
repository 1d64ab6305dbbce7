package migrator

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	existsSQLite   = "SELECT COUNT(*) FROM sqlite_master WHERE name = ? AND type = ?"
	currentVersion = "SELECT COALESCE(MAX(version), 0) FROM schema_ledger"
	appliedDesc    = "SELECT id, version, name, applied_at FROM schema_ledger ORDER BY version DESC"
	insertLedger   = "INSERT INTO schema_ledger (version,name,applied_at) VALUES (?,?,?)"
	deleteLedger   = "DELETE FROM schema_ledger WHERE version = ?"
)

func q(s string) string {
	return "^" + regexp.QuoteMeta(s) + "$"
}

func newMock(t *testing.T) (sqlmock.Sqlmock, *Ledger, Executor) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return mock, NewLedger(DefaultLedgerTable, SQLite), db
}

func TestLedger_Exists(t *testing.T) {
	mock, ledger, db := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery(q(existsSQLite)).
		WithArgs(DefaultLedgerTable, "table").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(q(existsSQLite)).
		WithArgs(DefaultLedgerTable, "table").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	exists, err := ledger.Exists(ctx, db)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = ledger.Exists(ctx, db)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLedger_CurrentVersion(t *testing.T) {
	mock, ledger, db := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery(q(currentVersion)).
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(4))
	mock.ExpectQuery(q(currentVersion)).
		WillReturnError(errors.New("no such table: schema_ledger"))
	mock.ExpectQuery(q(currentVersion)).
		WillReturnError(errors.New("database is locked"))

	v, err := ledger.CurrentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	v, err = ledger.CurrentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	_, err = ledger.CurrentVersion(ctx, db)
	assert.ErrorContains(t, err, "database is locked")
}

func TestLedger_CurrentVersion_Postgres(t *testing.T) {
	mock, _, db := newMock(t)
	ledger := NewLedger(DefaultLedgerTable, Postgres)

	mock.ExpectQuery(q(currentVersion)).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: "relation does not exist"})

	v, err := ledger.CurrentVersion(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestLedger_AppliedDescending(t *testing.T) {
	mock, ledger, db := newMock(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q(appliedDesc)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "name", "applied_at"}).
			AddRow(2, 3, "add_widgets", at).
			AddRow(1, 1, "create_ledger", at))
	mock.ExpectQuery(q(appliedDesc)).
		WillReturnError(errors.New("no such table: schema_ledger"))

	records, err := ledger.AppliedDescending(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []LedgerRecord{
		{ID: 2, Version: 3, Name: "add_widgets", AppliedAt: at},
		{ID: 1, Version: 1, Name: "create_ledger", AppliedAt: at},
	}, records)

	_, err = ledger.AppliedDescending(ctx, db)
	assert.ErrorIs(t, err, ErrLedgerMissing)
}

func TestLedger_Record(t *testing.T) {
	mock, ledger, db := newMock(t)
	at := time.Date(2024, 5, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

	mock.ExpectExec(q(insertLedger)).
		WithArgs(2, "add_widgets", at.UTC()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(q(insertLedger)).
		WithArgs(2, "add_widgets", sqlmock.AnyArg()).
		WillReturnError(errors.New("UNIQUE constraint failed"))

	mig := MustMigration(2, "add_widgets")
	require.NoError(t, ledger.Record(context.Background(), db, mig, at))

	err := ledger.Record(context.Background(), db, mig, at)
	assert.ErrorContains(t, err, "record version 002 in schema_ledger")
}

func TestLedger_Remove(t *testing.T) {
	mock, ledger, db := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(q(deleteLedger)).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(deleteLedger)).WithArgs(4).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, ledger.Remove(ctx, db, 3))
	assert.ErrorContains(t, ledger.Remove(ctx, db, 4), "no row in schema_ledger")
}

func TestLedger_PostgresPlaceholders(t *testing.T) {
	mock, _, db := newMock(t)
	ledger := NewLedger("custom_ledger", Postgres)

	mock.ExpectExec(q("DELETE FROM custom_ledger WHERE version = $1")).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ledger.Remove(context.Background(), db, 5))
}
