package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"slices"
	"strings"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3"

	"github.com/aatuh/ledgermigrator/migrations"
)

// Migrator applies and rolls back the migrations of a catalog against one
// database, tracking them in a ledger. Every run executes in exactly one
// transaction: either all of its migrations land, or none do.
type Migrator struct {
	DB      *sql.DB
	Dialect Dialect
	Catalog *Catalog
	Loader  ResourceLoader
	Ledger  *Ledger
	Locker  Locker
	LockKey string
	Logger  lager.Logger
	Clock   clock.Clock
	Metrics *Metrics
}

// NewMigrator returns a Migrator over the migrations bundled for the
// dialect. If logger is nil, logs are discarded.
//
// Parameters:
//   - db: A connection to the target database.
//   - dialect: The dialect of the target database.
//   - logger: Optional logger.
//
// Returns:
//   - *Migrator: A new Migrator.
//   - error: An error if the bundled migrations cannot be read.
func NewMigrator(
	db *sql.DB, dialect Dialect, logger lager.Logger,
) (*Migrator, error) {
	catalog, err := CatalogFromFS(migrations.FS, dialect.MigrationsDir)
	if err != nil {
		return nil, err
	}
	loader, err := NewFSLoader(migrations.FS, dialect.MigrationsDir)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = lager.NewLogger("ledgermigrator")
	}

	return &Migrator{
		DB:      db,
		Dialect: dialect,
		Catalog: catalog,
		Loader:  loader,
		Ledger:  NewLedger(DefaultLedgerTable, dialect),
		Locker:  NoopLock{},
		LockKey: DefaultLockKey,
		Logger:  logger,
		Clock:   clock.NewClock(),
	}, nil
}

// WithCatalog returns a new Migrator using the given catalog in place of the
// current one. Tests use it to substitute a smaller or synthetic set.
//
// Parameters:
//   - catalog: The catalog to use.
//
// Returns:
//   - *Migrator: A new Migrator instance.
func (m *Migrator) WithCatalog(catalog *Catalog) *Migrator {
	new := *m
	new.Catalog = catalog
	return &new
}

// WithLoader returns a new Migrator with the given resource loader.
//
// Parameters:
//   - loader: The loader used for migrations without inline SQL.
//
// Returns:
//   - *Migrator: A new Migrator instance.
func (m *Migrator) WithLoader(loader ResourceLoader) *Migrator {
	new := *m
	new.Loader = loader
	return &new
}

// WithLedgerTable returns a new Migrator tracking migrations in the given
// table. Migration 1 of the catalog must create that table.
//
// Parameters:
//   - table: The name of the ledger table.
//
// Returns:
//   - *Migrator: A new Migrator instance.
func (m *Migrator) WithLedgerTable(table string) *Migrator {
	new := *m
	new.Ledger = NewLedger(table, m.Dialect)
	return &new
}

// WithLocker returns a new Migrator that takes the given lock for each run.
//
// Parameters:
//   - locker: The locker to use.
//   - key: The lock key; empty keeps the current key.
//
// Returns:
//   - *Migrator: A new Migrator instance.
func (m *Migrator) WithLocker(locker Locker, key string) *Migrator {
	new := *m
	new.Locker = locker
	if key != "" {
		new.LockKey = key
	}
	return &new
}

// WithLogger returns a new Migrator with the given logger.
func (m *Migrator) WithLogger(logger lager.Logger) *Migrator {
	new := *m
	new.Logger = logger
	return &new
}

// WithClock returns a new Migrator with the given clock.
func (m *Migrator) WithClock(c clock.Clock) *Migrator {
	new := *m
	new.Clock = c
	return &new
}

// WithMetrics returns a new Migrator recording into the given metrics.
func (m *Migrator) WithMetrics(metrics *Metrics) *Migrator {
	new := *m
	new.Metrics = metrics
	return &new
}

// Close releases the resource loader when it holds resources, such as the
// source driver behind a SourceLoader.
func (m *Migrator) Close() error {
	if c, ok := m.Loader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Migrate runs migrations in the given direction.
//
// Parameters:
//   - ctx: Context to use for database operations.
//   - direction: DirectionUp or DirectionDown.
//   - opts: Optional step limit; nil is unbounded.
//
// Returns:
//   - *RunResult: What the run changed.
//   - error: ErrInvalidOptions for an unknown direction, or the failure that
//     aborted the run.
func (m *Migrator) Migrate(
	ctx context.Context, direction Direction, opts *MigrateOptions,
) (*RunResult, error) {
	if !direction.Valid() {
		return nil, fmt.Errorf("%w: direction %q", ErrInvalidOptions, direction)
	}
	if direction == DirectionDown {
		return m.Down(ctx, opts)
	}
	return m.Up(ctx, opts)
}

// Up applies pending migrations in ascending version order, inside one
// transaction. Calling it with nothing pending returns an empty result.
//
// Parameters:
//   - ctx: Context to use for database operations.
//   - opts: Optional step limit; nil is unbounded.
//
// Returns:
//   - *RunResult: The applied versions and the final version.
//   - error: A *MigrationError naming the failing migration, or a
//     transaction error. Nothing from the run is kept on error.
func (m *Migrator) Up(ctx context.Context, opts *MigrateOptions) (*RunResult, error) {
	logger := m.Logger.Session("migrate-up")
	res, err := withTxV(ctx, logger, m.DB, func(ctx context.Context, tx *sql.Tx) (*RunResult, error) {
		return m.up(ctx, logger, tx, opts)
	})
	m.Metrics.record(DirectionUp, res, err)
	return res, err
}

// UpTx is Up inside a transaction owned by the caller. The caller commits or
// rolls back; on error the transaction must be rolled back. Metrics count the
// run when UpTx returns, not when the caller commits.
func (m *Migrator) UpTx(
	ctx context.Context, tx *sql.Tx, opts *MigrateOptions,
) (*RunResult, error) {
	res, err := m.up(ctx, m.Logger.Session("migrate-up"), tx, opts)
	m.Metrics.record(DirectionUp, res, err)
	return res, err
}

// Down rolls back applied migrations, most recent first, inside one
// transaction. Calling it with nothing applied returns an empty result.
//
// Parameters:
//   - ctx: Context to use for database operations.
//   - opts: Optional step limit; nil is unbounded.
//
// Returns:
//   - *RunResult: The rolled back versions and the final version.
//   - error: A *MigrationError naming the failing migration, or a
//     transaction error. Nothing from the run is kept on error.
func (m *Migrator) Down(ctx context.Context, opts *MigrateOptions) (*RunResult, error) {
	logger := m.Logger.Session("migrate-down")
	res, err := withTxV(ctx, logger, m.DB, func(ctx context.Context, tx *sql.Tx) (*RunResult, error) {
		return m.down(ctx, logger, tx, opts)
	})
	m.Metrics.record(DirectionDown, res, err)
	return res, err
}

// DownTx is Down inside a transaction owned by the caller.
func (m *Migrator) DownTx(
	ctx context.Context, tx *sql.Tx, opts *MigrateOptions,
) (*RunResult, error) {
	res, err := m.down(ctx, m.Logger.Session("migrate-down"), tx, opts)
	m.Metrics.record(DirectionDown, res, err)
	return res, err
}

// CurrentVersion returns the highest applied version, or 0 when the ledger
// does not exist yet.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	return m.Ledger.CurrentVersion(ctx, m.DB)
}

// AvailableMigrations returns every migration of the catalog, ascending.
func (m *Migrator) AvailableMigrations() []Migration {
	return m.Catalog.All()
}

// PendingMigrations returns the catalog migrations newer than the current
// version, ascending.
func (m *Migrator) PendingMigrations(ctx context.Context) ([]Migration, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	return m.Catalog.PendingAfter(current), nil
}

func (m *Migrator) up(
	ctx context.Context, logger lager.Logger, exec Executor, opts *MigrateOptions,
) (*RunResult, error) {
	logger.Info(starting)

	if err := m.Locker.Acquire(ctx, exec, m.LockKey); err != nil {
		logger.Error(failedToAcquireLock, err)
		return nil, err
	}

	current, err := m.currentVersion(ctx, exec)
	if err != nil {
		return nil, err
	}
	logger.Debug(retrievedCurrentVersion, lager.Data{"version": current})

	pending := m.Catalog.PendingAfter(current)
	toApply := pending[:opts.EffectiveSteps(len(pending))]

	res := newRunResult(DirectionUp)
	res.FinalVersion = current

	if len(toApply) == 0 {
		logger.Info(noMigrationsToRun, lager.Data{"pending": len(pending)})
		return res, nil
	}

	for _, mig := range toApply {
		migLogger := logger.WithData(lager.Data{
			"version": mig.Version(),
			"name":    mig.Name(),
		})
		start := m.Clock.Now()

		query, err := m.resolveSQL(ctx, mig, DirectionUp)
		if err != nil {
			return nil, m.fail(migLogger, mig, DirectionUp, err)
		}
		if _, err := exec.ExecContext(ctx, query); err != nil {
			return nil, m.fail(migLogger, mig, DirectionUp, err)
		}
		if err := m.Ledger.Record(ctx, exec, mig, m.Clock.Now()); err != nil {
			return nil, m.fail(migLogger, mig, DirectionUp, err)
		}

		elapsed := m.Clock.Since(start)
		res.Versions = append(res.Versions, mig.Version())
		res.Durations[mig.Version()] = elapsed
		res.FinalVersion = mig.Version()

		migLogger.Info(appliedMigration, lager.Data{"duration": elapsed.String()})
	}

	logger.Info(finished, lager.Data{
		"versions":      res.Versions,
		"final_version": res.FinalVersion,
	})
	return res, nil
}

func (m *Migrator) down(
	ctx context.Context, logger lager.Logger, exec Executor, opts *MigrateOptions,
) (*RunResult, error) {
	logger.Info(starting)

	if err := m.Locker.Acquire(ctx, exec, m.LockKey); err != nil {
		logger.Error(failedToAcquireLock, err)
		return nil, err
	}

	res := newRunResult(DirectionDown)

	exists, err := m.Ledger.Exists(ctx, exec)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.Info(ledgerNotFound, lager.Data{"table": m.Ledger.Table})
		return res, nil
	}

	applied, err := m.Ledger.AppliedDescending(ctx, exec)
	if err != nil {
		return nil, err
	}
	logger.Debug(retrievedAppliedVersions, lager.Data{"count": len(applied)})

	toRollback := applied[:opts.EffectiveSteps(len(applied))]
	if len(toRollback) == 0 {
		if len(applied) > 0 {
			res.FinalVersion = applied[0].Version
		}
		logger.Info(noMigrationsToRun, lager.Data{"applied": len(applied)})
		return res, nil
	}

	for _, rec := range toRollback {
		mig, err := m.migrationFor(rec)
		if err != nil {
			return nil, err
		}
		migLogger := logger.WithData(lager.Data{
			"version": mig.Version(),
			"name":    mig.Name(),
		})
		start := m.Clock.Now()

		query, err := m.resolveSQL(ctx, mig, DirectionDown)
		if err != nil {
			return nil, m.fail(migLogger, mig, DirectionDown, err)
		}
		if err := m.rollbackOne(ctx, exec, mig, query); err != nil {
			return nil, m.fail(migLogger, mig, DirectionDown, err)
		}

		elapsed := m.Clock.Since(start)
		res.Versions = append(res.Versions, mig.Version())
		res.Durations[mig.Version()] = elapsed

		migLogger.Info(rolledBackMigration, lager.Data{"duration": elapsed.String()})
	}

	// Version 1 creates the ledger, so rolling it back leaves nothing to
	// query.
	if slices.Contains(res.Versions, 1) {
		res.FinalVersion = 0
	} else {
		res.FinalVersion, err = m.Ledger.CurrentVersion(ctx, exec)
		if err != nil {
			return nil, err
		}
	}

	logger.Info(finished, lager.Data{
		"versions":      res.Versions,
		"final_version": res.FinalVersion,
	})
	return res, nil
}

// rollbackOne runs the down SQL of mig and removes its ledger row. The down
// SQL of version 1 drops the ledger table, so its row goes first; every other
// row is removed only after its SQL succeeded.
func (m *Migrator) rollbackOne(
	ctx context.Context, exec Executor, mig Migration, query string,
) error {
	if mig.Version() == 1 {
		if err := m.Ledger.Remove(ctx, exec, mig.Version()); err != nil {
			return err
		}
		_, err := exec.ExecContext(ctx, query)
		return err
	}

	if _, err := exec.ExecContext(ctx, query); err != nil {
		return err
	}
	return m.Ledger.Remove(ctx, exec, mig.Version())
}

// currentVersion reads the current version inside a run. The existence check
// keeps the transaction usable on engines that abort it on a failed
// statement.
func (m *Migrator) currentVersion(ctx context.Context, exec Executor) (int, error) {
	exists, err := m.Ledger.Exists(ctx, exec)
	if err != nil || !exists {
		return 0, err
	}
	return m.Ledger.CurrentVersion(ctx, exec)
}

// migrationFor returns the catalog migration of a ledger row, or a resource
// migration named after the row when the catalog no longer has the version.
func (m *Migrator) migrationFor(rec LedgerRecord) (Migration, error) {
	if mig, ok := m.Catalog.Get(rec.Version); ok {
		return mig, nil
	}
	mig, err := NewMigration(rec.Version, rec.Name)
	if err != nil {
		return Migration{}, &MigrationError{
			Version:   rec.Version,
			Name:      rec.Name,
			Direction: DirectionDown,
			Err:       err,
		}
	}
	return mig, nil
}

// resolveSQL returns the SQL of mig in the given direction, from the
// migration itself when it is inline and from the loader otherwise.
func (m *Migrator) resolveSQL(
	ctx context.Context, mig Migration, direction Direction,
) (string, error) {
	if query, ok := mig.Source().Inline(direction); ok {
		if strings.TrimSpace(query) == "" {
			return "", fmt.Errorf(
				"%w: inline %s sql is empty", ErrResourceNotFound, direction,
			)
		}
		return query, nil
	}
	if m.Loader == nil {
		return "", fmt.Errorf(
			"%w: no loader for %s", ErrResourceNotFound, ResourceName(mig, direction),
		)
	}
	return m.Loader.LoadSQL(ctx, mig, direction)
}

func (m *Migrator) fail(
	logger lager.Logger, mig Migration, direction Direction, err error,
) error {
	if direction == DirectionUp {
		logger.Error(failedToApplyMigration, err)
	} else {
		logger.Error(failedToRollbackMigration, err)
	}
	return &MigrationError{
		Version:   mig.Version(),
		Name:      mig.Name(),
		Direction: direction,
		Err:       err,
	}
}
