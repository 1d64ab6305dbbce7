package migrator

const (
	starting                  = "starting"
	finished                  = "finished"
	noMigrationsToRun         = "no-migrations-to-run"
	appliedMigration          = "applied-migration"
	rolledBackMigration       = "rolled-back-migration"
	retrievedCurrentVersion   = "retrieved-current-version"
	retrievedAppliedVersions  = "retrieved-applied-versions"
	ledgerNotFound            = "ledger-not-found"
	failedToStartTransaction  = "failed-to-start-transaction"
	failedToCommit            = "failed-to-commit"
	failedToRollback          = "failed-to-rollback"
	failedToAcquireLock       = "failed-to-acquire-lock"
	failedToApplyMigration    = "failed-to-apply-migration"
	failedToRollbackMigration = "failed-to-rollback-migration"
	committed                 = "committed"
	validated                 = "validated"
)
