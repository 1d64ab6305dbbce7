package main

const (
	starting = "starting"
	finished = "finished"

	failedToLoadConfig        = "failed-to-load-config"
	failedToOpenSQLConnection = "failed-to-open-sql-connection"
	failedToPingSQLConnection = "failed-to-ping-sql-connection"
	failedToLoadMigrations    = "failed-to-load-migrations"
	failedToRunMigrations     = "failed-to-run-migrations"
	failedToCloseMigrations   = "failed-to-close-migrations"
	failedToWriteMetrics      = "failed-to-write-metrics"
	failedToReadLedger        = "failed-to-read-ledger"
	pingSQLConnection         = "ping-sql-connection"
	ledgerDoesNotMatchCatalog = "ledger-does-not-match-catalog"
)
