// Package migrator versions a relational schema with ordered up/down
// migrations, a persistent ledger of applied versions, and one transaction
// per run, so a failed run never leaves the ledger out of step with the
// schema. SQL comes from inline text or from resources loaded by name
// (embedded or on-disk), and ledger access is dialect aware (Postgres,
// SQLite, MySQL).
package migrator
