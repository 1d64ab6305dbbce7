package migrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Dialect captures what the ledger needs to know about a database engine.
type Dialect struct {
	// Name identifies the dialect in configuration, e.g. "postgres".
	Name string
	// DriverName is the database/sql driver registered for the engine.
	DriverName string
	// MigrationsDir is the directory of the bundled migrations for the
	// engine within migrations.FS.
	MigrationsDir string
	// Placeholder is the bind parameter format of the engine.
	Placeholder squirrel.PlaceholderFormat

	tableExists    func(table string) squirrel.SelectBuilder
	undefinedTable func(err error) bool
}

var (
	// Postgres is the dialect for PostgreSQL through pgx.
	Postgres = Dialect{
		Name:          "postgres",
		DriverName:    "pgx",
		MigrationsDir: "postgres",
		Placeholder:   squirrel.Dollar,
		tableExists: func(table string) squirrel.SelectBuilder {
			return squirrel.Select("COUNT(*)").
				From("pg_catalog.pg_tables").
				Where("schemaname = current_schema()").
				Where(squirrel.Eq{"tablename": table})
		},
		undefinedTable: func(err error) bool {
			var pgErr *pgconn.PgError
			return errors.As(err, &pgErr) && pgErr.Code == "42P01"
		},
	}

	// SQLite is the dialect for SQLite through modernc.org/sqlite.
	SQLite = Dialect{
		Name:          "sqlite",
		DriverName:    "sqlite",
		MigrationsDir: "sqlite",
		Placeholder:   squirrel.Question,
		tableExists: func(table string) squirrel.SelectBuilder {
			return squirrel.Select("COUNT(*)").
				From("sqlite_master").
				Where(squirrel.Eq{"type": "table", "name": table})
		},
		undefinedTable: func(err error) bool {
			return strings.Contains(err.Error(), "no such table")
		},
	}

	// MySQL is the dialect for MySQL and MariaDB. DDL statements commit
	// implicitly on these engines, so a failed run can leave earlier DDL of
	// the same run in place.
	MySQL = Dialect{
		Name:          "mysql",
		DriverName:    "mysql",
		MigrationsDir: "mysql",
		Placeholder:   squirrel.Question,
		tableExists: func(table string) squirrel.SelectBuilder {
			return squirrel.Select("COUNT(*)").
				From("information_schema.tables").
				Where("table_schema = DATABASE()").
				Where(squirrel.Eq{"table_name": table})
		},
		undefinedTable: func(err error) bool {
			var myErr *mysql.MySQLError
			return errors.As(err, &myErr) && myErr.Number == 1146
		},
	}
)

// DialectByName returns the dialect with the given name.
//
// Parameters:
//   - name: One of "postgres", "sqlite" or "mysql".
//
// Returns:
//   - Dialect: The dialect.
//   - error: An error if the name is unknown.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case Postgres.Name, "postgresql", "pgx":
		return Postgres, nil
	case SQLite.Name, "sqlite3":
		return SQLite, nil
	case MySQL.Name, "mariadb":
		return MySQL, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported dialect %q", name)
	}
}

// IsUndefinedTable reports whether err is the engine's "table does not
// exist" error.
func (d Dialect) IsUndefinedTable(err error) bool {
	if err == nil || d.undefinedTable == nil {
		return false
	}
	return d.undefinedTable(err)
}

func (d Dialect) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(d.Placeholder)
}
