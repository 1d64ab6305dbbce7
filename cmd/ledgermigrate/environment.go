package main

import (
	"context"
	"database/sql"
	"io"
	"os"

	"code.cloudfoundry.org/lager/v3"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"

	migrator "github.com/aatuh/ledgermigrator"
	"github.com/aatuh/ledgermigrator/internal/config"
)

// GlobalOptions are shared by every command.
type GlobalOptions struct {
	Config          string   `long:"config" description:"Path to a YAML configuration file"`
	EnvFiles        []string `long:"env-file" default:".env" description:"Dotenv file to load before reading the environment; may be repeated"`
	Driver          string   `long:"driver" description:"Database driver (postgres, sqlite, mysql)"`
	DSN             string   `long:"dsn" description:"Data source name of the target database"`
	Dir             string   `long:"dir" description:"Directory of migration files; the bundled migrations are used when empty"`
	MetricsTextfile string   `long:"metrics-textfile" description:"Write run metrics in the Prometheus text format to this file"`

	Logger LagerFlag

	stdout io.Writer
	stderr io.Writer
}

// environment is everything a command needs once options are resolved.
type environment struct {
	cfg      *config.Config
	logger   lager.Logger
	db       *sql.DB
	migrator *migrator.Migrator
	registry *prometheus.Registry
	out      io.Writer
	textfile string
}

func (o *GlobalOptions) output() io.Writer {
	if o.stdout == nil {
		return os.Stdout
	}
	return o.stdout
}

func (o *GlobalOptions) logOutput() io.Writer {
	if o.stderr == nil {
		return os.Stderr
	}
	return o.stderr
}

func (o *GlobalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.Config, o.EnvFiles...)
	if err != nil {
		return nil, err
	}

	if o.Driver != "" {
		cfg.Database.Driver = o.Driver
	}
	if o.DSN != "" {
		cfg.Database.DSN = o.DSN
	}
	if o.Dir != "" {
		cfg.Migrations.Dir = o.Dir
	}
	if o.Logger.LogLevel != "" {
		cfg.Log.Level = string(o.Logger.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open resolves the configuration, connects to the database and builds the
// migrator. The caller must call close.
func (o *GlobalOptions) open(ctx context.Context, session string) (*environment, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		if logger, lErr := newLogger("ledgermigrate", LogLevelError, o.logOutput()); lErr == nil {
			logger.Error(failedToLoadConfig, err)
		}
		return nil, err
	}

	logger, err := newLogger("ledgermigrate", LogLevel(cfg.Log.Level), o.logOutput())
	if err != nil {
		return nil, err
	}
	logger = logger.Session(session)

	dialect, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}

	dsn, err := driverDSN(dialect, cfg.Database.DSN)
	if err != nil {
		logger.Error(failedToOpenSQLConnection, err)
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		logger.Error(failedToOpenSQLConnection, err)
		return nil, err
	}

	pingLogger := logger.Session(pingSQLConnection, lager.Data{"driver": dialect.Name})
	pingLogger.Debug(starting)
	if err := db.PingContext(ctx); err != nil {
		pingLogger.Error(failedToPingSQLConnection, err)
		_ = db.Close()
		return nil, err
	}
	pingLogger.Debug(finished)

	m, registry, err := buildMigrator(db, dialect, cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &environment{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		migrator: m,
		registry: registry,
		out:      o.output(),
		textfile: o.MetricsTextfile,
	}, nil
}

func buildMigrator(
	db *sql.DB, dialect migrator.Dialect, cfg *config.Config, logger lager.Logger,
) (*migrator.Migrator, *prometheus.Registry, error) {
	m, err := migrator.NewMigrator(db, dialect, logger)
	if err != nil {
		logger.Error(failedToLoadMigrations, err)
		return nil, nil, err
	}

	if dir := cfg.Migrations.Dir; dir != "" {
		catalog, err := migrator.CatalogFromFS(os.DirFS(dir), ".")
		if err != nil {
			logger.Error(failedToLoadMigrations, err, lager.Data{"dir": dir})
			return nil, nil, err
		}
		loader, err := migrator.NewDirLoader(dir)
		if err != nil {
			logger.Error(failedToLoadMigrations, err, lager.Data{"dir": dir})
			return nil, nil, err
		}
		if err := m.Close(); err != nil {
			logger.Error(failedToCloseMigrations, err)
		}
		m = m.WithCatalog(catalog).WithLoader(loader)
	}

	if cfg.Migrations.LedgerTable != migrator.DefaultLedgerTable {
		m = m.WithLedgerTable(cfg.Migrations.LedgerTable)
	}
	if cfg.Migrations.Lock {
		m = m.WithLocker(migrator.LockerFor(dialect), cfg.Migrations.LockKey)
	}

	registry := prometheus.NewRegistry()
	metrics, err := migrator.NewMetrics(registry)
	if err != nil {
		return nil, nil, err
	}

	return m.WithMetrics(metrics), registry, nil
}

// driverDSN adjusts a DSN to what migrations need from the driver. MySQL
// migration files hold several statements and the ledger scans DATETIME
// columns, so both options are forced on.
func driverDSN(dialect migrator.Dialect, dsn string) (string, error) {
	if dialect.Name != migrator.MySQL.Name {
		return dsn, nil
	}
	mycfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	mycfg.MultiStatements = true
	mycfg.ParseTime = true
	return mycfg.FormatDSN(), nil
}

func (e *environment) close() {
	if e.textfile != "" {
		if err := prometheus.WriteToTextfile(e.textfile, e.registry); err != nil {
			e.logger.Error(failedToWriteMetrics, err, lager.Data{"path": e.textfile})
		}
	}
	if err := e.migrator.Close(); err != nil {
		e.logger.Error(failedToCloseMigrations, err)
	}
	_ = e.db.Close()
}
