// Package config loads the settings of the ledgermigrate command from a YAML
// file, optional .env files and LEDGERMIGRATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	migrator "github.com/aatuh/ledgermigrator"
)

// Environment variables that override file settings.
const (
	EnvDriver   = "LEDGERMIGRATE_DRIVER"
	EnvDSN      = "LEDGERMIGRATE_DSN"
	EnvDir      = "LEDGERMIGRATE_DIR"
	EnvLogLevel = "LEDGERMIGRATE_LOG_LEVEL"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config is the complete command configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Log        LogConfig        `yaml:"log"`
}

// DatabaseConfig selects the target database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// MigrationsConfig selects the migrations and how runs are tracked.
type MigrationsConfig struct {
	// Dir is a directory of migration files. Empty uses the bundled ones.
	Dir         string `yaml:"dir,omitempty"`
	LedgerTable string `yaml:"ledger_table"`
	Lock        bool   `yaml:"lock"`
	LockKey     string `yaml:"lock_key,omitempty"`
}

// LogConfig sets the minimum log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: migrator.SQLite.Name},
		Migrations: MigrationsConfig{
			LedgerTable: migrator.DefaultLedgerTable,
			LockKey:     migrator.DefaultLockKey,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadFromFile reads a YAML configuration file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Load builds the configuration from the file at path (skipped when empty),
// then the given .env files, then the process environment. Missing .env files
// are ignored. Callers apply their own overrides and then call Validate.
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// ApplyEnv overrides settings with the LEDGERMIGRATE_* variables found by
// lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDriver); ok {
		c.Database.Driver = v
	}
	if v, ok := lookup(EnvDSN); ok {
		c.Database.DSN = v
	}
	if v, ok := lookup(EnvDir); ok {
		c.Migrations.Dir = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = v
	}
}

// Dialect returns the dialect of the configured driver.
func (c *Config) Dialect() (migrator.Dialect, error) {
	return migrator.DialectByName(c.Database.Driver)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := c.Dialect(); err != nil {
		return err
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}
	if !identifierPattern.MatchString(c.Migrations.LedgerTable) {
		return fmt.Errorf("invalid ledger table name %q", c.Migrations.LedgerTable)
	}
	if c.Migrations.Dir == "" && c.Migrations.LedgerTable != migrator.DefaultLedgerTable {
		return fmt.Errorf(
			"ledger table %q requires a migrations dir: the bundled migrations create %s",
			c.Migrations.LedgerTable, migrator.DefaultLedgerTable,
		)
	}
	switch c.Log.Level {
	case "debug", "info", "error", "fatal":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}
