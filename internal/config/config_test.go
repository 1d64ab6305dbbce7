package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	migrator "github.com/aatuh/ledgermigrator"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, "config.yml", `
database:
  driver: postgres
  dsn: postgres://localhost/app
migrations:
  lock: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/app", cfg.Database.DSN)
	assert.True(t, cfg.Migrations.Lock)
	assert.Equal(t, migrator.DefaultLedgerTable, cfg.Migrations.LedgerTable)
	assert.Equal(t, migrator.DefaultLockKey, cfg.Migrations.LockKey)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorContains(t, err, "failed to read config file")

	path := writeFile(t, "bad.yml", "database: [")
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvDriver:   "mysql",
		EnvDSN:      "user:pw@/app",
		EnvDir:      "db/migrations",
		EnvLogLevel: "debug",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "user:pw@/app", cfg.Database.DSN)
	assert.Equal(t, "db/migrations", cfg.Migrations.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvFileAndEnvironment(t *testing.T) {
	t.Setenv(EnvDriver, "sqlite")
	envFile := writeFile(t, ".env", EnvDSN+"=file:app.db\n")

	t.Cleanup(func() { _ = os.Unsetenv(EnvDSN) })

	cfg, err := Load("", envFile, filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:app.db", cfg.Database.DSN)

	dialect, err := cfg.Dialect()
	require.NoError(t, err)
	assert.Equal(t, migrator.SQLite.Name, dialect.Name)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Database.DSN = "file:app.db"
		return cfg
	}
	require.NoError(t, valid().Validate())

	custom := valid()
	custom.Migrations.Dir = "db/migrations"
	custom.Migrations.LedgerTable = "app_ledger"
	require.NoError(t, custom.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, "unsupported dialect"},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, "dsn is required"},
		{"bad table", func(c *Config) { c.Migrations.LedgerTable = "ledger; drop" }, "invalid ledger table"},
		{"custom table without dir", func(c *Config) { c.Migrations.LedgerTable = "app_ledger" }, "requires a migrations dir"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "unknown log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
