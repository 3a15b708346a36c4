package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigNormalizeAndEnabled(t *testing.T) {
	var cfg Config
	assert.False(t, cfg.Enabled())

	cfg.Host = "db"
	cfg.Normalize()
	assert.True(t, cfg.Enabled())
	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 4, cfg.MaxConnections)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "gate", Password: "p w'd", Name: "gatekeeper", SSLMode: "disable"}
	assert.Equal(t, `user=gate password='p w\'d' host=db port=5432 dbname=gatekeeper sslmode=disable`, cfg.DSN())
}

func TestConfigURL(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "gate", Password: "s@cret", Name: "gatekeeper", SSLMode: "require"}
	assert.Equal(t, "postgres://gate:s%40cret@db:5432/gatekeeper?sslmode=require", cfg.URL())
}

func TestMigrationFileAccounting(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0001_a.up.sql", "0001_a.down.sql", "0002_b.up.sql", "0003_c.up.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644))
	}
	files := upFiles(dir)
	assert.Equal(t, []string{"0001_a.up.sql", "0002_b.up.sql", "0003_c.up.sql"}, files)
	assert.Equal(t, uint64(2), fileVersion("0002_b.up.sql"))
	assert.Equal(t, uint64(0), fileVersion("readme.up.sql"))
	assert.Len(t, appliedBetween(files, 1, 3), 2)
	assert.Empty(t, appliedBetween(files, 3, 3))
	assert.Equal(t, []string{"0002_b.up.sql"}, appliedBetween(files, 1, 2))
	assert.Nil(t, upFiles(filepath.Join(dir, "missing")))
}
