package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dosacha/simvex-api/internal/domain"
	"github.com/dosacha/simvex-api/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseConfig_Defaults(t *testing.T) {
	c, err := ParseConfig([]byte("repository:\n  driver: sqlite\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "sqlite", c.Repository.Driver)
	assert.Equal(t, "storage/database/simvex.sqlite3", c.Database.Path)
	assert.Equal(t, 10, c.Database.MaxIdleConns)
	assert.Equal(t, "db/migrations", c.Migration.Dir)
	assert.Equal(t, 100, c.WriteQueue.Capacity)
}

func TestParseConfig_Invalid(t *testing.T) {
	_, err := ParseConfig([]byte("log: [unterminated"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
repository:
  driver: file
  file-path: data/repo.json
write-queue:
  capacity: 5
  timeout: 2m
  idle-time: 1d
`), 0644))

	c, realpath, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, realpath)
	assert.Equal(t, path, c.File)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "data/repo.json", c.Repository.FilePath)

	wq := c.GetWriteQueueConfig()
	assert.Equal(t, 5, wq.QueueCapacity)
	assert.Equal(t, 2*time.Minute, wq.WriteTimeout)
	assert.Equal(t, 24*time.Hour, wq.IdleTimeout)

	_, _, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvRepositoryDriver: " postgres ",
		EnvRepositoryFile:   "",
		EnvPostgresURL:      "postgres://u:p@db/simvex",
	}
	c, err := ParseConfig([]byte("repository:\n  driver: memory\n  file-path: keep.json\n"))
	require.NoError(t, err)

	c.ApplyEnv(func(k string) string { return env[k] })
	assert.Equal(t, "postgres", c.Repository.Driver)
	assert.Equal(t, "keep.json", c.Repository.FilePath)
	assert.Equal(t, "postgres://u:p@db/simvex", c.Repository.DatabaseURL)

	env[EnvDatabaseURL] = "postgres://u:p@primary/simvex"
	c.ApplyEnv(func(k string) string { return env[k] })
	assert.Equal(t, "postgres://u:p@primary/simvex", c.Repository.DatabaseURL)

	dbc := c.GetDatabaseConfig()
	assert.Equal(t, repository.DriverPostgres, dbc.Type)
	assert.Equal(t, "postgres://u:p@primary/simvex", dbc.URL)
}

func TestNewApp(t *testing.T) {
	_, err := NewApp(nil, zap.NewNop())
	assert.Error(t, err)

	c, err := ParseConfig(nil)
	require.NoError(t, err)
	_, err = NewApp(c, nil)
	assert.Error(t, err)

	c.Repository.Driver = "postgres"
	_, err = NewApp(c, zap.NewNop())
	assert.ErrorIs(t, err, repository.ErrDatabaseURLRequired)
}

func TestApp_SQLiteLifecycle(t *testing.T) {
	c, err := ParseConfig(nil)
	require.NoError(t, err)
	c.Repository.Driver = repository.DriverSQLite
	c.Database.Path = filepath.Join(t.TempDir(), "app.sqlite3")

	a, err := NewApp(c, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, c, a.Config())

	ctx := context.Background()
	node, err := a.Repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "n"})
	require.NoError(t, err)
	require.NotNil(t, node)

	assert.False(t, a.IsShuttingDown())
	require.NoError(t, a.Shutdown(ctx))
	assert.True(t, a.IsShuttingDown())
	require.NoError(t, a.Shutdown(ctx))
}
