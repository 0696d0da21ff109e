package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dosacha/simvex-api/internal/dao"
	"github.com/dosacha/simvex-api/internal/domain"
	"github.com/dosacha/simvex-api/internal/repository/repotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ResolveDriver(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{}, DriverMemory},
		{Config{FilePath: "data.json"}, DriverFile},
		{Config{Driver: " Postgres "}, DriverPostgres},
		{Config{Driver: "memory", FilePath: "data.json"}, DriverMemory},
		{Config{Driver: "SQLITE"}, DriverSQLite},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cfg.ResolveDriver())
	}
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(Config{Driver: "postgres"}, nil)
	assert.ErrorIs(t, err, ErrDatabaseURLRequired)

	_, err = Open(Config{Driver: "mysql", DatabaseURL: "   "}, nil)
	assert.ErrorIs(t, err, ErrDatabaseURLRequired)

	_, err = Open(Config{Driver: "redis"}, nil)
	assert.ErrorIs(t, err, ErrUnknownDriver)
	assert.Contains(t, err.Error(), "redis")
}

func TestOpen_Memory(t *testing.T) {
	repotest.RunContract(t, func(t *testing.T) *domain.Repositories {
		repos, err := Open(Config{Driver: DriverMemory}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = repos.Close() })
		return repos
	})
}

func TestOpen_FilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "repo.json")
	ctx := context.Background()

	repos, err := Open(Config{FilePath: path}, nil)
	require.NoError(t, err)
	memo, err := repos.Memo.Create(ctx, "u1", 1, domain.MemoInput{Title: "t", Content: "c"})
	require.NoError(t, err)
	require.NoError(t, repos.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	reopened, err := Open(Config{Driver: DriverFile, FilePath: path}, nil)
	require.NoError(t, err)
	list, err := reopened.Memo.ListByModel(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, memo.ID, list[0].ID)
}

func TestOpen_SQLite(t *testing.T) {
	repotest.RunContract(t, func(t *testing.T) *domain.Repositories {
		repos, err := Open(Config{
			Driver:   DriverSQLite,
			Database: dao.DatabaseConfig{Path: filepath.Join(t.TempDir(), "repo.sqlite3")},
		}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { assert.NoError(t, repos.Close()) })
		return repos
	})
}
