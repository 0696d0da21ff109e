package dao

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dosacha/simvex-api/internal/domain"
	"github.com/dosacha/simvex-api/internal/model"
	"github.com/dosacha/simvex-api/internal/repository/repotest"
	"github.com/dosacha/simvex-api/pkg/writequeue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSQLiteDao(t *testing.T, opts ...Option) *Dao {
	t.Helper()
	db, err := NewDBEngine(DatabaseConfig{
		Type: TypeSQLite,
		Path: filepath.Join(t.TempDir(), "db", "simvex.sqlite3"),
	}, nil)
	require.NoError(t, err)
	d := New(db, opts...)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func newSQLiteRepositories(t *testing.T) *domain.Repositories {
	wq := writequeue.New(nil, nil)
	t.Cleanup(func() { _ = wq.Shutdown(context.Background()) })
	return NewRepositories(newSQLiteDao(t, WithWriteQueueManager(wq)))
}

func TestContract_SQLite(t *testing.T) {
	repotest.RunContract(t, newSQLiteRepositories)
}

func TestProperties_SQLite(t *testing.T) {
	repotest.RunProperties(t, newSQLiteRepositories, 20)
}

func TestContract_Postgres(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		url = os.Getenv("POSTGRES_URL")
	}
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := NewDBEngine(DatabaseConfig{Type: TypePostgres, URL: url}, nil)
	require.NoError(t, err)
	d := New(db)
	t.Cleanup(func() { _ = d.Close() })

	// each subtest gets clean tables
	repotest.RunContract(t, func(t *testing.T) *domain.Repositories {
		require.NoError(t, d.EnsureSchema(context.Background()))
		for _, m := range model.Models() {
			require.NoError(t, db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error)
		}
		return NewRepositories(d)
	})
}

func TestDao_SchemaIsLazy(t *testing.T) {
	d := newSQLiteDao(t)
	repos := NewRepositories(d)

	assert.False(t, d.DB().Migrator().HasTable(&model.Memo{}))

	_, err := repos.Memo.ListByModel(context.Background(), "u1", 1)
	require.NoError(t, err)

	for _, m := range model.Models() {
		assert.True(t, d.DB().Migrator().HasTable(m))
	}

	// idempotent
	require.NoError(t, d.EnsureSchema(context.Background()))
	require.NoError(t, model.AutoMigrateAll(d.DB()))
}

func TestDao_SchemaRetriesAfterFailure(t *testing.T) {
	d := newSQLiteDao(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, d.EnsureSchema(ctx))
	assert.False(t, d.schemaReady)

	require.NoError(t, d.EnsureSchema(context.Background()))
	assert.True(t, d.schemaReady)
}

func TestDao_ExecuteWriteRollsBack(t *testing.T) {
	d := newSQLiteDao(t)
	ctx := context.Background()

	err := d.ExecuteWrite(ctx, "u1", func(tx *gorm.DB) error {
		if err := tx.Create(&model.Memo{TenantID: "u1", ModelID: 1, Title: "t"}).Error; err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	var count int64
	require.NoError(t, d.DB().Model(&model.Memo{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDao_TimedOutWriteIsNotCommitted(t *testing.T) {
	wq := writequeue.New(&writequeue.Config{WriteTimeout: 50 * time.Millisecond}, nil)
	t.Cleanup(func() { _ = wq.Shutdown(context.Background()) })
	d := newSQLiteDao(t, WithWriteQueueManager(wq))
	repos := NewRepositories(d)
	ctx := context.Background()
	require.NoError(t, d.EnsureSchema(ctx))

	// hold the tenant queue longer than the write timeout
	release := make(chan struct{})
	started := make(chan struct{})
	go wq.Execute(ctx, "u1", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	node, err := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "late"})
	assert.ErrorIs(t, err, writequeue.ErrWriteTimeout)
	assert.Nil(t, node)

	memo, err := repos.Memo.Create(ctx, "u1", 1, domain.MemoInput{Title: "late"})
	assert.ErrorIs(t, err, writequeue.ErrWriteTimeout)
	assert.Nil(t, memo)

	close(release)
	require.NoError(t, wq.Execute(ctx, "u1", func(context.Context) error { return nil }))

	state, err := repos.Workflow.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, state.Nodes)
	memos, err := repos.Memo.ListByModel(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Empty(t, memos)
}

func TestDao_HistoryTimestampFromClock(t *testing.T) {
	d := newSQLiteDao(t)
	repo := &aiHistoryRepository{dao: d, now: func() time.Time {
		return time.Date(2024, 5, 6, 7, 8, 9, 987654321, time.UTC)
	}}

	item, err := repo.Append(context.Background(), "u1", 3, domain.AiHistoryInput{Question: "q", Answer: "a"})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06T07:08:09.987Z", item.Timestamp)

	list, err := repo.ListByModel(context.Background(), "u1", 3)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, item.Timestamp, list[0].Timestamp)
}

func TestNewDBEngine_Errors(t *testing.T) {
	_, err := NewDBEngine(DatabaseConfig{Type: TypePostgres}, nil)
	assert.Error(t, err)

	_, err = NewDBEngine(DatabaseConfig{Type: TypeMySQL}, nil)
	assert.Error(t, err)

	_, err = NewDBEngine(DatabaseConfig{Type: "oracle"}, nil)
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	assert.Equal(t, "u:p@tcp(h:3306)/db?parseTime=true", mysqlDSN("u:p@tcp(h:3306)/db"))
	assert.Equal(t, "u:p@tcp(h:3306)/db?charset=utf8mb4&parseTime=true", mysqlDSN("u:p@tcp(h:3306)/db?charset=utf8mb4"))
	assert.Equal(t, "u:p@tcp(h:3306)/db?parseTime=false", mysqlDSN("u:p@tcp(h:3306)/db?parseTime=false"))
}
