package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/dosacha/simvex-api/db"
	"github.com/dosacha/simvex-api/internal/dao"
	"github.com/dosacha/simvex-api/internal/domain"
	"github.com/dosacha/simvex-api/internal/repository/memory"
	"github.com/dosacha/simvex-api/internal/upgrade"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	g, err := dao.NewDBEngine(dao.DatabaseConfig{
		Type: dao.TypeSQLite,
		Path: filepath.Join(t.TempDir(), "cmd.sqlite3"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { closeDB(g) })
	return g
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runValidate(db.Migrations(), "(embedded)", &out))
	assert.Contains(t, out.String(), "0001_workflow_connections_target_index.sql")
}

func TestRunValidate_Invalid(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1;")},
		"0003_c.sql": {Data: []byte("SELECT 1;")},
	}
	err := runValidate(fsys, "test", &bytes.Buffer{})
	assert.ErrorIs(t, err, upgrade.ErrVersionGap)
}

func TestMigrateThenSmoke(t *testing.T) {
	g := newSQLite(t)
	ctx := context.Background()

	var out bytes.Buffer
	err := runDBSmoke(ctx, g, zap.NewNop(), &out)
	assert.ErrorIs(t, err, ErrLedgerMissing)

	out.Reset()
	require.NoError(t, runMigrate(ctx, g, db.Migrations(), "(embedded)", zap.NewNop(), &out))
	assert.Contains(t, out.String(), "- applied: 0001_workflow_connections_target_index.sql")

	// idempotent
	out.Reset()
	require.NoError(t, runMigrate(ctx, g, db.Migrations(), "(embedded)", zap.NewNop(), &out))
	assert.Contains(t, out.String(), "0 applied")

	out.Reset()
	require.NoError(t, runDBSmoke(ctx, g, zap.NewNop(), &out))
	assert.Contains(t, out.String(), "- applied_migrations: 2")
	assert.Contains(t, out.String(), "- latest_migration: 0002_ai_histories_created_at_index.sql")
}

func TestRunCheckEnv(t *testing.T) {
	env := map[string]string{}
	getenv := func(k string) string { return env[k] }

	err := runCheckEnv(getenv, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SIMVEX_REPOSITORY_DRIVER")
	assert.Contains(t, err.Error(), "DATABASE_URL")

	env["SIMVEX_REPOSITORY_DRIVER"] = "file"
	env["DATABASE_URL"] = "postgres://simvex:secret@db:5432/simvex"
	err = runCheckEnv(getenv, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be postgres")

	env["SIMVEX_REPOSITORY_DRIVER"] = "Postgres"
	var out bytes.Buffer
	require.NoError(t, runCheckEnv(getenv, &out))
	assert.Contains(t, out.String(), "postgres://simvex:%2A%2A%2A@db:5432/simvex")
	assert.NotContains(t, out.String(), "secret")
}

func TestLoadConfig_EmbeddedDefaultAndEnv(t *testing.T) {
	prev := configDefault
	configDefault = "repository:\n  driver: memory\n"
	t.Cleanup(func() { configDefault = prev })

	env := map[string]string{"SIMVEX_REPOSITORY_FILE": "data/repo.json"}
	cfg, source, err := loadConfig("", func(k string) string { return env[k] })
	require.NoError(t, err)
	assert.Equal(t, "(embedded default)", source)
	assert.Equal(t, "memory", cfg.Repository.Driver)
	assert.Equal(t, "data/repo.json", cfg.Repository.FilePath)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := "repository:\n  driver: sqlite\ndatabase:\n  path: " + filepath.ToSlash(filepath.Join(dir, "db.sqlite3")) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, source, err := loadConfig(path, func(string) string { return "" })
	require.NoError(t, err)
	assert.Equal(t, path, source)
	assert.Equal(t, "sqlite", cfg.Repository.Driver)

	g, err := openDatabase(cfg, zap.NewNop())
	require.NoError(t, err)
	closeDB(g)
}

func TestOpenDatabase_RejectsNonRelational(t *testing.T) {
	prev := configDefault
	configDefault = "repository:\n  driver: memory\n"
	t.Cleanup(func() { configDefault = prev })

	cfg, _, err := loadConfig("", func(string) string { return "" })
	require.NoError(t, err)
	_, err = openDatabase(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg.Repository.Driver = "postgres"
	_, err = openDatabase(cfg, zap.NewNop())
	assert.Error(t, err)
}

func seedReport(t *testing.T) *domain.Repositories {
	t.Helper()
	ctx := context.Background()
	repos := memory.NewRepositories(memory.NewStore())

	a, err := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "Rotor", X: 1.5, Y: 2})
	require.NoError(t, err)
	b, err := repos.Workflow.CreateNode(ctx, "u1", domain.NodeInput{Title: "Shaft"})
	require.NoError(t, err)
	_, err = repos.Workflow.CreateConnection(ctx, "u1", domain.ConnectionInput{From: a.ID, To: b.ID, FromAnchor: "r", ToAnchor: "l"})
	require.NoError(t, err)
	_, err = repos.Memo.Create(ctx, "u1", 7, domain.MemoInput{Title: "note", Content: "torque"})
	require.NoError(t, err)
	_, err = repos.AiHistory.Append(ctx, "u1", 7, domain.AiHistoryInput{Question: "q", Answer: "a"})
	require.NoError(t, err)
	return repos
}

func TestInspect_Tables(t *testing.T) {
	repos := seedReport(t)
	model := int64(7)

	report, err := collectReport(context.Background(), repos, "u1", &model)
	require.NoError(t, err)
	require.Len(t, report.Workflow.Nodes, 2)
	require.Len(t, report.Memos, 1)
	require.Len(t, report.AiHistory, 1)

	var out bytes.Buffer
	printReportTables(&out, report)
	s := out.String()
	assert.Contains(t, s, "Rotor")
	assert.Contains(t, s, "Shaft")
	assert.Contains(t, s, "torque")
	assert.Contains(t, s, "Memos (model 7)")
}

func TestInspect_JSONWithoutModel(t *testing.T) {
	repos := seedReport(t)

	report, err := collectReport(context.Background(), repos, "u1", nil)
	require.NoError(t, err)
	assert.Nil(t, report.Memos)

	var out bytes.Buffer
	require.NoError(t, printReportJSON(&out, report))

	var decoded struct {
		Tenant   string `json:"tenant"`
		Workflow struct {
			Nodes       []map[string]any `json:"nodes"`
			Connections []map[string]any `json:"connections"`
		} `json:"workflow"`
		Memos []any `json:"memos"`
	}
	require.NoError(t, sonic.ConfigStd.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "u1", decoded.Tenant)
	assert.Len(t, decoded.Workflow.Nodes, 2)
	assert.Len(t, decoded.Workflow.Connections, 1)
	assert.Nil(t, decoded.Memos)
	assert.NotContains(t, out.String(), "modelId")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "가나다...", truncate("가나다라마바사", 6))
}
