package upgrade

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/dosacha/simvex-api/internal/dao"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dao.NewDBEngine(dao.DatabaseConfig{
		Type: dao.TypeSQLite,
		Path: filepath.Join(t.TempDir(), "migrate.sqlite3"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func script(sql string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(sql)}
}

func TestLoadScripts_SortsNumerically(t *testing.T) {
	fsys := fstest.MapFS{
		"10_ten.sql":  script("SELECT 1;"),
		"2_two.sql":   script("SELECT 1;"),
		"1_one.SQL":   script("SELECT 1;"),
		"README.md":   script("docs"),
		"x_bad.sql":   script("SELECT 1;"),
		"3_dir/a.sql": script("SELECT 1;"),
	}

	scripts, err := LoadScripts(fsys)
	require.NoError(t, err)

	names := make([]string, 0, len(scripts))
	for _, s := range scripts {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"1_one.SQL", "2_two.sql", "10_ten.sql"}, names)
	assert.Equal(t, "two", scripts[1].Description())
}

func TestLoadScripts_MissingDir(t *testing.T) {
	scripts, err := LoadScripts(fstest.MapFS{})
	require.NoError(t, err)
	assert.Empty(t, scripts)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr error
	}{
		{
			name: "ok",
			fsys: fstest.MapFS{
				"0001_init.sql": script("CREATE TABLE a (id INTEGER);"),
				"0002_next.sql": script("CREATE TABLE b (id INTEGER);"),
			},
		},
		{
			name: "starts above one",
			fsys: fstest.MapFS{
				"0005_init.sql": script("SELECT 1;"),
				"0006_next.sql": script("SELECT 1;"),
			},
		},
		{
			name:    "empty dir",
			fsys:    fstest.MapFS{},
			wantErr: ErrNoMigrations,
		},
		{
			name: "duplicate",
			fsys: fstest.MapFS{
				"0001_a.sql": script("SELECT 1;"),
				"001_b.sql":  script("SELECT 1;"),
			},
			wantErr: ErrDuplicateVersion,
		},
		{
			name: "gap",
			fsys: fstest.MapFS{
				"0001_a.sql": script("SELECT 1;"),
				"0003_c.sql": script("SELECT 1;"),
			},
			wantErr: ErrVersionGap,
		},
		{
			name: "blank script",
			fsys: fstest.MapFS{
				"0001_a.sql": script("SELECT 1;"),
				"0002_b.sql": script("  \n\t "),
			},
			wantErr: ErrEmptyMigration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scripts, err := Validate(tt.fsys)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, scripts, len(tt.fsys))
		})
	}
}

func TestMigrationManager_RunAppliesOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fsys := fstest.MapFS{
		"0001_create_a.sql": script("CREATE TABLE a (id INTEGER PRIMARY KEY);"),
		"0002_seed_a.sql":   script("INSERT INTO a (id) VALUES (1); INSERT INTO a (id) VALUES (2);"),
	}

	m := NewMigrationManager(db, fsys, nil)
	m.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	applied, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_create_a.sql", "0002_seed_a.sql"}, applied)

	var count int64
	require.NoError(t, db.Table("a").Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// second run is a no-op
	applied, err = m.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
	require.NoError(t, db.Table("a").Count(&count).Error)
	assert.Equal(t, int64(2), count)

	var rows []SchemaMigration
	require.NoError(t, db.Order("version ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "0001_create_a.sql", rows[0].Version)
	assert.True(t, rows[0].AppliedAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestMigrationManager_RunAppliesNewScripts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fsys := fstest.MapFS{
		"0001_create_a.sql": script("CREATE TABLE a (id INTEGER PRIMARY KEY);"),
	}

	_, err := NewMigrationManager(db, fsys, nil).Run(ctx)
	require.NoError(t, err)

	fsys["0002_create_b.sql"] = script("CREATE TABLE b (id INTEGER PRIMARY KEY);")
	applied, err := NewMigrationManager(db, fsys, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_create_b.sql"}, applied)
	assert.True(t, db.Migrator().HasTable("b"))
}

func TestMigrationManager_FailureRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fsys := fstest.MapFS{
		"0001_create_a.sql": script("CREATE TABLE a (id INTEGER PRIMARY KEY);"),
		"0002_broken.sql":   script("CREATE TABLE b (id INTEGER PRIMARY KEY); INSERT INTO missing_table VALUES (1);"),
		"0003_create_c.sql": script("CREATE TABLE c (id INTEGER PRIMARY KEY);"),
	}

	applied, err := NewMigrationManager(db, fsys, nil).Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration failed: 0002_broken.sql")
	assert.Equal(t, []string{"0001_create_a.sql"}, applied)

	assert.True(t, db.Migrator().HasTable("a"))
	assert.False(t, db.Migrator().HasTable("b"))
	assert.False(t, db.Migrator().HasTable("c"))

	var versions []string
	require.NoError(t, db.Model(&SchemaMigration{}).Order("version ASC").Pluck("version", &versions).Error)
	assert.Equal(t, []string{"0001_create_a.sql"}, versions)
}

func TestMigrationManager_RejectsOutOfOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.AutoMigrate(&SchemaMigration{}))
	require.NoError(t, db.Create(&SchemaMigration{Version: "0002_b.sql", AppliedAt: time.Now()}).Error)

	fsys := fstest.MapFS{
		"0001_a.sql": script("CREATE TABLE a (id INTEGER PRIMARY KEY);"),
		"0002_b.sql": script("CREATE TABLE b (id INTEGER PRIMARY KEY);"),
	}
	applied, err := NewMigrationManager(db, fsys, nil).Run(ctx)
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.Empty(t, applied)
	assert.False(t, db.Migrator().HasTable("a"))
}

func TestMigrationManager_InvalidSetRunsNothing(t *testing.T) {
	db := newTestDB(t)
	fsys := fstest.MapFS{
		"0001_a.sql": script("CREATE TABLE a (id INTEGER PRIMARY KEY);"),
		"0003_c.sql": script("CREATE TABLE c (id INTEGER PRIMARY KEY);"),
	}
	_, err := NewMigrationManager(db, fsys, nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrVersionGap)
	assert.False(t, db.Migrator().HasTable("a"))
	assert.False(t, db.Migrator().HasTable(&SchemaMigration{}))
}

func TestMigrationManager_NoScripts(t *testing.T) {
	db := newTestDB(t)
	applied, err := NewMigrationManager(db, fstest.MapFS{}, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestMigrationManager_Status(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fsys := fstest.MapFS{
		"0001_a.sql": script("CREATE TABLE a (id INTEGER PRIMARY KEY);"),
		"0002_b.sql": script("CREATE TABLE b (id INTEGER PRIMARY KEY);"),
	}
	m := NewMigrationManager(db, fsys, nil)

	st, err := m.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.LedgerExists)
	assert.NotEmpty(t, st.DatabaseTime)

	_, err = m.Run(ctx)
	require.NoError(t, err)

	st, err = m.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.LedgerExists)
	assert.Equal(t, int64(2), st.AppliedCount)
	assert.Equal(t, "0002_b.sql", st.LatestVersion)
}
