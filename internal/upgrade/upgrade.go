package upgrade

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/dosacha/simvex-api/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SchemaMigration 已执行迁移脚本的记录表
type SchemaMigration struct {
	Version   string    `gorm:"column:version;primaryKey;type:varchar(255)" json:"version"`
	AppliedAt time.Time `gorm:"column:applied_at;not null" json:"appliedAt"`
}

// TableName 指定表名
func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

// Status is the ledger summary printed by db-smoke
type Status struct {
	DatabaseTime  string
	LedgerExists  bool
	AppliedCount  int64
	LatestVersion string
}

// MigrationManager 升级管理器
type MigrationManager struct {
	db     *gorm.DB
	fsys   fs.FS
	logger *zap.Logger
	now    func() time.Time
}

// NewMigrationManager 创建升级管理器, fsys 为迁移脚本目录
func NewMigrationManager(db *gorm.DB, fsys fs.FS, lg *zap.Logger) *MigrationManager {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &MigrationManager{
		db:     db,
		fsys:   fsys,
		logger: lg,
		now:    time.Now,
	}
}

// Run validates the script set against the ledger, then applies every pending
// script in its own transaction together with its ledger row. The first failure
// rolls back that script and stops the run. It returns the versions applied now.
// Run 执行升级
func (m *MigrationManager) Run(ctx context.Context) ([]string, error) {
	scripts, err := LoadScripts(m.fsys)
	if err != nil {
		return nil, err
	}
	if len(scripts) == 0 {
		m.logger.Info("no migration scripts, skipping")
		return nil, nil
	}
	if err := ValidateScripts(scripts); err != nil {
		return nil, err
	}

	// 确保 schema_migrations 表存在
	if err := m.db.WithContext(ctx).AutoMigrate(&SchemaMigration{}); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied, err := m.getAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}
	if err := checkOrder(scripts, applied); err != nil {
		return nil, err
	}

	appliedNow := make([]string, 0)
	for _, script := range scripts {
		if applied[script.Version()] {
			continue
		}

		m.logger.Info("applying migration",
			zap.String(logger.FieldVersion, script.Version()),
			zap.String("desc", script.Description()))

		start := time.Now()
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := script.Up(tx, ctx); err != nil {
				return err
			}
			record := &SchemaMigration{
				Version:   script.Version(),
				AppliedAt: m.now().UTC(),
			}
			if err := tx.Create(record).Error; err != nil {
				return fmt.Errorf("failed to record version: %w", err)
			}
			return nil
		})
		if err != nil {
			m.logger.Error("migration failed",
				zap.String(logger.FieldVersion, script.Version()),
				zap.Error(err))
			return appliedNow, fmt.Errorf("migration failed: %s: %w", script.Version(), err)
		}

		m.logger.Info("migration applied successfully",
			zap.String(logger.FieldVersion, script.Version()),
			zap.Duration(logger.FieldDuration, time.Since(start)))
		appliedNow = append(appliedNow, script.Version())
	}

	if len(appliedNow) == 0 {
		m.logger.Info("database is already up to date")
	} else {
		m.logger.Info("upgrade completed", zap.Int("migrations_applied", len(appliedNow)))
	}
	return appliedNow, nil
}

// Status 查询数据库时间与迁移记录
func (m *MigrationManager) Status(ctx context.Context) (*Status, error) {
	db := m.db.WithContext(ctx)
	st := &Status{}

	if err := db.Raw("SELECT CURRENT_TIMESTAMP").Row().Scan(&st.DatabaseTime); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	st.LedgerExists = db.Migrator().HasTable(&SchemaMigration{})
	if !st.LedgerExists {
		return st, nil
	}

	if err := db.Model(&SchemaMigration{}).Count(&st.AppliedCount).Error; err != nil {
		return nil, err
	}
	var latest []SchemaMigration
	if err := db.Order("version DESC").Limit(1).Find(&latest).Error; err != nil {
		return nil, err
	}
	if len(latest) > 0 {
		st.LatestVersion = latest[0].Version
	}
	return st, nil
}

// getAppliedVersions 获取已应用的迁移版本
func (m *MigrationManager) getAppliedVersions(ctx context.Context) (map[string]bool, error) {
	var rows []SchemaMigration
	if err := m.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(rows))
	for _, r := range rows {
		applied[r.Version] = true
	}
	return applied, nil
}
