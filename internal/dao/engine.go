package dao

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dosacha/simvex-api/pkg/fileurl"
	"github.com/dosacha/simvex-api/pkg/logger"
	"github.com/dosacha/simvex-api/pkg/util"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported database types
const (
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
	TypeSQLite   = "sqlite"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Type postgres, mysql or sqlite
	Type string
	// URL connection URL for postgres, go-sql-driver DSN for mysql
	URL string
	// Path SQLite 数据库文件路径
	Path string
	// MaxIdleConns 最大闲置连接数
	MaxIdleConns int
	// MaxOpenConns 最大打开连接数
	MaxOpenConns int
	// ConnMaxLifetime 连接最大生命周期，支持 30m、1h 等格式
	ConnMaxLifetime string
	// ConnMaxIdleTime 空闲连接最大生命周期
	ConnMaxIdleTime string
	// RunMode debug 模式下输出 SQL 日志
	RunMode string
}

// NewDBEngine opens a gorm connection pool for c
// NewDBEngine 根据配置创建数据库连接池
func NewDBEngine(c DatabaseConfig, lg *zap.Logger) (*gorm.DB, error) {
	if lg == nil {
		lg = zap.NewNop()
	}

	dialector, err := newDialector(c)
	if err != nil {
		return nil, err
	}

	logMode := gormlogger.Silent
	if c.RunMode == "debug" {
		logMode = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", c.Type, err)
	}

	// 获取通用数据库对象 sql.DB ，然后使用其提供的功能
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	maxOpen := c.MaxOpenConns
	if c.Type == TypeSQLite && maxOpen <= 0 {
		maxOpen = 1
	}
	if c.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	sqlDB.SetConnMaxLifetime(util.ParseDurationOr(c.ConnMaxLifetime, 30*time.Minute))
	sqlDB.SetConnMaxIdleTime(util.ParseDurationOr(c.ConnMaxIdleTime, 10*time.Minute))

	lg.Debug("database engine ready",
		zap.String(logger.FieldDriver, c.Type),
		zap.Int("maxOpenConns", maxOpen))

	return db, nil
}

func newDialector(c DatabaseConfig) (gorm.Dialector, error) {
	switch c.Type {
	case TypePostgres:
		if c.URL == "" {
			return nil, fmt.Errorf("postgres requires a database url")
		}
		return postgres.Open(c.URL), nil

	case TypeMySQL:
		if c.URL == "" {
			return nil, fmt.Errorf("mysql requires a database dsn")
		}
		return mysql.Open(mysqlDSN(c.URL)), nil

	case TypeSQLite:
		path := c.Path
		if path == "" {
			path = "storage/database/simvex.sqlite3"
		}
		if path != ":memory:" && !fileurl.IsExist(path) {
			if err := fileurl.CreatePath(path, os.ModePerm); err != nil {
				return nil, err
			}
		}
		return sqlite.Open(path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"), nil
	}
	return nil, fmt.Errorf("unsupported database type %q", c.Type)
}

// mysqlDSN makes sure time columns scan into time.Time
func mysqlDSN(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}
