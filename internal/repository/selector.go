// Package repository selects and constructs the repository backend once at startup.
package repository

import (
	"context"
	"strings"

	"github.com/dosacha/simvex-api/internal/dao"
	"github.com/dosacha/simvex-api/internal/domain"
	"github.com/dosacha/simvex-api/internal/repository/filestore"
	"github.com/dosacha/simvex-api/internal/repository/memory"
	"github.com/dosacha/simvex-api/pkg/logger"
	"github.com/dosacha/simvex-api/pkg/writequeue"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Driver names
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = dao.TypePostgres
	DriverMySQL    = dao.TypeMySQL
	DriverSQLite   = dao.TypeSQLite
)

var (
	ErrDatabaseURLRequired = errors.New("database driver requires DATABASE_URL or POSTGRES_URL")
	ErrUnknownDriver       = errors.New("unknown repository driver")
)

// Config 仓储后端配置
type Config struct {
	// Driver memory, file, postgres, mysql or sqlite.
	// 为空时: 设置了 FilePath 使用 file, 否则使用 memory
	Driver string
	// FilePath file 后端的 JSON 文件路径
	FilePath string
	// DatabaseURL postgres / mysql 连接串
	DatabaseURL string
	// Database 连接池等关系库设置, Type 与 URL 由 Driver 和 DatabaseURL 决定
	Database dao.DatabaseConfig
	// WriteQueue 关系库按租户串行写入的队列设置, nil 使用默认值
	WriteQueue *writequeue.Config
}

// ResolveDriver returns the normalized driver name for c
func (c Config) ResolveDriver() string {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	if driver != "" {
		return driver
	}
	if strings.TrimSpace(c.FilePath) != "" {
		return DriverFile
	}
	return DriverMemory
}

// Open builds the repository bundle for the configured driver.
// The returned Repositories must be closed to release the pool and drain pending writes.
// Open 根据配置构建仓储
func Open(c Config, lg *zap.Logger) (*domain.Repositories, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	driver := c.ResolveDriver()

	switch driver {
	case DriverMemory:
		lg.Info("repository driver selected", zap.String(logger.FieldDriver, driver))
		return memory.NewRepositories(memory.NewStore(memory.WithLogger(lg))), nil

	case DriverFile:
		path := strings.TrimSpace(c.FilePath)
		if path == "" {
			path = filestore.DefaultPath
		}
		store := filestore.New(path, lg)
		lg.Info("repository driver selected",
			zap.String(logger.FieldDriver, driver),
			zap.String(logger.FieldPath, store.Path()))
		return store.Repositories(), nil

	case DriverPostgres, DriverMySQL, DriverSQLite:
		return openRelational(driver, c, lg)
	}

	return nil, errors.Wrapf(ErrUnknownDriver, "%q", c.Driver)
}

func openRelational(driver string, c Config, lg *zap.Logger) (*domain.Repositories, error) {
	dbConfig := c.Database
	dbConfig.Type = driver
	if url := strings.TrimSpace(c.DatabaseURL); url != "" {
		dbConfig.URL = url
	}
	if driver != DriverSQLite && dbConfig.URL == "" {
		return nil, errors.Wrap(ErrDatabaseURLRequired, driver)
	}

	db, err := dao.NewDBEngine(dbConfig, lg)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s repository", driver)
	}

	wq := writequeue.New(c.WriteQueue, lg)
	d := dao.New(db, dao.WithLogger(lg), dao.WithWriteQueueManager(wq))

	lg.Info("repository driver selected", zap.String(logger.FieldDriver, driver))

	// Close 逆序执行: 先排空写队列, 再关闭连接池
	return dao.NewRepositories(d,
		d.Close,
		func() error { return wq.Shutdown(context.Background()) },
	), nil
}
