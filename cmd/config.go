package cmd

import (
	"io/fs"
	"os"

	"github.com/dosacha/simvex-api/db"
	internalApp "github.com/dosacha/simvex-api/internal/app"
	"github.com/dosacha/simvex-api/internal/dao"
	"github.com/dosacha/simvex-api/internal/repository"
	"github.com/dosacha/simvex-api/pkg/fileurl"
	"github.com/dosacha/simvex-api/pkg/logger"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// configCandidates 未指定 -c 时按顺序查找
var configCandidates = []string{
	"config/config-dev.yaml",
	"config.yaml",
	"config/config.yaml",
}

// loadConfig resolves the config file (flag, then candidates, then the embedded
// default) and applies environment overrides
func loadConfig(path string, getenv func(string) string) (*internalApp.AppConfig, string, error) {
	if path == "" {
		for _, candidate := range configCandidates {
			if fileurl.IsExist(candidate) {
				path = candidate
				break
			}
		}
	}

	var (
		cfg    *internalApp.AppConfig
		source string
		err    error
	)
	if path != "" {
		cfg, source, err = internalApp.LoadConfig(path)
	} else {
		cfg, err = internalApp.ParseConfig([]byte(configDefault))
		source = "(embedded default)"
	}
	if err != nil {
		return nil, source, err
	}

	cfg.ApplyEnv(getenv)
	return cfg, source, nil
}

// runtimeFromCommand 加载配置并创建日志器
func runtimeFromCommand(cmd *cobra.Command) (*internalApp.AppConfig, *zap.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, source, err := loadConfig(configPath, os.Getenv)
	if err != nil {
		return nil, nil, err
	}
	bootstrapLogger.Debug("config loaded", zap.String(logger.FieldPath, source))

	lg, err := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		Production: cfg.Log.Production,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, lg, nil
}

// openDatabase opens the relational pool named by the repository driver
func openDatabase(cfg *internalApp.AppConfig, lg *zap.Logger) (*gorm.DB, error) {
	dbConfig := cfg.GetDatabaseConfig()
	switch dbConfig.Type {
	case dao.TypePostgres, dao.TypeMySQL:
		if dbConfig.URL == "" {
			return nil, errors.Wrap(repository.ErrDatabaseURLRequired, dbConfig.Type)
		}
	case dao.TypeSQLite:
	default:
		return nil, errors.Errorf("repository driver %q has no database, set %s to postgres, mysql or sqlite",
			dbConfig.Type, internalApp.EnvRepositoryDriver)
	}
	return dao.NewDBEngine(dbConfig, lg)
}

// migrationFS 优先使用磁盘目录，配置的目录不存在时使用内置脚本
// An explicit --dir is always used as given
func migrationFS(dir string, explicit bool) (fs.FS, string) {
	if explicit || (dir != "" && fileurl.IsDir(dir)) {
		return os.DirFS(dir), dir
	}
	return db.Migrations(), "(embedded)"
}

func closeDB(g *gorm.DB) {
	if sqlDB, err := g.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
