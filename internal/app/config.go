// Package app 提供应用容器，封装配置、日志与仓储
package app

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dosacha/simvex-api/internal/dao"
	"github.com/dosacha/simvex-api/internal/repository"
	"github.com/dosacha/simvex-api/pkg/util"
	"github.com/dosacha/simvex-api/pkg/writequeue"

	"github.com/creasty/defaults"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvRepositoryDriver = "SIMVEX_REPOSITORY_DRIVER"
	EnvRepositoryFile   = "SIMVEX_REPOSITORY_FILE"
	EnvDatabaseURL      = "DATABASE_URL"
	EnvPostgresURL      = "POSTGRES_URL"
)

// AppConfig 应用配置
type AppConfig struct {
	File       string           `yaml:"-"` // 配置文件路径，不序列化
	Log        LogConfig        `yaml:"log"`
	Repository RepositoryConfig `yaml:"repository"`
	Database   DatabaseConfig   `yaml:"database"`
	Migration  MigrationConfig  `yaml:"migration"`
	WriteQueue WriteQueueConfig `yaml:"write-queue"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别，参见 zapcore.ParseLevel
	Level string `yaml:"level" default:"info"`
	// File 日志文件路径，为空时输出到 stderr
	File string `yaml:"file"`
	// Production 是否启用 JSON 输出
	Production bool `yaml:"production" default:"false"`
}

// RepositoryConfig 仓储后端配置
type RepositoryConfig struct {
	// Driver memory, file, postgres, mysql or sqlite
	// 为空时: 设置了 file-path 使用 file, 否则使用 memory
	Driver string `yaml:"driver"`
	// FilePath file 后端的 JSON 文件路径
	FilePath string `yaml:"file-path"`
	// DatabaseURL postgres 连接 URL 或 mysql DSN
	DatabaseURL string `yaml:"database-url"`
}

// DatabaseConfig 数据库连接池配置
type DatabaseConfig struct {
	// Path SQLite 数据库文件路径
	Path string `yaml:"path" default:"storage/database/simvex.sqlite3"`
	// MaxIdleConns 最大闲置连接数，默认 10
	MaxIdleConns int `yaml:"max-idle-conns" default:"10"`
	// MaxOpenConns 最大打开连接数，0 表示不限制 (SQLite 为 1)
	MaxOpenConns int `yaml:"max-open-conns"`
	// ConnMaxLifetime 连接最大生命周期，支持格式：30m（分钟）、1h（小时），默认 30m
	ConnMaxLifetime string `yaml:"conn-max-lifetime" default:"30m"`
	// ConnMaxIdleTime 空闲连接最大生命周期，默认 10m
	ConnMaxIdleTime string `yaml:"conn-max-idle-time" default:"10m"`
	// RunMode debug 模式输出 SQL
	RunMode string `yaml:"run-mode" default:"release"`
}

// MigrationConfig 迁移脚本配置
type MigrationConfig struct {
	// Dir 迁移脚本目录，不存在时使用内置脚本
	Dir string `yaml:"dir" default:"db/migrations"`
}

// WriteQueueConfig 写队列配置
type WriteQueueConfig struct {
	Capacity int    `yaml:"capacity" default:"100"`
	Timeout  string `yaml:"timeout" default:"30s"`
	IdleTime string `yaml:"idle-time" default:"10m"`
}

// LoadConfig 从文件加载配置
// 返回配置实例和配置文件的绝对路径
func LoadConfig(f string) (*AppConfig, string, error) {
	realpath, err := filepath.Abs(f)
	if err != nil {
		return nil, "", err
	}
	realpath = filepath.Clean(realpath)

	file, err := os.ReadFile(realpath)
	if err != nil {
		return nil, realpath, errors.Wrap(err, "read config file failed")
	}

	c, err := ParseConfig(file)
	if err != nil {
		return nil, realpath, err
	}
	c.File = realpath
	return c, realpath, nil
}

// ParseConfig decodes YAML content with struct-tag defaults filled in
func ParseConfig(data []byte) (*AppConfig, error) {
	c := new(AppConfig)

	// 设置默认值
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "set default config failed")
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "parse config file failed")
	}

	// 再次设置默认值，以填充 YAML 中存在但值为空的字段
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "re-set default config failed")
	}

	return c, nil
}

// ApplyEnv overrides repository settings from the environment.
// DATABASE_URL wins over POSTGRES_URL; empty values are ignored.
func (c *AppConfig) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EnvRepositoryDriver)); v != "" {
		c.Repository.Driver = v
	}
	if v := strings.TrimSpace(getenv(EnvRepositoryFile)); v != "" {
		c.Repository.FilePath = v
	}
	if v := strings.TrimSpace(getenv(EnvDatabaseURL)); v != "" {
		c.Repository.DatabaseURL = v
	} else if v := strings.TrimSpace(getenv(EnvPostgresURL)); v != "" {
		c.Repository.DatabaseURL = v
	}
}

// GetDatabaseConfig 获取 DAO 使用的数据库配置
func (c *AppConfig) GetDatabaseConfig() dao.DatabaseConfig {
	return dao.DatabaseConfig{
		Type:            repository.Config{Driver: c.Repository.Driver}.ResolveDriver(),
		URL:             c.Repository.DatabaseURL,
		Path:            c.Database.Path,
		MaxIdleConns:    c.Database.MaxIdleConns,
		MaxOpenConns:    c.Database.MaxOpenConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
		RunMode:         c.Database.RunMode,
	}
}

// GetWriteQueueConfig 获取 Write Queue 配置
func (c *AppConfig) GetWriteQueueConfig() writequeue.Config {
	cfg := writequeue.DefaultConfig()

	if c.WriteQueue.Capacity > 0 {
		cfg.QueueCapacity = c.WriteQueue.Capacity
	}
	if c.WriteQueue.Timeout != "" {
		if timeout, err := util.ParseDuration(c.WriteQueue.Timeout); err == nil {
			cfg.WriteTimeout = timeout
		}
	}
	if c.WriteQueue.IdleTime != "" {
		if idleTime, err := util.ParseDuration(c.WriteQueue.IdleTime); err == nil {
			cfg.IdleTimeout = idleTime
		}
	}

	return cfg
}

// GetRepositoryConfig 获取仓储选择配置
func (c *AppConfig) GetRepositoryConfig() repository.Config {
	wq := c.GetWriteQueueConfig()
	return repository.Config{
		Driver:      c.Repository.Driver,
		FilePath:    c.Repository.FilePath,
		DatabaseURL: c.Repository.DatabaseURL,
		Database:    c.GetDatabaseConfig(),
		WriteQueue:  &wq,
	}
}
