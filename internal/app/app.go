package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dosacha/simvex-api/internal/domain"
	"github.com/dosacha/simvex-api/internal/repository"
	"github.com/dosacha/simvex-api/pkg/logger"

	"go.uber.org/zap"
)

// DefaultShutdownTimeout 默认关闭超时时间
const DefaultShutdownTimeout = 30 * time.Second

// App 应用容器，封装配置、日志与仓储
type App struct {
	config *AppConfig
	logger *zap.Logger

	// Repository 层
	Repos *domain.Repositories

	// 关闭控制
	shutdownCh chan struct{}
}

// NewApp 创建应用容器实例
// cfg: 应用配置（必须）
// logger: zap 日志器（必须）
func NewApp(cfg *AppConfig, lg *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if lg == nil {
		return nil, fmt.Errorf("logger is required")
	}

	repoConfig := cfg.GetRepositoryConfig()
	repos, err := repository.Open(repoConfig, lg)
	if err != nil {
		return nil, err
	}

	lg.Info("app container ready",
		zap.String(logger.FieldDriver, repoConfig.ResolveDriver()))

	return &App{
		config:     cfg,
		logger:     lg,
		Repos:      repos,
		shutdownCh: make(chan struct{}),
	}, nil
}

// Config 获取配置
func (a *App) Config() *AppConfig {
	return a.config
}

// Logger 获取日志器
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Shutdown drains pending writes and releases the repository backend.
// A second call is a no-op. A nil ctx uses DefaultShutdownTimeout.
// Shutdown 优雅关闭应用容器
func (a *App) Shutdown(ctx context.Context) error {
	select {
	case <-a.shutdownCh:
		return nil
	default:
		close(a.shutdownCh)
	}

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
	}

	a.logger.Info("App container shutting down...")

	done := make(chan error, 1)
	go func() {
		done <- a.Repos.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			a.logger.Warn("App container shutdown completed with errors", zap.Error(err))
			return fmt.Errorf("close repositories: %w", err)
		}
	case <-ctx.Done():
		a.logger.Warn("Shutdown timeout waiting for repositories to close")
		return fmt.Errorf("close repositories: %w", ctx.Err())
	}

	a.logger.Info("App container shutdown completed successfully")
	return nil
}

// IsShuttingDown 检查应用是否正在关闭
func (a *App) IsShuttingDown() bool {
	select {
	case <-a.shutdownCh:
		return true
	default:
		return false
	}
}
