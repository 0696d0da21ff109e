// Package dao 实现数据访问层
package dao

import (
	"context"
	"sync"

	"github.com/dosacha/simvex-api/internal/model"
	"github.com/dosacha/simvex-api/pkg/logger"
	"github.com/dosacha/simvex-api/pkg/writequeue"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dao shares one connection pool between all relational repositories
type Dao struct {
	db         *gorm.DB
	logger     *zap.Logger
	writeQueue *writequeue.Manager

	schemaMu    sync.Mutex
	schemaReady bool
}

// Option 配置 Dao
type Option func(*Dao)

// WithLogger 设置日志器
func WithLogger(lg *zap.Logger) Option {
	return func(d *Dao) {
		if lg != nil {
			d.logger = lg
		}
	}
}

// WithWriteQueueManager routes writes through per-tenant queues
// WithWriteQueueManager 写操作通过租户写队列串行执行
func WithWriteQueueManager(wq *writequeue.Manager) Option {
	return func(d *Dao) {
		d.writeQueue = wq
	}
}

// New 创建 Dao 实例
func New(db *gorm.DB, opts ...Option) *Dao {
	d := &Dao{
		db:     db,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DB 返回底层 gorm 连接
func (d *Dao) DB() *gorm.DB {
	return d.db
}

// Logger 返回日志器
func (d *Dao) Logger() *zap.Logger {
	return d.logger
}

// EnsureSchema creates the repository tables once.
// A failed attempt is not remembered, the next call tries again.
// EnsureSchema 懒创建仓储表，失败后下次调用会重试
func (d *Dao) EnsureSchema(ctx context.Context) error {
	d.schemaMu.Lock()
	defer d.schemaMu.Unlock()
	if d.schemaReady {
		return nil
	}
	if err := model.AutoMigrateAll(d.db.WithContext(ctx)); err != nil {
		d.logger.Error("ensure schema failed",
			zap.String(logger.FieldMethod, "Dao.EnsureSchema"),
			zap.Error(err))
		return err
	}
	d.schemaReady = true
	d.logger.Debug("repository schema ready")
	return nil
}

// conn returns a context-bound session after making sure the schema exists
func (d *Dao) conn(ctx context.Context) (*gorm.DB, error) {
	if err := d.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return d.db.WithContext(ctx), nil
}

// ExecuteWrite runs fn in one transaction, serialized per tenant when a write queue is configured
// ExecuteWrite 在单个事务中执行写操作，配置写队列时按租户串行
func (d *Dao) ExecuteWrite(ctx context.Context, tenantID string, fn func(tx *gorm.DB) error) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	if d.writeQueue == nil {
		return db.Transaction(fn)
	}
	// 事务绑定队列给出的超时 ctx
	return d.writeQueue.Execute(ctx, tenantID, func(opCtx context.Context) error {
		return db.WithContext(opCtx).Transaction(fn)
	})
}

// Close 关闭数据库连接池
func (d *Dao) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 检查数据库连通性
func (d *Dao) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
