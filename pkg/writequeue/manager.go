// Package writequeue serializes database writes per tenant
// Package writequeue 按租户串行化数据库写操作
// Writes for one tenant run in FIFO order on a dedicated worker, which keeps
// SQLite from returning "database is locked" and keeps multi-statement
// mutations of the same tenant from interleaving.
// 同一租户的写操作由独立 worker 按 FIFO 顺序执行
package writequeue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dosacha/simvex-api/pkg/logger"

	"go.uber.org/zap"
)

// 错误定义
var (
	// ErrWriteQueueFull tenant queue reached its capacity
	// ErrWriteQueueFull 租户写队列已满
	ErrWriteQueueFull = errors.New("write queue is full")
	// ErrWriteQueueClosed manager has been shut down
	// ErrWriteQueueClosed 写队列管理器已关闭
	ErrWriteQueueClosed = errors.New("write queue is closed")
	// ErrWriteTimeout operation did not finish within WriteTimeout
	// ErrWriteTimeout 写操作超时
	ErrWriteTimeout = errors.New("write operation timeout")
)

// Config write queue configuration
// Config 写队列配置
type Config struct {
	// QueueCapacity 每租户队列容量，默认 100
	QueueCapacity int
	// WriteTimeout 写操作超时时间，默认 30 秒
	WriteTimeout time.Duration
	// IdleTimeout 空闲队列回收时间，默认 10 分钟
	IdleTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		QueueCapacity: 100,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   10 * time.Minute,
	}
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = def.QueueCapacity
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
}

// op states, a pending op is either claimed by the worker or abandoned by its caller
const (
	opPending int32 = iota
	opRunning
	opAbandoned
)

type writeOp struct {
	ctx    context.Context
	fn     func(ctx context.Context) error
	result chan error
	state  atomic.Int32
}

// tenantQueue 单租户写队列
type tenantQueue struct {
	tenant   string
	ch       chan *writeOp
	stopCh   chan struct{}
	stopOnce sync.Once
	lastUsed atomic.Int64
	closed   atomic.Bool
	done     sync.WaitGroup
}

func (q *tenantQueue) touch() {
	q.lastUsed.Store(time.Now().UnixNano())
}

func (q *tenantQueue) stop() {
	q.closed.Store(true)
	q.stopOnce.Do(func() { close(q.stopCh) })
}

// Manager owns one queue per tenant
// Manager 管理所有租户的写队列
type Manager struct {
	config Config
	logger *zap.Logger

	queues sync.Map // map[string]*tenantQueue

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	cleanupWg   sync.WaitGroup
	cleanupDone chan struct{}
}

// New creates a write queue manager, nil cfg uses DefaultConfig and nil logger discards output
// New 创建写队列管理器，cfg 为 nil 时使用默认配置
func New(cfg *Config, lg *zap.Logger) *Manager {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	c.normalize()

	if lg == nil {
		lg = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:      c,
		logger:      lg,
		ctx:         ctx,
		cancel:      cancel,
		cleanupDone: make(chan struct{}),
	}

	m.cleanupWg.Add(1)
	go m.cleanupIdleQueues()

	m.logger.Debug("write queue manager started",
		zap.Int("queueCapacity", c.QueueCapacity),
		zap.Duration("writeTimeout", c.WriteTimeout),
		zap.Duration("idleTimeout", c.IdleTimeout))

	return m
}

// Execute runs fn on the tenant's queue and waits for its result.
// fn receives a context bounded by WriteTimeout; an op still queued when that
// context ends is dropped, one already running is waited for.
// Execute 在租户队列中执行 fn 并等待结果，返回错误时 fn 未执行或已返回该错误
func (m *Manager) Execute(ctx context.Context, tenant string, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, m.config.WriteTimeout)
	defer cancel()
	op := &writeOp{ctx: opCtx, fn: fn, result: make(chan error, 1)}

	if err := m.enqueue(tenant, op); err != nil {
		return err
	}

	select {
	case err := <-op.result:
		return m.resultErr(ctx, opCtx, err)
	case <-opCtx.Done():
	case <-m.ctx.Done():
	}

	cancel()
	if op.state.CompareAndSwap(opPending, opAbandoned) {
		return m.interruptErr(ctx)
	}
	// 已开始执行，以 fn 的结果为准
	return m.resultErr(ctx, opCtx, <-op.result)
}

// resultErr reports a context error raised inside fn as the reason Execute stopped
func (m *Manager) resultErr(ctx, opCtx context.Context, err error) error {
	if opCtx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return m.interruptErr(ctx)
	}
	return err
}

// interruptErr names why Execute stopped waiting
func (m *Manager) interruptErr(ctx context.Context) error {
	switch {
	case m.ctx.Err() != nil:
		return ErrWriteQueueClosed
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return ErrWriteTimeout
	}
}

// enqueue holds m.mu so cleanup cannot retire the queue between lookup and send
// enqueue 持有读锁完成查找与入队，避免与 cleanup 竞争
func (m *Manager) enqueue(tenant string, op *writeOp) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrWriteQueueClosed
	}

	queue := m.queueFor(tenant)
	select {
	case queue.ch <- op:
		return nil
	default:
		return ErrWriteQueueFull
	}
}

// queueFor 获取或懒创建租户队列，调用方须持有 m.mu
func (m *Manager) queueFor(tenant string) *tenantQueue {
	if v, ok := m.queues.Load(tenant); ok {
		q := v.(*tenantQueue)
		if !q.closed.Load() {
			q.touch()
			return q
		}
	}

	q := &tenantQueue{
		tenant: tenant,
		ch:     make(chan *writeOp, m.config.QueueCapacity),
		stopCh: make(chan struct{}),
	}
	q.touch()

	actual, loaded := m.queues.LoadOrStore(tenant, q)
	if loaded {
		existing := actual.(*tenantQueue)
		if !existing.closed.Load() {
			existing.touch()
			return existing
		}
		m.queues.Store(tenant, q)
	}

	q.done.Add(1)
	go m.worker(q)

	m.logger.Debug("created write queue",
		zap.String(logger.FieldTenant, tenant),
		zap.Int("capacity", m.config.QueueCapacity))

	return q
}

func (m *Manager) worker(q *tenantQueue) {
	defer q.done.Done()
	defer q.closed.Store(true)

	for {
		select {
		case <-m.ctx.Done():
			m.drain(q)
			return
		case <-q.stopCh:
			m.drain(q)
			return
		case op := <-q.ch:
			m.run(q, op)
		}
	}
}

func (m *Manager) run(q *tenantQueue, op *writeOp) {
	q.touch()

	if !op.state.CompareAndSwap(opPending, opRunning) {
		m.logger.Debug("skipping abandoned write", zap.String(logger.FieldTenant, q.tenant))
		return
	}
	if err := op.ctx.Err(); err != nil {
		op.result <- err
		return
	}
	op.result <- op.fn(op.ctx)
}

// drain 执行队列中剩余的操作
func (m *Manager) drain(q *tenantQueue) {
	for {
		select {
		case op := <-q.ch:
			m.run(q, op)
		default:
			return
		}
	}
}

func (m *Manager) cleanupIdleQueues() {
	defer m.cleanupWg.Done()

	ticker := time.NewTicker(m.config.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.cleanupDone:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

// cleanup stops queues idle longer than IdleTimeout
// cleanup 回收空闲超时的队列
func (m *Manager) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UnixNano()
	threshold := m.config.IdleTimeout.Nanoseconds()

	m.queues.Range(func(key, value any) bool {
		q := value.(*tenantQueue)
		idle := now - q.lastUsed.Load()
		if idle > threshold && len(q.ch) == 0 && !q.closed.Load() {
			m.logger.Debug("cleaning up idle write queue",
				zap.String(logger.FieldTenant, q.tenant),
				zap.Duration("idleTime", time.Duration(idle)))
			q.stop()
			m.queues.Delete(key)
		}
		return true
	})
}

// Shutdown stops accepting writes, drains queued operations and waits for workers
// Shutdown 关闭管理器，执行完剩余操作后返回，ctx 控制超时
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.cleanupDone)

	done := make(chan struct{})
	go func() {
		m.queues.Range(func(_, value any) bool {
			value.(*tenantQueue).stop()
			return true
		})
		m.queues.Range(func(_, value any) bool {
			value.(*tenantQueue).done.Wait()
			return true
		})
		m.cleanupWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		m.logger.Debug("write queue manager shutdown completed")
		return nil
	case <-ctx.Done():
		m.cancel()
		m.logger.Warn("write queue manager shutdown timeout, forcing cancellation")
		return ctx.Err()
	}
}

// QueueCount 返回当前活跃队列数量
func (m *Manager) QueueCount() int {
	count := 0
	m.queues.Range(func(_, value any) bool {
		if !value.(*tenantQueue).closed.Load() {
			count++
		}
		return true
	})
	return count
}

// QueuedCount 返回指定租户队列中等待的操作数
func (m *Manager) QueuedCount(tenant string) int {
	if v, ok := m.queues.Load(tenant); ok {
		return len(v.(*tenantQueue).ch)
	}
	return 0
}

// IsClosed 返回管理器是否已关闭
func (m *Manager) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
