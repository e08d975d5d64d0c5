package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =============================================================================
// 🗄️ 生成日志连接池
// =============================================================================

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`

	// 采样间隔：ping 一次并上报连接池快照，0 表示不采样
	SampleInterval time.Duration `yaml:"sample_interval" json:"sample_interval"`
}

// DefaultPoolConfig 返回默认连接池配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:    4,
		MaxOpenConns:    16,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		SampleInterval:  15 * time.Second,
	}
}

// Validate 校验连接池配置
func (c PoolConfig) Validate() error {
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("max_open_conns must be positive")
	}
	if c.MaxIdleConns <= 0 {
		return fmt.Errorf("max_idle_conns must be positive")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max_idle_conns (%d) must not exceed max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	return nil
}

// PoolStats 连接池快照
type PoolStats struct {
	MaxOpen      int           `json:"max_open"`
	Open         int           `json:"open"`
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
	WaitCount    int64         `json:"wait_count"`
	WaitDuration time.Duration `json:"wait_duration"`
}

func snapshot(s sql.DBStats) PoolStats {
	return PoolStats{
		MaxOpen:      s.MaxOpenConnections,
		Open:         s.OpenConnections,
		InUse:        s.InUse,
		Idle:         s.Idle,
		WaitCount:    s.WaitCount,
		WaitDuration: s.WaitDuration,
	}
}

// StatsObserver 接收连接池快照（例如写入 Prometheus gauge）
type StatsObserver func(PoolStats)

// PoolOption 连接池选项
type PoolOption func(*PoolManager)

// WithStatsObserver 注册快照观察者：创建时上报一次，之后每次采样成功后上报
func WithStatsObserver(fn StatsObserver) PoolOption {
	return func(pm *PoolManager) { pm.observe = fn }
}

// PoolManager 包装 gorm 连接，负责连接池参数、周期采样与带重试的事务
type PoolManager struct {
	db      *gorm.DB
	sqlDB   *sql.DB
	config  PoolConfig
	observe StatsObserver
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
}

// NewPoolManager 应用连接池参数并启动采样循环
func NewPoolManager(db *gorm.DB, config PoolConfig, logger *zap.Logger, opts ...PoolOption) (*PoolManager, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	pm := &PoolManager{
		db:     db,
		sqlDB:  sqlDB,
		config: config,
		logger: logger.With(zap.String("component", "db_pool")),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(pm)
	}

	if pm.observe != nil {
		pm.observe(pm.Stats())
	}
	if config.SampleInterval > 0 {
		go pm.sampleLoop()
	}

	pm.logger.Info("database pool initialized",
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns),
	)
	return pm, nil
}

// DB 返回 gorm 实例
func (pm *PoolManager) DB() *gorm.DB {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.db
}

// Ping 检查数据库连通性，供 /ready 使用
func (pm *PoolManager) Ping(ctx context.Context) error {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if pm.closed {
		return errPoolClosed
	}
	return pm.sqlDB.PingContext(ctx)
}

// Stats 返回当前连接池快照
func (pm *PoolManager) Stats() PoolStats {
	return snapshot(pm.sqlDB.Stats())
}

// Close 停止采样并关闭连接（幂等）
func (pm *PoolManager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.closed {
		return nil
	}
	pm.closed = true
	close(pm.stop)
	pm.logger.Info("closing database pool")
	return pm.sqlDB.Close()
}

func (pm *PoolManager) sampleLoop() {
	ticker := time.NewTicker(pm.config.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pm.stop:
			return
		case <-ticker.C:
			pm.sample()
		}
	}
}

// sample ping 失败只记日志，不上报快照
func (pm *PoolManager) sample() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pm.Ping(ctx); err != nil {
		pm.logger.Warn("database ping failed", zap.Error(err))
		return
	}
	s := pm.Stats()
	if pm.observe != nil {
		pm.observe(s)
	}
	pm.logger.Debug("database pool sampled",
		zap.Int("open", s.Open),
		zap.Int("in_use", s.InUse),
		zap.Int64("wait_count", s.WaitCount),
	)
}

// =============================================================================
// 🔄 事务
// =============================================================================

var errPoolClosed = fmt.Errorf("pool is closed")

// retryBackoff 第 n 次失败后的等待时间
var retryBackoff = func(attempt int) time.Duration {
	return time.Duration(100<<attempt) * time.Millisecond
}

// Transact 在事务中执行 fn；遇到死锁、序列化冲突、连接中断等瞬时错误时
// 指数退避重试，最多 attempts 次
func (pm *PoolManager) Transact(ctx context.Context, attempts int, fn func(tx *gorm.DB) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = pm.transaction(ctx, fn); err == nil || !isTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		pm.logger.Warn("transient transaction failure, retrying",
			zap.Int("attempt", i+1),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff(i)):
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", attempts, err)
}

func (pm *PoolManager) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	pm.mu.RLock()
	closed, db := pm.closed, pm.db
	pm.mu.RUnlock()
	if closed {
		return errPoolClosed
	}
	return db.WithContext(ctx).Transaction(fn)
}

// transientMarkers 各驱动瞬时错误的特征文本（小写）
var transientMarkers = []string{
	"deadlock",              // mysql / postgres
	"serialization failure", // postgres
	"40001",                 // postgres SQLSTATE
	"database is locked",    // sqlite
	"lock wait timeout",     // mysql
	"lock timeout",
	"connection reset",
	"connection refused",
	"broken pipe",
	"bad connection", // database/sql driver.ErrBadConn
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
