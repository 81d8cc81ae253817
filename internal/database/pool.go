package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrPoolClosed is returned by every operation after Close.
var ErrPoolClosed = errors.New("database pool is closed")

// =============================================================================
// 🗄️ 数据库连接池
// =============================================================================

// Pool owns the shared *gorm.DB and runs transactional units of work for the
// inventory, chat and auth stores.
type Pool struct {
	db       *gorm.DB
	sqlDB    *sql.DB
	config   PoolConfig
	logger   *zap.Logger
	observer TxObserver

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
	wg     sync.WaitGroup
}

// TxObserver receives the outcome of every transaction attempt.
type TxObserver func(operation string, duration time.Duration, err error)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns        int           `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime     time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`

	// MaxTxRetries bounds WithRetry attempts; zero means 3.
	MaxTxRetries int `yaml:"max_tx_retries" json:"max_tx_retries"`
	// RetryBackoff is the first backoff step, doubled per attempt.
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
}

// DefaultPoolConfig 返回默认连接池配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:        5,
		MaxOpenConns:        25,
		ConnMaxLifetime:     5 * time.Minute,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
		MaxTxRetries:        3,
		RetryBackoff:        50 * time.Millisecond,
	}
}

// Option configures a Pool.
type Option func(*Pool)

// WithObserver installs a transaction observer (metrics).
func WithObserver(obs TxObserver) Option {
	return func(p *Pool) { p.observer = obs }
}

// NewPool 创建连接池
func NewPool(db *gorm.DB, config PoolConfig, logger *zap.Logger, opts ...Option) (*Pool, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}
	if config.MaxTxRetries <= 0 {
		config.MaxTxRetries = 3
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = 50 * time.Millisecond
	}

	p := &Pool{
		db:     db,
		sqlDB:  sqlDB,
		config: config,
		logger: logger.With(zap.String("component", "db_pool")),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	if config.HealthCheckInterval > 0 {
		p.wg.Add(1)
		go p.healthCheckLoop()
	}

	p.logger.Info("database pool initialized",
		zap.Int("max_idle_conns", config.MaxIdleConns),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Duration("conn_max_lifetime", config.ConnMaxLifetime),
	)

	return p, nil
}

// DB 返回 GORM 数据库实例
func (p *Pool) DB() *gorm.DB {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.db
}

// Ping 检查数据库连接
func (p *Pool) Ping(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	return p.sqlDB.PingContext(ctx)
}

// Stats 返回连接池统计信息
func (p *Pool) Stats() sql.DBStats {
	return p.sqlDB.Stats()
}

// Close stops the health loop and closes the underlying connections.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("closing database pool")
	return p.sqlDB.Close()
}

func (p *Pool) healthCheckLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.Ping(ctx); err != nil {
			p.logger.Error("database health check failed", zap.Error(err))
		} else {
			stats := p.Stats()
			p.logger.Debug("database health check passed",
				zap.Int("open_connections", stats.OpenConnections),
				zap.Int("in_use", stats.InUse),
				zap.Int("idle", stats.Idle),
			)
		}
		cancel()
	}
}

// =============================================================================
// 🔄 事务管理
// =============================================================================

// TransactionFunc 事务函数类型
type TransactionFunc func(tx *gorm.DB) error

// WithTransaction runs fn in a single transaction. operation labels the
// observer callback.
func (p *Pool) WithTransaction(ctx context.Context, operation string, fn TransactionFunc) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	db := p.db
	p.mu.RUnlock()

	start := time.Now()
	err := db.WithContext(ctx).Transaction(fn)
	if p.observer != nil {
		p.observer(operation, time.Since(start), err)
	}
	return err
}

// WithRetry runs fn transactionally, retrying deadlocks, serialization
// failures and busy sqlite locks with exponential backoff.
func (p *Pool) WithRetry(ctx context.Context, operation string, fn TransactionFunc) error {
	var lastErr error

	for i := 0; i < p.config.MaxTxRetries; i++ {
		err := p.WithTransaction(ctx, operation, fn)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		p.logger.Warn("transaction failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", i+1),
			zap.Int("max_retries", p.config.MaxTxRetries),
			zap.Error(err),
		)

		backoff := p.config.RetryBackoff * time.Duration(1<<uint(i))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("transaction %s failed after %d attempts: %w", operation, p.config.MaxTxRetries, lastErr)
}

// IsRetryable reports whether a transaction error is transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"deadlock",
		"serialization failure", "40001",
		"lock timeout", "lock wait timeout",
		"database is locked", "sqlite_busy",
		"connection reset", "broken pipe", "bad connection",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
