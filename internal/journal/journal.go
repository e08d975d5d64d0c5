package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/lookahead/internal/database"
	"github.com/BaSui01/lookahead/precache"
)

// ErrClosed 日志已关闭
var ErrClosed = errors.New("journal is closed")

// Options 日志写入参数
type Options struct {
	EngineID      string
	Buffer        int           // 事件缓冲容量
	BatchSize     int           // 单次事务最多写入的记录数
	FlushInterval time.Duration // 未攒满批次时的最长等待
}

func (o *Options) applyDefaults() {
	if o.Buffer <= 0 {
		o.Buffer = 256
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 64
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = time.Second
	}
}

// Journal 异步生成日志
type Journal struct {
	pool   *database.PoolManager
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex // 保护 closed 与 events 的关闭
	closed   bool
	events   chan any
	flushReq chan chan error
	done     chan struct{}

	written atomic.Int64
	dropped atomic.Int64
}

var _ precache.Recorder = (*Journal)(nil)

// New 迁移表结构并启动后台写入
func New(ctx context.Context, pool *database.PoolManager, opts Options, logger *zap.Logger) (*Journal, error) {
	if pool == nil {
		return nil, fmt.Errorf("journal: pool cannot be nil")
	}
	opts.applyDefaults()

	if err := pool.DB().WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}

	j := &Journal{
		pool:     pool,
		opts:     opts,
		logger:   logger.With(zap.String("component", "journal")),
		now:      time.Now,
		events:   make(chan any, opts.Buffer),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
	}
	go j.run()

	j.logger.Info("journal started",
		zap.String("engine_id", opts.EngineID),
		zap.Int("buffer", opts.Buffer),
		zap.Int("batch_size", opts.BatchSize),
	)
	return j, nil
}

// =============================================================================
// 📥 事件接收（precache.Recorder）
// =============================================================================

func (j *Journal) RecordLookup(bool) {}
func (j *Journal) RecordEnqueue(precache.Priority, bool) {}
func (j *Journal) RecordEviction(int) {}
func (j *Journal) RecordQueueState(int, int) {}

// RecordGeneration 记录一次生成器调用
func (j *Journal) RecordGeneration(ev precache.GenerationEvent) {
	rec := &GenerationRecord{
		EngineID:   j.opts.EngineID,
		TargetID:   ev.Key.TargetID,
		ActionID:   ev.Key.ActionID,
		InputHash:  ev.Key.InputHash,
		Source:     string(ev.Source),
		Success:    ev.Err == nil,
		Discarded:  ev.Discarded,
		DurationMS: ev.Duration.Milliseconds(),
		CreatedAt:  j.stamp(ev.At),
	}
	if ev.Priority.Valid() {
		rec.Priority = ev.Priority.String()
	}
	if ev.Err != nil {
		rec.Error = truncate(ev.Err.Error(), 512)
	}
	j.offer(rec)
}

// RecordInvalidation 记录一次轨迹失效
func (j *Journal) RecordInvalidation(cleared int) {
	j.offer(&InvalidationRecord{
		EngineID:  j.opts.EngineID,
		Cleared:   cleared,
		CreatedAt: j.now(),
	})
}

func (j *Journal) offer(rec any) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		j.dropped.Add(1)
		return
	}
	select {
	case j.events <- rec:
	default:
		// 缓冲已满，丢弃以免阻塞引擎
		j.dropped.Add(1)
	}
}

func (j *Journal) stamp(at time.Time) time.Time {
	if at.IsZero() {
		return j.now()
	}
	return at
}

// =============================================================================
// 💾 后台写入
// =============================================================================

func (j *Journal) run() {
	defer close(j.done)

	ticker := time.NewTicker(j.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]any, 0, j.opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := j.write(batch)
		batch = batch[:0]
		return err
	}

	for {
		select {
		case rec, ok := <-j.events:
			if !ok {
				if err := flush(); err != nil {
					j.logger.Error("final journal flush failed", zap.Error(err))
				}
				return
			}
			batch = append(batch, rec)
			if len(batch) >= j.opts.BatchSize {
				if err := flush(); err != nil {
					j.logger.Warn("journal write failed", zap.Error(err))
				}
			}
		case reply := <-j.flushReq:
			// 先把缓冲中已有的事件并入批次
			for drained := false; !drained; {
				select {
				case rec, ok := <-j.events:
					if !ok {
						drained = true
						break
					}
					batch = append(batch, rec)
				default:
					drained = true
				}
			}
			reply <- flush()
		case <-ticker.C:
			if err := flush(); err != nil {
				j.logger.Warn("journal write failed", zap.Error(err))
			}
		}
	}
}

func (j *Journal) write(batch []any) error {
	var gens []*GenerationRecord
	var invs []*InvalidationRecord
	for _, rec := range batch {
		switch r := rec.(type) {
		case *GenerationRecord:
			gens = append(gens, r)
		case *InvalidationRecord:
			invs = append(invs, r)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := j.pool.Transact(ctx, 3, func(tx *gorm.DB) error {
		if len(gens) > 0 {
			if err := tx.CreateInBatches(gens, j.opts.BatchSize).Error; err != nil {
				return err
			}
		}
		if len(invs) > 0 {
			if err := tx.CreateInBatches(invs, j.opts.BatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		j.dropped.Add(int64(len(batch)))
		return err
	}
	j.written.Add(int64(len(batch)))
	return nil
}

// Flush 等待当前缓冲中的事件全部落库
func (j *Journal) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case j.flushReq <- reply:
	case <-j.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 停止接收事件，写完剩余记录后返回
func (j *Journal) Close(ctx context.Context) error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.events)
	}
	j.mu.Unlock()

	select {
	case <-j.done:
		j.logger.Info("journal closed",
			zap.Int64("written", j.written.Load()),
			zap.Int64("dropped", j.dropped.Load()),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Written 已落库的记录数
func (j *Journal) Written() int64 { return j.written.Load() }

// Dropped 因缓冲满、已关闭或写入失败而丢弃的记录数
func (j *Journal) Dropped() int64 { return j.dropped.Load() }

// Ping 检查数据库连接
func (j *Journal) Ping(ctx context.Context) error { return j.pool.Ping(ctx) }

// =============================================================================
// 🔍 查询
// =============================================================================

// Recent 按时间倒序返回最近的生成记录
func (j *Journal) Recent(ctx context.Context, limit int) ([]GenerationRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []GenerationRecord
	err := j.pool.DB().WithContext(ctx).
		Where("engine_id = ?", j.opts.EngineID).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// RecentInvalidations 按时间倒序返回最近的失效记录
func (j *Journal) RecentInvalidations(ctx context.Context, limit int) ([]InvalidationRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []InvalidationRecord
	err := j.pool.DB().WithContext(ctx).
		Where("engine_id = ?", j.opts.EngineID).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SourceSummary 单一来源的生成统计
type SourceSummary struct {
	Source        string  `gorm:"column:source" json:"source"`
	Total         int64   `gorm:"column:total" json:"total"`
	Failed        int64   `gorm:"column:failed" json:"failed"`
	Discarded     int64   `gorm:"column:discarded" json:"discarded"`
	AvgDurationMS float64 `gorm:"column:avg_duration_ms" json:"avg_duration_ms"`
}

// Summary 按来源汇总当前引擎的生成记录
func (j *Journal) Summary(ctx context.Context) ([]SourceSummary, error) {
	var out []SourceSummary
	err := j.pool.DB().WithContext(ctx).
		Model(&GenerationRecord{}).
		Select(`source,
			COUNT(*) AS total,
			SUM(CASE WHEN success THEN 0 ELSE 1 END) AS failed,
			SUM(CASE WHEN discarded THEN 1 ELSE 0 END) AS discarded,
			AVG(duration_ms) AS avg_duration_ms`).
		Where("engine_id = ?", j.opts.EngineID).
		Group("source").
		Order("source").
		Scan(&out).Error
	return out, err
}

// truncate 截断到至多 n 字节，且不切断多字节字符
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
