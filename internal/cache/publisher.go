package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/lookahead/precache"
)

// StatsSource 提供引擎统计快照
type StatsSource interface {
	Stats() precache.Stats
}

// Snapshot 写入 Redis 的统计快照
type Snapshot struct {
	precache.Stats
	PublishedAt time.Time `json:"published_at"`
}

// PublisherConfig 快照发布配置
type PublisherConfig struct {
	Key      string        // 快照键名，更新通知发往 Key + ":updates"
	TTL      time.Duration // 快照过期时间，进程退出后自然消失
	Interval time.Duration // 发布间隔
}

// Publisher 周期性地把引擎统计写入 Redis
type Publisher struct {
	manager *Manager
	source  StatsSource
	config  PublisherConfig
	logger  *zap.Logger
	now     func() time.Time

	published atomic.Int64
	failures  atomic.Int64
}

// NewPublisher 创建快照发布器
func NewPublisher(manager *Manager, source StatsSource, config PublisherConfig, logger *zap.Logger) *Publisher {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Second
	}
	return &Publisher{
		manager: manager,
		source:  source,
		config:  config,
		logger:  logger.With(zap.String("component", "stats_publisher")),
		now:     time.Now,
	}
}

// Channel 返回更新通知频道
func (p *Publisher) Channel() string {
	return p.config.Key + ":updates"
}

// PublishOnce 写入一次快照并广播通知
func (p *Publisher) PublishOnce(ctx context.Context) error {
	snap := Snapshot{Stats: p.source.Stats(), PublishedAt: p.now().UTC()}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := p.manager.Set(ctx, p.config.Key, string(data), p.config.TTL); err != nil {
		p.failures.Add(1)
		return err
	}
	if _, err := p.manager.Publish(ctx, p.Channel(), data); err != nil {
		p.failures.Add(1)
		return err
	}

	p.published.Add(1)
	return nil
}

// Run 按间隔发布，直到 ctx 取消；退出前再发布一次最终快照
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.logger.Info("stats publisher started",
		zap.String("key", p.config.Key),
		zap.Duration("interval", p.config.Interval),
	)

	for {
		if err := p.PublishOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("publish stats failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			if err := p.PublishOnce(flushCtx); err != nil {
				p.logger.Debug("final stats publish failed", zap.Error(err))
			}
			cancel()
			p.logger.Info("stats publisher stopped", zap.Int64("published", p.published.Load()))
			return
		case <-ticker.C:
		}
	}
}

// Published 返回成功发布次数
func (p *Publisher) Published() int64 { return p.published.Load() }

// Failures 返回失败次数
func (p *Publisher) Failures() int64 { return p.failures.Load() }

// LoadSnapshot 读取最近一次发布的快照
func LoadSnapshot(ctx context.Context, manager *Manager, key string) (*Snapshot, error) {
	var snap Snapshot
	if err := manager.GetJSON(ctx, key, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
