package precache

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CacheConfig 结果缓存配置
type CacheConfig struct {
	Capacity      int           `json:"capacity"`       // 最大条目数
	MaxAge        time.Duration `json:"max_age"`        // 自创建起的最长存活时间
	MaxIdle       time.Duration `json:"max_idle"`       // 自最近访问起的最长空闲时间
	EvictionSlack int           `json:"eviction_slack"` // 淘汰时额外腾出的余量
}

// DefaultCacheConfig 默认配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Capacity:      50,
		MaxAge:        300 * time.Second,
		MaxIdle:       60 * time.Second,
		EvictionSlack: 5,
	}
}

// CacheStats 缓存统计
type CacheStats struct {
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// ResultCache 有界结果缓存，支持双重过期（存活时间 + 空闲时间）与按优先级淘汰
type ResultCache struct {
	mu      sync.Mutex
	entries map[RequestKey]*CachedResult
	config  CacheConfig
	now     func() time.Time
	seq     uint64
	logger  *zap.Logger

	hits      int64
	misses    int64
	evictions int64
}

// NewResultCache 创建结果缓存
func NewResultCache(config CacheConfig, logger *zap.Logger) *ResultCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultCache{
		entries: make(map[RequestKey]*CachedResult),
		config:  config,
		now:     time.Now,
		logger:  logger,
	}
}

// Get 获取未过期、未闲置的结果；命中会刷新访问时间。
// 过期或闲置的条目会被立即删除并计为未命中。
func (c *ResultCache) Get(key RequestKey) (*Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.entries[key]
	if ok && c.isDead(entry, now) {
		delete(c.entries, key)
		c.logger.Debug("cache entry expired", zap.Stringer("key", key))
		ok = false
	}
	if !ok {
		c.misses++
		return nil, false
	}

	entry.AccessCount++
	entry.LastAccessedAt = now
	c.hits++
	c.logger.Debug("cache hit",
		zap.Stringer("key", key),
		zap.Int("access_count", entry.AccessCount))
	return entry.Value, true
}

// Contains 判断键是否存在且仍然有效，不影响命中统计
func (c *ResultCache) Contains(key RequestKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.isDead(entry, c.now()) {
		delete(c.entries, key)
		return false
	}
	return true
}

// Put 写入或覆盖结果，返回本次触发淘汰的条目数
func (c *ResultCache) Put(key RequestKey, value *Outcome, priority Priority) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.seq++
	c.entries[key] = &CachedResult{
		Key:            key,
		Value:          value,
		Priority:       priority,
		CreatedAt:      now,
		LastAccessedAt: now,
		seq:            c.seq,
	}
	c.logger.Debug("cached result",
		zap.Stringer("key", key),
		zap.Stringer("priority", priority))

	return c.evictLocked(now)
}

// EvictIfNeeded 超出容量时淘汰最差的条目
func (c *ResultCache) EvictIfNeeded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked(c.now())
}

// evictLocked 按 (已过期, 已闲置, 低优先级, 更早创建) 排序，最差的在前，
// 依次删除直到 size <= capacity - slack
func (c *ResultCache) evictLocked(now time.Time) int {
	if len(c.entries) <= c.config.Capacity {
		return 0
	}

	target := c.config.Capacity - c.slack()
	if target < 0 {
		target = 0
	}

	ranked := make([]*CachedResult, 0, len(c.entries))
	for _, e := range c.entries {
		ranked = append(ranked, e)
	}
	slices.SortFunc(ranked, func(a, b *CachedResult) int {
		if ea, eb := a.IsExpired(now, c.config.MaxAge), b.IsExpired(now, c.config.MaxAge); ea != eb {
			if ea {
				return -1
			}
			return 1
		}
		if sa, sb := a.IsStale(now, c.config.MaxIdle), b.IsStale(now, c.config.MaxIdle); sa != sb {
			if sa {
				return -1
			}
			return 1
		}
		if a.Priority != b.Priority {
			return cmp.Compare(b.Priority, a.Priority)
		}
		if r := a.CreatedAt.Compare(b.CreatedAt); r != 0 {
			return r
		}
		return cmp.Compare(a.seq, b.seq)
	})

	removed := 0
	for _, e := range ranked {
		if len(c.entries) <= target {
			break
		}
		delete(c.entries, e.Key)
		removed++
		c.logger.Debug("evicted cache entry",
			zap.Stringer("key", e.Key),
			zap.Stringer("priority", e.Priority))
	}
	c.evictions += int64(removed)
	return removed
}

// slack 小容量缓存按 capacity/10 收缩余量，避免一次清空过多
func (c *ResultCache) slack() int {
	s := min(c.config.EvictionSlack, c.config.Capacity/10)
	if s < 0 {
		return 0
	}
	return s
}

func (c *ResultCache) isDead(e *CachedResult, now time.Time) bool {
	return e.IsExpired(now, c.config.MaxAge) || e.IsStale(now, c.config.MaxIdle)
}

// Clear 清空全部条目，返回清除数量
func (c *ResultCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[RequestKey]*CachedResult)
	return n
}

// Len 当前条目数（含尚未被清理的过期条目）
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entry 返回条目副本，主要用于诊断与测试
func (c *ResultCache) Entry(key RequestKey) (CachedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return CachedResult{}, false
	}
	return *e, true
}

// Stats 返回缓存统计
func (c *ResultCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hitRate float64
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Size:      len(c.entries),
		Capacity:  c.config.Capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HitRate:   hitRate,
	}
}
