package precache

import "time"

// CachedResult 缓存条目
type CachedResult struct {
	Key            RequestKey `json:"key"`
	Value          *Outcome   `json:"value"`
	Priority       Priority   `json:"priority"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
	AccessCount    int        `json:"access_count"`

	// 插入序号，createdAt 相同时用于区分新旧
	seq uint64
}

// IsExpired 自创建起超过 maxAge
func (c *CachedResult) IsExpired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(c.CreatedAt) > maxAge
}

// IsStale 自最近一次访问起超过 maxIdle
func (c *CachedResult) IsStale(now time.Time, maxIdle time.Duration) bool {
	return now.Sub(c.LastAccessedAt) > maxIdle
}
