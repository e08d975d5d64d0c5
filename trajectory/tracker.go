package trajectory

import (
	"sync"
	"time"
)

// Thresholds 轨迹失效阈值
type Thresholds struct {
	// 朝向偏差阈值（度）
	Angle float64 `yaml:"angle" json:"angle"`

	// 位置偏差阈值（曼哈顿距离）
	Distance float64 `yaml:"distance" json:"distance"`
}

// DefaultThresholds 返回默认阈值：45° / 3.0
func DefaultThresholds() Thresholds {
	return Thresholds{
		Angle:    45.0,
		Distance: 3.0,
	}
}

// Exceeded 判断两条轨迹之间的偏差是否超过阈值
func (t Thresholds) Exceeded(from, to Vector) bool {
	return from.AngleTo(to) > t.Angle || from.DistanceTo(to) > t.Distance
}

// Tracker 轨迹跟踪器
//
// 基线（baseline）是缓存内容被认为有效时的轨迹；只有当新轨迹相对基线
// 偏离超过阈值时才返回 true，此时基线被重置为新轨迹。
type Tracker struct {
	mu         sync.RWMutex
	thresholds Thresholds
	current    *Vector
	baseline   *Vector
	now        func() time.Time
}

// NewTracker 创建轨迹跟踪器
func NewTracker(thresholds Thresholds) *Tracker {
	return &Tracker{
		thresholds: thresholds,
		now:        time.Now,
	}
}

// WithClock 替换时钟（测试使用）
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	return t
}

// Update 记录新轨迹，返回缓存是否需要整体失效。
//
// 首次调用只建立基线并返回 false。
func (t *Tracker) Update(x, y, heading float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := NewVector(x, y, heading, t.now())

	if t.baseline == nil {
		t.current = &next
		t.baseline = &next
		return false
	}

	t.current = &next
	if t.thresholds.Exceeded(*t.baseline, next) {
		t.baseline = &next
		return true
	}
	return false
}

// Current 返回最近一次记录的轨迹
func (t *Tracker) Current() (Vector, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.current == nil {
		return Vector{}, false
	}
	return *t.current, true
}

// Baseline 返回缓存有效基线
func (t *Tracker) Baseline() (Vector, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.baseline == nil {
		return Vector{}, false
	}
	return *t.baseline, true
}

// HasBaseline 判断是否已经建立缓存有效基线
func (t *Tracker) HasBaseline() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.baseline != nil
}

// Rebase 将基线移动到当前轨迹（手动失效后使用）
func (t *Tracker) Rebase() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		cur := *t.current
		t.baseline = &cur
	}
}

// Reset 清空全部轨迹状态
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
	t.baseline = nil
}

// Thresholds 返回当前阈值配置
func (t *Tracker) Thresholds() Thresholds {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.thresholds
}
