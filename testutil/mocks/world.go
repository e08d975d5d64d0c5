package mocks

import (
	"sync"

	"github.com/BaSui01/lookahead/precache"
)

// MockWorld 是 precache.WorldModel 的可变模拟实现
type MockWorld struct {
	mu      sync.RWMutex
	x, y    float64
	heading float64
	targets []precache.Target
}

// NewMockWorld 创建位于 (x, y)、朝向 heading 的世界
func NewMockWorld(x, y, heading float64) *MockWorld {
	return &MockWorld{x: x, y: y, heading: heading}
}

// WithTargets 设置附近目标
func (w *MockWorld) WithTargets(targets ...precache.Target) *MockWorld {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.targets = append([]precache.Target(nil), targets...)
	return w
}

// SetTrajectory 移动智能体
func (w *MockWorld) SetTrajectory(x, y, heading float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.x, w.y, w.heading = x, y, heading
}

// CurrentTrajectory 实现 precache.WorldModel
func (w *MockWorld) CurrentTrajectory() (float64, float64, float64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.x, w.y, w.heading
}

// NearbyTargets 实现 precache.WorldModel
func (w *MockWorld) NearbyTargets() []precache.Target {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]precache.Target(nil), w.targets...)
}
