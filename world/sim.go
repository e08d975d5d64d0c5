package world

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/BaSui01/lookahead/precache"
	"github.com/BaSui01/lookahead/trajectory"
)

// Sim 二维世界模拟
type Sim struct {
	mu      sync.RWMutex
	x, y    float64
	heading float64
	radius  float64
	targets []precache.Target
}

// SimOption Sim 可选项
type SimOption func(*Sim)

// WithPosition 设置初始位置与朝向
func WithPosition(x, y, heading float64) SimOption {
	return func(s *Sim) {
		s.x, s.y = x, y
		s.heading = trajectory.NormalizeHeading(heading)
	}
}

// WithRadius 设置"附近"的曼哈顿半径，0 表示不过滤
func WithRadius(radius float64) SimOption {
	return func(s *Sim) {
		if radius > 0 {
			s.radius = radius
		}
	}
}

// WithTargets 设置初始目标
func WithTargets(targets ...precache.Target) SimOption {
	return func(s *Sim) {
		for _, t := range targets {
			s.upsertLocked(t)
		}
	}
}

// NewSim 创建世界模拟
func NewSim(opts ...SimOption) *Sim {
	s := &Sim{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTarget 添加或更新目标
func (s *Sim) AddTarget(t precache.Target) error {
	if t.ID == "" {
		return fmt.Errorf("target id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(t)
	return nil
}

// RemoveTarget 移除目标，返回是否存在
func (s *Sim) RemoveTarget(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.targets, func(t precache.Target) bool { return t.ID == id })
	if idx < 0 {
		return false
	}
	s.targets = slices.Delete(s.targets, idx, idx+1)
	return true
}

func (s *Sim) upsertLocked(t precache.Target) {
	for i := range s.targets {
		if s.targets[i].ID == t.ID {
			s.targets[i] = t
			return
		}
	}
	s.targets = append(s.targets, t)
}

// MoveTo 传送到 (x, y)，朝向不变
func (s *Sim) MoveTo(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.x, s.y = x, y
}

// Face 设置绝对朝向（度）
func (s *Sim) Face(heading float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heading = trajectory.NormalizeHeading(heading)
}

// Turn 相对转向（度），正值逆时针
func (s *Sim) Turn(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heading = trajectory.NormalizeHeading(s.heading + delta)
}

// Step 沿当前朝向前进 distance（负值后退）
func (s *Sim) Step(distance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rad := s.heading * math.Pi / 180
	s.x += round(distance * math.Cos(rad))
	s.y += round(distance * math.Sin(rad))
}

// round 抹掉浮点误差，使沿坐标轴移动得到整数坐标
func round(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

// Position 返回当前轨迹快照
func (s *Sim) Position() (x, y, heading float64) {
	return s.CurrentTrajectory()
}

// CurrentTrajectory 实现 precache.WorldModel
func (s *Sim) CurrentTrajectory() (float64, float64, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.x, s.y, s.heading
}

// NearbyTargets 实现 precache.WorldModel，按添加顺序返回半径内的目标
func (s *Sim) NearbyTargets() []precache.Target {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]precache.Target, 0, len(s.targets))
	for _, t := range s.targets {
		if s.radius > 0 && math.Abs(t.X-s.x)+math.Abs(t.Y-s.y) > s.radius {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Targets 返回全部目标
func (s *Sim) Targets() []precache.Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.targets)
}

var _ precache.WorldModel = (*Sim)(nil)
