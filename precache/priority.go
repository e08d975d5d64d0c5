package precache

import (
	"fmt"
	"strings"
)

// Priority 预缓存优先级，数值越小越紧急
type Priority int

const (
	PriorityCritical Priority = iota + 1 // 目标近在咫尺，交互即将发生
	PriorityHigh                         // 很可能交互
	PriorityMedium                       // 可能交互
	PriorityLow                          // 背景准备
)

// String 返回优先级名称
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid 判断是否为已定义的优先级
func (p Priority) Valid() bool {
	return p >= PriorityCritical && p <= PriorityLow
}

// ParsePriority 解析优先级名称（不区分大小写）
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return PriorityCritical, nil
	case "high":
		return PriorityHigh, nil
	case "medium":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

// PriorityBands 距离分档（上限，含边界）
type PriorityBands struct {
	Critical float64 `yaml:"critical" json:"critical" env:"CRITICAL"`
	High     float64 `yaml:"high" json:"high" env:"HIGH"`
	Medium   float64 `yaml:"medium" json:"medium" env:"MEDIUM"`
}

// DefaultPriorityBands 返回默认分档 {3, 5, 8}
func DefaultPriorityBands() PriorityBands {
	return PriorityBands{
		Critical: 3.0,
		High:     5.0,
		Medium:   8.0,
	}
}

// Classify 将距离映射为优先级
func (b PriorityBands) Classify(distance float64) Priority {
	switch {
	case distance <= b.Critical:
		return PriorityCritical
	case distance <= b.High:
		return PriorityHigh
	case distance <= b.Medium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Validate 校验分档单调递增
func (b PriorityBands) Validate() error {
	if b.Critical < 0 {
		return fmt.Errorf("critical band must be non-negative, got %v", b.Critical)
	}
	if b.High < b.Critical || b.Medium < b.High {
		return fmt.Errorf("priority bands must be ascending: critical=%v high=%v medium=%v",
			b.Critical, b.High, b.Medium)
	}
	return nil
}
