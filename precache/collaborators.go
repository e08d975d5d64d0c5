package precache

import "context"

// Outcome 生成结果
type Outcome struct {
	Text      string            `json:"text"`
	Success   bool              `json:"success"`
	HPDelta   int               `json:"hp_delta,omitempty"`
	GoldDelta int               `json:"gold_delta,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Generator 外部内容生成器。
//
// 实现可以很慢、结果不确定，但必须允许以相同参数重复调用。
type Generator interface {
	Generate(ctx context.Context, actionID, inputText, genContext string) (*Outcome, error)
}

// GeneratorFunc 将普通函数适配为 Generator
type GeneratorFunc func(ctx context.Context, actionID, inputText, genContext string) (*Outcome, error)

// Generate 实现 Generator
func (f GeneratorFunc) Generate(ctx context.Context, actionID, inputText, genContext string) (*Outcome, error) {
	return f(ctx, actionID, inputText, genContext)
}

// Target 智能体附近的候选目标
type Target struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// WorldModel 世界模型（只读）
type WorldModel interface {
	// CurrentTrajectory 返回智能体当前位置与朝向（度）
	CurrentTrajectory() (x, y, heading float64)

	// NearbyTargets 返回附近的候选目标
	NearbyTargets() []Target
}
