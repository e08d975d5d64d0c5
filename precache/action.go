package precache

import (
	"fmt"
	"strings"
)

// ActionKind 预缓存覆盖的常见动作（封闭枚举）
type ActionKind int

const (
	ActionTalk ActionKind = iota
	ActionAttack
	ActionDistract
	ActionExamine
	ActionTrade
)

// AllActions 返回全部动作，顺序即预缓存入队顺序
func AllActions() []ActionKind {
	return []ActionKind{ActionTalk, ActionAttack, ActionDistract, ActionExamine, ActionTrade}
}

// String 返回动作 ID
func (a ActionKind) String() string {
	switch a {
	case ActionTalk:
		return "talk"
	case ActionAttack:
		return "attack"
	case ActionDistract:
		return "distract"
	case ActionExamine:
		return "examine"
	case ActionTrade:
		return "trade"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseActionKind 解析动作 ID
func ParseActionKind(s string) (ActionKind, error) {
	for _, a := range AllActions() {
		if strings.EqualFold(strings.TrimSpace(s), a.String()) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// SampleInputs 为目标生成该动作下有代表性的输入文本
func (a ActionKind) SampleInputs(targetName string) []string {
	if targetName == "" {
		targetName = "someone"
	}
	switch a {
	case ActionTalk:
		return []string{
			"I talk to " + targetName,
			"Hello " + targetName,
			"I greet " + targetName,
		}
	case ActionAttack:
		return []string{
			"I attack " + targetName,
			"I hit " + targetName,
			"I fight " + targetName,
		}
	case ActionDistract:
		return []string{
			"I distract " + targetName,
			"I throw something at " + targetName,
		}
	case ActionExamine:
		return []string{
			"I examine " + targetName,
			"I look at " + targetName,
			"I study " + targetName,
		}
	case ActionTrade:
		return []string{
			"I trade with " + targetName,
			"I want to buy something",
			"Show me your wares",
		}
	default:
		return []string{"I " + a.String() + " " + targetName}
	}
}

// parseActions 将配置中的动作 ID 列表解析为枚举；为空时使用全部动作
func parseActions(ids []string) ([]ActionKind, error) {
	if len(ids) == 0 {
		return AllActions(), nil
	}
	out := make([]ActionKind, 0, len(ids))
	seen := make(map[ActionKind]bool, len(ids))
	for _, id := range ids {
		a, err := ParseActionKind(id)
		if err != nil {
			return nil, err
		}
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out, nil
}
