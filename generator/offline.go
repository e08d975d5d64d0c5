package generator

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/lookahead/precache"
)

// OfflineConfig 离线生成器配置
type OfflineConfig struct {
	// Latency 模拟的生成耗时
	Latency time.Duration `yaml:"latency" json:"latency"`

	// Tone 叙事语气，出现在结果文本前缀中
	Tone string `yaml:"tone" json:"tone"`
}

// Offline 确定性离线叙事生成器：相同输入总是得到相同结果
type Offline struct {
	config OfflineConfig
	logger *zap.Logger
}

// NewOffline 创建离线生成器
func NewOffline(config OfflineConfig, logger *zap.Logger) *Offline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Offline{
		config: config,
		logger: logger.With(zap.String("component", "offline_generator")),
	}
}

// Generate 实现 precache.Generator。模拟延迟期间响应 ctx 取消。
func (g *Offline) Generate(ctx context.Context, actionID, inputText, genContext string) (*precache.Outcome, error) {
	if g.config.Latency > 0 {
		timer := time.NewTimer(g.config.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	seed := fingerprint(actionID, inputText)
	out := &precache.Outcome{Success: true, Metadata: map[string]string{"generator": "offline"}}

	action, err := precache.ParseActionKind(actionID)
	if err != nil {
		out.Text = fmt.Sprintf("You try to %s, but nothing much happens.", strings.ToLower(actionID))
		out.Success = false
	} else {
		out.Text, out.Success, out.HPDelta, out.GoldDelta = narrate(action, inputText, seed)
	}

	if g.config.Tone != "" {
		out.Text = "[" + g.config.Tone + "] " + out.Text
	}
	if genContext != "" {
		out.Metadata["context"] = genContext
	}

	g.logger.Debug("generated offline outcome",
		zap.String("action", actionID),
		zap.Bool("success", out.Success))
	return out, nil
}

func narrate(action precache.ActionKind, input string, seed uint32) (text string, success bool, hp, gold int) {
	subject := strings.TrimSpace(input)
	switch action {
	case precache.ActionTalk:
		replies := []string{
			"They nod slowly and lean in to listen.",
			"They eye you warily before answering.",
			"They smile and share a rumor from the road.",
		}
		return fmt.Sprintf("%q. %s", subject, replies[seed%uint32(len(replies))]), true, 0, 0
	case precache.ActionAttack:
		if seed%3 == 0 {
			return "Your strike glances off their guard. They counter.", false, -int(seed%5) - 1, 0
		}
		return "Your blow lands cleanly and they stagger back.", true, 0, 0
	case precache.ActionDistract:
		if seed%2 == 0 {
			return "They turn toward the noise, leaving an opening.", true, 0, 0
		}
		return "They glance at you, unimpressed.", false, 0, 0
	case precache.ActionExamine:
		return "You notice worn boots, a nervous hand, and a pouch heavier than it should be.", true, 0, 0
	case precache.ActionTrade:
		return "They lay out their wares and name a fair price.", true, 0, -int(seed%10) - 1
	default:
		return "Nothing happens.", false, 0, 0
	}
}

func fingerprint(actionID, inputText string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(actionID))
	h.Write([]byte{0})
	h.Write([]byte(precache.NormalizeInput(inputText)))
	return h.Sum32()
}

var _ precache.Generator = (*Offline)(nil)
