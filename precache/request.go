package precache

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Request 预缓存请求
type Request struct {
	ID        string    `json:"id"`
	TargetID  string    `json:"target_id"`
	ActionID  string    `json:"action_id"`
	InputText string    `json:"input_text"`
	Priority  Priority  `json:"priority"`
	Distance  float64   `json:"distance"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRequest 创建带唯一 ID 的预缓存请求
func NewRequest(targetID, actionID, inputText string, priority Priority, distance float64, now time.Time) *Request {
	return &Request{
		ID:        uuid.NewString(),
		TargetID:  targetID,
		ActionID:  actionID,
		InputText: inputText,
		Priority:  priority,
		Distance:  distance,
		CreatedAt: now,
	}
}

// Key 返回请求对应的 RequestKey
func (r *Request) Key() RequestKey {
	return KeyOf(r.TargetID, r.ActionID, r.InputText)
}

// GenerationContext 构造传给生成器的上下文描述
func (r *Request) GenerationContext() string {
	return fmt.Sprintf("Agent is near %s (distance: %.1f)", r.TargetID, r.Distance)
}
