package journal

import "time"

// GenerationRecord 一次生成器调用
type GenerationRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EngineID   string    `gorm:"size:64;index" json:"engine_id"`
	TargetID   string    `gorm:"size:128;index" json:"target_id"`
	ActionID   string    `gorm:"size:64" json:"action_id"`
	InputHash  string    `gorm:"size:32" json:"input_hash"`
	Source     string    `gorm:"size:16;index" json:"source"`
	Priority   string    `gorm:"size:16" json:"priority,omitempty"`
	Success    bool      `json:"success"`
	Discarded  bool      `json:"discarded"`
	Error      string    `gorm:"size:512" json:"error,omitempty"`
	DurationMS int64     `gorm:"column:duration_ms" json:"duration_ms"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName 表名
func (GenerationRecord) TableName() string { return "precache_generations" }

// InvalidationRecord 一次轨迹失效
type InvalidationRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EngineID  string    `gorm:"size:64;index" json:"engine_id"`
	Cleared   int       `json:"cleared"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName 表名
func (InvalidationRecord) TableName() string { return "precache_invalidations" }

// Models 需要迁移的全部模型
func Models() []any {
	return []any{&GenerationRecord{}, &InvalidationRecord{}}
}
