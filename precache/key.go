package precache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// RequestKey 缓存与队列共用的键：(目标, 动作, 输入哈希)
type RequestKey struct {
	TargetID  string `json:"target_id"`
	ActionID  string `json:"action_id"`
	InputHash string `json:"input_hash"`
}

// KeyOf 根据目标、动作与原始输入生成键
func KeyOf(targetID, actionID, inputText string) RequestKey {
	return RequestKey{
		TargetID:  targetID,
		ActionID:  actionID,
		InputHash: HashInput(inputText),
	}
}

// String 返回可读的键表示，用于日志与 singleflight 分组
func (k RequestKey) String() string {
	return k.TargetID + ":" + k.ActionID + ":" + k.InputHash
}

// NormalizeInput 规范化输入：去首尾空白、合并连续空白、转小写
func NormalizeInput(inputText string) string {
	return strings.ToLower(strings.Join(strings.Fields(inputText), " "))
}

// HashInput 对规范化后的输入做 SHA-256，取前 8 字节
func HashInput(inputText string) string {
	sum := sha256.Sum256([]byte(NormalizeInput(inputText)))
	return hex.EncodeToString(sum[:8])
}
