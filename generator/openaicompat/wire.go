package openaicompat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/lookahead/precache"
	"github.com/BaSui01/lookahead/types"
)

const defaultSystemPrompt = `You are the narrator of a role-playing game. ` +
	`Describe the outcome of the player's action in one or two sentences. ` +
	`Reply with a JSON object: {"text": string, "success": bool, "hp_delta": int, "gold_delta": int}.`

// chatMessage 表示 OpenAI 兼容的消息格式
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
	Created int64        `json:"created"`
}

// buildPrompt 组装用户消息
func buildPrompt(actionID, inputText, genContext string) string {
	var b strings.Builder
	if genContext != "" {
		fmt.Fprintf(&b, "Context: %s\n", genContext)
	}
	fmt.Fprintf(&b, "Action: %s\n", actionID)
	fmt.Fprintf(&b, "Player: %s", inputText)
	return b.String()
}

// parseOutcome 解析模型回复；非 JSON 回复整体作为文本
func parseOutcome(content string) *precache.Outcome {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if strings.HasPrefix(trimmed, "{") {
		var raw struct {
			Text      string `json:"text"`
			Success   *bool  `json:"success"`
			HPDelta   int    `json:"hp_delta"`
			GoldDelta int    `json:"gold_delta"`
		}
		if err := json.Unmarshal([]byte(trimmed), &raw); err == nil && raw.Text != "" {
			out := &precache.Outcome{
				Text:      raw.Text,
				Success:   true,
				HPDelta:   raw.HPDelta,
				GoldDelta: raw.GoldDelta,
			}
			if raw.Success != nil {
				out.Success = *raw.Success
			}
			return out
		}
	}
	return &precache.Outcome{Text: strings.TrimSpace(content), Success: true}
}

// mapHTTPError 将上游 HTTP 状态码映射为结构化错误
func mapHTTPError(status int, msg string, generator string) *types.Error {
	var e *types.Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = types.NewError(types.ErrUnauthorized, msg)
	case status == http.StatusTooManyRequests:
		e = types.NewError(types.ErrRateLimited, msg).WithRetryable(true)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e = types.NewError(types.ErrUpstreamTimeout, msg).WithRetryable(true)
	case status >= 500:
		e = types.NewError(types.ErrUpstreamError, msg).WithRetryable(true)
	default:
		e = types.NewError(types.ErrInvalidRequest, msg)
	}
	return e.WithHTTPStatus(status).WithGenerator(generator)
}

// readErrorMessage 读取响应体中的错误消息
// 尝试解析 JSON 错误响应，失败则回退到原始文本
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(data))
}
