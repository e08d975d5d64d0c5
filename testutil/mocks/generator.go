// MockGenerator 的生成器测试模拟实现。
//
// 支持固定响应、延迟、阻塞与错误注入场景。
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/lookahead/precache"
)

// --- MockGenerator 结构 ---

// MockGenerator 是 precache.Generator 的模拟实现
type MockGenerator struct {
	mu sync.RWMutex

	// 响应配置
	text string
	err  error
	fn   func(ctx context.Context, actionID, inputText, genContext string) (*precache.Outcome, error)

	// 行为控制
	delay     time.Duration
	failAfter int
	gate      chan struct{}

	// 调用记录
	calls []MockGeneratorCall
}

// MockGeneratorCall 记录单次调用
type MockGeneratorCall struct {
	ActionID   string
	InputText  string
	GenContext string
	Error      error
}

// ErrMockFailAfter 超过 failAfter 次调用后返回的错误
var ErrMockFailAfter = errors.New("mock generator: configured to fail after N calls")

// --- 构造函数和 Builder 方法 ---

// NewMockGenerator 创建新的 MockGenerator
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{text: "Mock outcome"}
}

// WithText 设置固定响应文本
func (m *MockGenerator) WithText(text string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	return m
}

// WithError 设置返回错误
func (m *MockGenerator) WithError(err error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay 设置响应延迟
func (m *MockGenerator) WithDelay(d time.Duration) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithFailAfter 设置在第 N 次调用后失败
func (m *MockGenerator) WithFailAfter(n int) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithGate 每次调用阻塞直到 gate 可读（或被关闭）
func (m *MockGenerator) WithGate(gate chan struct{}) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
	return m
}

// WithFunc 设置自定义生成函数
func (m *MockGenerator) WithFunc(fn func(ctx context.Context, actionID, inputText, genContext string) (*precache.Outcome, error)) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// --- Generator 接口实现 ---

// Generate 生成结果
func (m *MockGenerator) Generate(ctx context.Context, actionID, inputText, genContext string) (*precache.Outcome, error) {
	m.mu.Lock()
	call := MockGeneratorCall{ActionID: actionID, InputText: inputText, GenContext: genContext}
	idx := len(m.calls)
	m.calls = append(m.calls, call)
	delay, gate, fn, text, presetErr, failAfter := m.delay, m.gate, m.fn, m.text, m.err, m.failAfter
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	var (
		out *precache.Outcome
		err error
	)
	switch {
	case failAfter > 0 && idx >= failAfter:
		err = ErrMockFailAfter
	case presetErr != nil:
		err = presetErr
	case fn != nil:
		out, err = fn(ctx, actionID, inputText, genContext)
	default:
		out = &precache.Outcome{Text: text, Success: true}
	}

	if err != nil {
		m.mu.Lock()
		m.calls[idx].Error = err
		m.mu.Unlock()
	}
	return out, err
}

// --- 断言辅助 ---

// CallCount 返回调用次数
func (m *MockGenerator) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

// Calls 返回调用记录副本
func (m *MockGenerator) Calls() []MockGeneratorCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MockGeneratorCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset 清空调用记录
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
