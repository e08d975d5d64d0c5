// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	testutil.AssertOutcomeText(t, "expected", outcome)
//	testutil.AssertEventuallyTrue(t, func() bool { return condition }, 5*time.Second)
// =============================================================================
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/lookahead/precache"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertOutcomeText 断言生成结果非空且文本一致
func AssertOutcomeText(t *testing.T, expected string, out *precache.Outcome) {
	t.Helper()
	if out == nil {
		t.Fatalf("expected outcome %q, got nil", expected)
	}
	if out.Text != expected {
		t.Errorf("outcome text mismatch: expected %q, got %q", expected, out.Text)
	}
}

// AssertPriorities 断言请求快照的优先级序列
func AssertPriorities(t *testing.T, expected []precache.Priority, reqs []precache.Request) {
	t.Helper()

	if len(expected) != len(reqs) {
		t.Errorf("request count mismatch: expected %d, got %d", len(expected), len(reqs))
		return
	}
	for i := range expected {
		if expected[i] != reqs[i].Priority {
			t.Errorf("request[%d] priority mismatch: expected %s, got %s", i, expected[i], reqs[i].Priority)
		}
	}
}

// AssertEventuallyTrue 断言条件最终为真
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Errorf("condition did not become true within %v", timeout)
}

// =============================================================================
// ⏱️ 时间辅助
// =============================================================================

// FakeClock 可手动推进的时钟，Now 可直接作为 WithClock 参数
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock 创建停在 start 的时钟
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now 返回当前时间
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 推进时钟
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// =============================================================================
// 🔧 配置辅助
// =============================================================================

// FastConfig 返回 Worker 间隔极短的引擎配置，供集成测试使用
func FastConfig() precache.Config {
	cfg := precache.DefaultConfig()
	cfg.WorkerPollInterval = 5 * time.Millisecond
	cfg.WorkerInterRequestDelay = time.Millisecond
	cfg.WorkerErrorBackoff = 5 * time.Millisecond
	return cfg
}
