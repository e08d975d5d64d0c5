// 版权所有 2024 Lookahead Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package testutil 提供 lookahead 测试共享的辅助函数。

# 核心能力

  - TestContext：30 秒超时并自动 Cleanup 的上下文
  - AssertOutcomeText / AssertPriorities：生成结果与队列顺序断言
  - AssertEventuallyTrue：轮询等待异步条件（Worker 消化队列等）
  - FakeClock：可手动推进的时钟，配合 precache.WithClock
  - FastConfig：Worker 间隔极短的引擎配置

# 子包

  - testutil/mocks：MockGenerator（可注入延迟、错误、闸门）与
    MockWorld（可变轨迹与目标）

# 使用示例

	ctx := testutil.TestContext(t)
	gen := mocks.NewMockGenerator().WithText("the guard shrugs")
	e, _ := precache.New(gen, world, testutil.FastConfig())
	out, err := e.Resolve(ctx, "talk", "hello", "", "guard")
	testutil.AssertOutcomeText(t, "the guard shrugs", out)
*/
package testutil
