// 版权所有 2024 Lookahead Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 generator 提供 precache.Generator 的实现与装饰器。

# 核心类型

  - Offline：离线叙事生成器，按动作模板确定性地产出结果，可模拟延迟，
    用于演示与测试。
  - RateLimited：基于 golang.org/x/time/rate 的限流装饰器，Worker 与
    Resolve 共用同一个令牌桶。

子包 openaicompat 对接任意 OpenAI 兼容的 /v1/chat/completions 端点。
*/
package generator
