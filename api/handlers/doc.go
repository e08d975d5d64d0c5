// 版权所有 2024 Lookahead Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package handlers 提供 Lookahead HTTP API 的请求处理器实现。

# 概述

所有 Handler 都是标准 net/http 处理函数，路由在 cmd/lookahead 中注册。
响应统一为 Response（success + data + error + timestamp）。

# 核心类型

  - EngineHandler：引擎统计、待生成队列、结果解析、手动前瞻与失效、
    生成日志查询（/api/v1/...）
  - WorldHandler：演示用世界模拟的查看与操控
  - HealthHandler：/healthz、/ready、/version；关键检查失败返回 503，
    非关键检查失败降级为 degraded
  - PingCheck / EngineCheck：内置健康检查

# 错误映射

types.ErrorCode 通过 mapErrorCodeToHTTPStatus 映射到 HTTP 状态码，
AsAPIError 把生成器返回的普通错误归入 GENERATION_FAILED（502）。
请求体限制 1 MB 且拒绝未知字段。
*/
package handlers
