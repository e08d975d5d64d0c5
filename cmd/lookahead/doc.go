// 版权所有 2024 Lookahead Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package main 提供 Lookahead 服务端程序入口。

# 概述

cmd/lookahead 把预测缓存引擎、世界模拟、生成器后端与可选的
生成日志（数据库）、统计快照（Redis）、OpenTelemetry 装配成一个进程，
并通过 HTTP 暴露查询与操控接口。

# 核心类型

  - App：组件装配与生命周期（Worker、前瞻节拍、快照发布）
  - Server：API 与 Metrics 双端口，路由注册与中间件链
  - Middleware：func(http.Handler) http.Handler

# 子命令

  - serve：启动服务，收到 SIGINT/SIGTERM 后优雅关闭
  - simulate：离线驱动智能体行走，逐步打印命中情况
  - version / health / help

# 中间件链

Recovery → RequestID → SecurityHeaders → OTelTracing → MetricsMiddleware
→ RequestLogger。指标的 path 标签取 ServeMux 匹配到的路由模式。
*/
package main
