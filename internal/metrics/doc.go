// 版权所有 2024 Lookahead Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP 请求
与预测缓存引擎两大维度。

# 概述

Collector 统一注册和记录 Prometheus 指标，使用 promauto 的
Registerer 工厂完成注册。所有指标按 namespace 隔离，引擎相关指标
位于 precache 子系统下。

# 核心类型

  - Collector：指标收集器，实现 precache.Recorder 接口，可直接
    作为引擎的事件接收者（通常与日志记录器一起放入 MultiRecorder）。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 缓存指标：命中与未命中计数、容量淘汰计数。
  - 队列指标：按优先级与结果分组的入队计数，队列深度与在途数 Gauge。
  - 生成指标：按来源（speculative/fallback）与状态
    （success/error/discarded）分组的调用计数与耗时。
  - 失效指标：轨迹失效次数与被清除的条目数。
*/
package metrics
