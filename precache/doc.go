// 版权所有 2024 Lookahead Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 precache 提供预测式生成缓存：根据智能体的位置与朝向，推测接下来
最可能发生的交互，在后台提前调用生成器并缓存结果，使真正发生交互时
可以立即返回。

# 概述

Engine 是对外门面。调用方周期性地调用 LookAhead，引擎读取世界模型的
当前轨迹与附近目标，按距离分档（前向锥外的目标降级为 LOW）为每个动作
样例生成 Request 并放入 RequestQueue。唯一的后台 Worker 按优先级串行
消费队列，把生成结果写入 ResultCache。交互发生时调用 Resolve，命中则
立即返回，未命中则同步生成并写回。

轨迹相对基线的朝向偏差超过 45° 或位置偏差超过 3 个单位时，缓存、
队列与 in-flight 集合被原子地整体清空；失效前出队、失效后才完成的
生成结果会被丢弃。

# 核心类型

  - Engine：门面，管理 Worker 生命周期、Resolve、LookAhead 与统计。
  - ResultCache：有界缓存，存活时间 + 空闲时间双重过期，超容量时按
    (过期, 闲置, 低优先级, 更早创建) 淘汰。
  - RequestQueue：稳定的优先级队列，带 in-flight 去重。
  - RequestKey：(目标, 动作, 输入哈希)，输入先去空白并转小写。
  - Generator / WorldModel：外部协作方接口。
  - Recorder：旁路事件接口，供指标与审计日志使用。

# 并发模型

所有结构均可被多个 goroutine 安全访问。生成器调用期间不持有任何锁；
Stop 会等待进行中的生成调用结束，但不会取消它。
*/
package precache
