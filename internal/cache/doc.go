// 版权所有 2024 Lookahead Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的旁路存储，用于发布预测缓存引擎的
统计快照。生成结果本身只保存在进程内，不写入 Redis。

# 核心类型

  - Manager：封装 go-redis 客户端，提供 Get/Set/GetJSON/SetJSON、
    Publish/Subscribe、TTL 与 Ping 等操作，支持可选 TLS 与后台健康检查。
  - Publisher：按固定间隔读取引擎 Stats，以带 TTL 的 JSON 快照写入
    Redis，并在 <key>:updates 频道广播，进程退出后快照自然过期。
  - Snapshot：快照结构，内嵌 precache.Stats 并附带发布时间。

# 错误语义

  - ErrCacheMiss：键不存在，可用 IsCacheMiss 判断。
  - ErrClosed：管理器已关闭。
*/
package cache
