// 版权所有 2024 Lookahead Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 journal 把预测缓存引擎的生成与失效事件异步写入关系数据库，
用于离线分析命中率与生成延迟。生成结果文本不落库。

# 核心类型

  - Journal：实现 precache.Recorder，事件先进入有界缓冲，
    由后台 goroutine 批量写入；缓冲满时丢弃并计数，不阻塞引擎。
  - GenerationRecord / InvalidationRecord：GORM 模型。
  - Summary：按来源统计的生成次数、失败次数与平均耗时。
*/
package journal
