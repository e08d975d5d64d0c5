// Package config 提供 Lookahead 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 LOOKAHEAD）的顺序合并，
// 涵盖服务器、预测缓存引擎、生成器后端、世界模拟、Redis 统计发布、
// 生成日志数据库、日志与遥测。
package config
