// Package tlsutil 提供集中式 TLS 配置：生成器 HTTP 客户端与 Redis 连接
// 共用同一套加固设置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
