// 版权所有 2024 Lookahead Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库接入：按驱动打开连接、
连接池管理、健康检查与事务重试，供生成日志（journal）使用。

# 核心类型

  - Open / Dialector：按 sqlite（glebarez 纯 Go 驱动）、postgres、
    mysql 选择 Dialector 并打开连接。
  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB()、Ping()、
    Stats()、Close()。
  - PoolConfig：连接池配置，PoolConfigFrom 从服务配置构造，
    sqlite 固定为单连接。
  - GormLogger：把 GORM 的 SQL 日志转发到 zap，慢查询输出警告。

# 主要能力

  - 采样：按 SampleInterval 定时 ping，成功后把 PoolStats 交给
    WithStatsObserver 注册的观察者（服务里写入 Prometheus gauge）。
  - 事务：Transact 对死锁、序列化冲突、sqlite 锁等瞬时错误做指数退避重试。
*/
package database
