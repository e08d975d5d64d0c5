// 版权所有 2024 Lookahead Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动、
阻塞运行与优雅关闭。

# 核心类型

  - Manager：封装 net/http.Server，持有监听器与异步错误通道，
    提供 Start/Run/Shutdown 等生命周期方法。API 端口与 metrics
    端口各使用一个 Manager，通过 name 在日志中区分。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小与
    优雅关闭超时。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 阻塞运行：Run 在 ctx 取消或服务异常退出后完成优雅关闭，
    配合 signal.NotifyContext 使用。
  - 状态查询：IsRunning、Addr 与 ListenAddr（端口为 0 时返回实际端口）。
*/
package server
