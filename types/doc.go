// 版权所有 2024 Lookahead Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package types 提供 lookahead 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 precache、generator、
api 等上层模块提供统一的错误契约，以避免循环依赖。

# 核心类型

  - Error     — 结构化错误（Code、Message、HTTPStatus、Retryable、Cause）
  - ErrorCode — 统一错误码（请求、生成、引擎三类）

# 使用方式

	err := types.NewError(types.ErrGenerationFailed, "generator failed").
		WithCause(cause).
		WithRetryable(true)
*/
package types
