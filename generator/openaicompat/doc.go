// 版权所有 2024 Lookahead Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 openaicompat 把任意 OpenAI 兼容的 Chat Completions 端点（OpenAI、
Ollama、vLLM 等）适配为 precache.Generator。

# 概述

Generator 将 (动作, 玩家输入, 上下文) 组装成叙事提示词，以非流式
请求调用 /v1/chat/completions。模型回复若是 JSON 对象则解析为
Outcome 的各字段，否则整段作为 Outcome.Text。

# 错误映射

HTTP 错误统一映射为 *types.Error：401/403 → UNAUTHORIZED，
429 → RATE_LIMITED（可重试），408/504 → UPSTREAM_TIMEOUT（可重试），
其余 5xx → UPSTREAM_ERROR（可重试），其余 4xx → INVALID_REQUEST。
*/
package openaicompat
