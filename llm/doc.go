// Copyright (c) StemChat Authors.
// Licensed under the MIT License.

/*
Package llm 定义 StemChat 与大语言模型之间的最小接入层。

路由器在没有任何 Agent 认领消息时，通过 [Provider] 调用一个
OpenAI 兼容的 chat completions 接口生成兜底回复。

# 核心类型

  - [Provider]：Completion / HealthCheck / Name
  - [ChatRequest] / [ChatResponse]：与服务商无关的请求与响应
  - [Error]：带 Retryable 标记的上游错误

具体实现见 llm/providers/openaicompat，token 计数见 llm/tokenizer。
*/
package llm
