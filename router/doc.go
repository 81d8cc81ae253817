// Copyright (c) StemChat Authors.
// Licensed under the MIT License.

/*
Package router 将机器人消息分派给置信度最高的 Agent。

# 路由规则

  - 按注册顺序对每个 Agent 调用 Assess，分数裁剪到 [0, 1]
  - 取严格最大值，平分时先注册者胜出
  - 最高分低于阈值（默认 0.3）时交给 Fallback，不调用任何 Execute
  - Execute panic 或返回无消息的失败时统一回复 "internal agent error"

# 兜底

[LLMFallback] 通过 llm.Provider 调用 OpenAI 兼容接口，temperature 0.2、
max_tokens 512，聊天历史按 token 预算从新到旧裁剪。失败时路由器回复
"I couldn't process that"。

每次路由都会记录 Prometheus 指标与一个 OpenTelemetry span。
*/
package router
