// Copyright (c) StemChat Authors.
// Licensed under the MIT License.

/*
Package metrics 提供基于 Prometheus 的指标采集。

Collector 通过 promauto 注册到默认 registry，所有指标按 namespace 隔离：

  - HTTP：请求总数、耗时、响应大小，状态码归类为 2xx/3xx/4xx/5xx
  - Router：路由结果（agent/outcome）、最高置信度分布、Agent 执行耗时
  - LLM：兜底请求数、耗时、prompt/completion token 用量
  - 库存：按类型与状态统计的库存事务
  - Chat：WebSocket 连接数、机器人回复、广播事件
  - 缓存与数据库：命中/未命中、连接池状态、查询耗时

nil *Collector 是合法值，所有 Record 方法在 nil 上为空操作，便于测试。
*/
package metrics
