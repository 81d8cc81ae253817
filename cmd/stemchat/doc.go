// Copyright (c) StemChat Authors.
// Licensed under the MIT License.

/*
Package main 提供 StemChat 服务端程序入口。

# 概述

cmd/stemchat 装配群聊、库存机器人、认证与运维接口，并提供 serve、
migrate、seed、health、version 子命令。

# 主要能力

  - serve：API 与 Metrics 双端口，WebSocket 广播，优雅关闭
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    Metrics、OTel、CORS、RateLimiter（基于 IP）、JWTAuth
  - migrate：golang-migrate 的 up/down/status/version/goto/force/reset
  - seed：默认账号、库存样例数据与课程计划，可重复执行
  - 优雅关闭：停止接收请求 → 等待机器人回复 → 关闭 Kafka/Redis/数据库/遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
