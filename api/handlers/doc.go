// Copyright (c) StemChat Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 StemChat HTTP API 的请求处理器实现。

# 概述

所有 Handler 都是标准 net/http 处理函数，路由由 cmd/stemchat 使用
Go 1.22 的 ServeMux 模式（"PUT /api/inventory/{id}"）注册。
认证中间件把用户 ID 与用户名放进 context，Handler 通过 types.UserID /
types.Username 读取。

# 核心类型

  - AuthHandler: 注册与登录，返回 JWT
  - ChatHandler: 消息列表、发送、编辑、删除、清空，以及 /ws 升级
  - InventoryHandler: 物料、数量事务、低库存、供应商
  - AgentHandler: 路由器中已注册的 Agent
  - HealthHandler: /health、/ready、/version
  - Response: 统一 JSON 响应（success + data + error + timestamp + request_id）

# 错误映射

领域错误在各 Handler 内映射为 types.Error：不存在 → 404，
无权限 → 403，重名/库存不足 → 409，校验失败 → 400，其余 → 500。
*/
package handlers
