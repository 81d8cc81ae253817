// Copyright (c) StemChat Authors.
// Licensed under the MIT License.

/*
Package chat 实现群聊表面：消息存储、WebSocket 广播与 "#" 触发的机器人回复。

# 组成

  - [Service]：列表、发送、编辑、删除、清空；每次变更都会广播并发布事件
  - [Hub]：基于 coder/websocket 的扇出，每个客户端一个有界发送队列，
    队列满即断开
  - [Bot]：异步调用路由器，结果作为 "LLM Bot" 消息落库并广播

编辑或删除一条用户消息时，紧随其后的机器人回复（中间没有其他用户消息）
会被一并删除。
*/
package chat
