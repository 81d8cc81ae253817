// Copyright (c) StemChat Authors.
// Licensed under the MIT License.

// Package events 将聊天与库存事件发布到 Kafka。
//
// events.enabled 为 false 时使用 [Noop]。发布失败只记录日志，
// 不影响聊天或库存请求本身。
package events
