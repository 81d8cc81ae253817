// Copyright (c) StemChat Authors.
// Licensed under the MIT License.

// Package tlsutil 集中管理出站连接的 TLS 设置：LLM 兜底的 HTTP 客户端
// 与可选的 redis TLS 连接（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
