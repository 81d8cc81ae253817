// Copyright (c) StemChat Authors.
// Licensed under the MIT License.

/*
Package types 提供 StemChat 的全局共享类型定义。

types 是最底层的公共包，不依赖任何内部包，为 api、agent、router 和
internal 下的各模块提供统一的错误码与 context 传播约定。

  - Error / ErrorCode: 结构化错误，含 HTTP 状态码与 Retryable 标记
  - StatusForCode: 错误码到 HTTP 状态的默认映射
  - WithRequestID / WithTraceID / WithUser: 请求级 context 传播
*/
package types
