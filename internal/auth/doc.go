// Copyright (c) StemChat Authors.
// Licensed under the MIT License.

// Package auth 提供用户注册、登录与 JWT 签发。
//
// 密码使用 bcrypt 哈希；访问令牌为 HS256，sub 为用户名，uid 为用户 ID，
// 有效期来自 auth.token_ttl（默认 43200 分钟）。
package auth
