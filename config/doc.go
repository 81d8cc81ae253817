// Copyright (c) StemChat Authors.
// Licensed under the MIT License.

// Package config 提供 StemChat 的配置加载。
//
// 配置按 默认值 → YAML → 旧版环境变量（DATABASE_URL、LLM_API_BASE、
// LLM_MODEL、LLM_API_KEY、JWT_SECRET、JWT_EXPIRE_MINUTES）→ STEMCHAT_
// 前缀环境变量 的顺序叠加，Validate 一次性收集所有错误。
package config
