// Package tokenizer 为 LLM 兜底提示词预算提供 token 计数。
//
// 优先使用 tiktoken 编码；编码数据无法加载时退回基于字符数的估算器，
// 保证离线部署下历史消息裁剪依然可用。
package tokenizer
