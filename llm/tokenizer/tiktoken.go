package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 使用 tiktoken 编码计数，加载失败时退回估算器。
type TiktokenTokenizer struct {
	model    string
	encoding string

	once     sync.Once
	enc      *tiktoken.Tiktoken
	initErr  error
	fallback *EstimatorTokenizer
}

// 模型前缀到 tiktoken 编码的映射，按前缀长度从长到短匹配。
var modelEncodings = []struct {
	prefix   string
	encoding string
}{
	{"gpt-4o", "o200k_base"},
	{"gpt-4", "cl100k_base"},
	{"gpt-3.5", "cl100k_base"},
}

// NewTiktokenTokenizer 为给定模型创建分词器。未知模型（llama、qwen 等本地模型）
// 使用 cl100k_base 作为近似。
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	encoding := "cl100k_base"
	lower := strings.ToLower(model)
	for _, m := range modelEncodings {
		if strings.HasPrefix(lower, m.prefix) {
			encoding = m.encoding
			break
		}
	}
	return &TiktokenTokenizer{
		model:    model,
		encoding: encoding,
		fallback: NewEstimatorTokenizer(),
	}
}

// init lazily 初始化 tiktoken 编码(第一次使用时可能下载数据).
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// Ready reports whether the real encoding is in use.
func (t *TiktokenTokenizer) Ready() bool { return t.init() == nil }

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return t.fallback.CountTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) CountMessages(messages []Message) (int, error) {
	if err := t.init(); err != nil {
		return t.fallback.CountMessages(messages)
	}
	total := 0
	for _, msg := range messages {
		total += messageOverhead
		total += len(t.enc.Encode(msg.Role, nil, nil))
		total += len(t.enc.Encode(msg.Content, nil, nil))
	}
	return total + conversationOverhead, nil
}

func (t *TiktokenTokenizer) Name() string {
	if t.init() != nil {
		return t.fallback.Name()
	}
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
