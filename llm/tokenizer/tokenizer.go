package tokenizer

// Tokenizer counts tokens for prompt budgeting.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数，包括每条消息的角色与分隔符开销。
	CountMessages(messages []Message) (int, error)

	// Name 返回分词器的名称.
	Name() string
}

// Message 是 tokenizer 使用的轻量消息结构，避免依赖 llm 包。
type Message struct {
	Role    string
	Content string
}

// Per-message and per-conversation framing overhead used by chat models.
const (
	messageOverhead      = 4
	conversationOverhead = 3
)

// ForModel returns a tiktoken tokenizer for model. When the encoding cannot
// be loaded (offline hosts) every call falls back to the estimator.
func ForModel(model string) Tokenizer {
	return NewTiktokenTokenizer(model)
}
