package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/stemchat/agent"
	"github.com/BaSui01/stemchat/internal/metrics"
	"github.com/BaSui01/stemchat/llm"
	"github.com/BaSui01/stemchat/llm/tokenizer"
)

// SystemPrompt frames the general assistant used when no agent applies.
const SystemPrompt = "You are an AI assistant for a STEM center group chat. " +
	"You help teachers with inventory, lesson plans, approvals, and procurement. " +
	"Be concise, helpful, and professional. If you're unsure, guide the user on what you can help with."

// FallbackConfig tunes the LLM fallback.
type FallbackConfig struct {
	Model         string
	Temperature   float32
	MaxTokens     int
	HistoryTokens int // budget for prior chat lines, 0 disables history
	Timeout       time.Duration
}

// DefaultFallbackConfig returns temperature 0.2, 512 max tokens and a 1024
// token history budget.
func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		Temperature:   0.2,
		MaxTokens:     512,
		HistoryTokens: 1024,
		Timeout:       60 * time.Second,
	}
}

// LLMFallback answers through an llm.Provider.
type LLMFallback struct {
	provider  llm.Provider
	tokenizer tokenizer.Tokenizer
	cfg       FallbackConfig
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewLLMFallback creates the fallback. A nil tok uses tokenizer.ForModel.
func NewLLMFallback(provider llm.Provider, cfg FallbackConfig, tok tokenizer.Tokenizer, collector *metrics.Collector, logger *zap.Logger) *LLMFallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tok == nil {
		tok = tokenizer.ForModel(cfg.Model)
	}
	return &LLMFallback{
		provider:  provider,
		tokenizer: tok,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "llm_fallback")),
		metrics:   collector,
	}
}

// Complete sends the system prompt, trimmed history and message.
func (f *LLMFallback) Complete(ctx context.Context, message string, rc agent.RequestContext) (string, error) {
	if f.provider == nil {
		return "", errors.New("no llm provider configured")
	}

	msgs := make([]llm.Message, 0, len(rc.History)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt})
	msgs = append(msgs, f.history(rc.History)...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: message})

	start := time.Now()
	resp, err := f.provider.Completion(ctx, &llm.ChatRequest{
		Model:       f.cfg.Model,
		Messages:    msgs,
		Temperature: f.cfg.Temperature,
		MaxTokens:   f.cfg.MaxTokens,
		Timeout:     f.cfg.Timeout,
	})
	if err != nil {
		f.metrics.RecordLLMRequest(f.provider.Name(), "error", time.Since(start), 0, 0)
		f.logger.Warn("llm completion failed", zap.Error(err))
		return "", fmt.Errorf("llm completion: %w", err)
	}
	f.metrics.RecordLLMRequest(f.provider.Name(), "success", time.Since(start),
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	return strings.TrimSpace(resp.FirstContent()), nil
}

// history keeps the newest lines that fit the token budget, oldest first.
func (f *LLMFallback) history(lines []agent.HistoryMessage) []llm.Message {
	if f.cfg.HistoryTokens <= 0 || len(lines) == 0 {
		return nil
	}

	var (
		kept []llm.Message
		used int
	)
	for i := len(lines) - 1; i >= 0; i-- {
		m := toLLMMessage(lines[i])
		n, err := f.tokenizer.CountMessages([]tokenizer.Message{{Role: string(m.Role), Content: m.Content}})
		if err != nil || used+n > f.cfg.HistoryTokens {
			break
		}
		used += n
		kept = append(kept, m)
	}

	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

func toLLMMessage(h agent.HistoryMessage) llm.Message {
	if h.IsBot {
		return llm.Message{Role: llm.RoleAssistant, Content: h.Content}
	}
	content := h.Content
	if h.Username != "" {
		content = h.Username + ": " + content
	}
	return llm.Message{Role: llm.RoleUser, Content: content}
}
