package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/stemchat/agent"
	"github.com/BaSui01/stemchat/internal/metrics"
	"github.com/BaSui01/stemchat/internal/pool"
	"github.com/BaSui01/stemchat/router"
)

// Router answers a question on behalf of the bot.
type Router interface {
	Route(ctx context.Context, message string, rc agent.RequestContext, store agent.Store) router.Result
}

// BotConfig configures the bot.
type BotConfig struct {
	TriggerPrefix string
	Timeout       time.Duration
	HistorySize   int
	// Workers bounds concurrent replies; QueueSize bounds the backlog.
	Workers   int
	QueueSize int
}

// DefaultBotConfig returns the default bot settings.
func DefaultBotConfig() BotConfig {
	return BotConfig{TriggerPrefix: "#", Timeout: 60 * time.Second, HistorySize: 10, Workers: 4, QueueSize: 64}
}

// Bot answers triggered messages asynchronously through the router.
type Bot struct {
	cfg     BotConfig
	router  Router
	store   agent.Store
	metrics *metrics.Collector
	logger  *zap.Logger
	workers *pool.Pool

	// base 是所有回复的父 context，Abort 时取消
	base   context.Context
	cancel context.CancelFunc
}

// NewBot creates a bot.
func NewBot(cfg BotConfig, r Router, store agent.Store, collector *metrics.Collector, logger *zap.Logger) *Bot {
	def := DefaultBotConfig()
	if cfg.TriggerPrefix == "" {
		cfg.TriggerPrefix = def.TriggerPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.HistorySize < 0 {
		cfg.HistorySize = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	b := &Bot{
		cfg:     cfg,
		router:  r,
		store:   store,
		metrics: collector,
		logger:  logger.With(zap.String("component", "chat_bot")),
		base:    base,
		cancel:  cancel,
	}
	b.workers = pool.New(pool.Config{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
		PanicHandler: func(v any) {
			b.metrics.RecordBotReply("error")
			b.logger.Error("bot reply panicked", zap.Any("panic", v), zap.Stack("stack"))
		},
	})
	return b
}

// Trigger strips the trigger prefix. It reports false when the content
// does not start with the prefix or nothing follows it.
func (b *Bot) Trigger(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, b.cfg.TriggerPrefix) {
		return "", false
	}
	question := strings.TrimSpace(strings.TrimPrefix(trimmed, b.cfg.TriggerPrefix))
	return question, question != ""
}

// Wait blocks until every pending reply finished or ctx ends.
func (b *Bot) Wait(ctx context.Context) error {
	return b.workers.Wait(ctx)
}

// Close stops the reply workers after the queued replies ran.
func (b *Bot) Close() {
	b.workers.Close()
	b.cancel()
}

// Abort cancels running replies, drops queued ones and stops the workers.
// It returns once no reply touches the store any more.
func (b *Bot) Abort() {
	b.cancel()
	if dropped := b.workers.Discard(); dropped > 0 {
		b.logger.Warn("queued bot questions dropped on shutdown", zap.Int("dropped", dropped))
	}
}

func (b *Bot) dispatch(s *Service, author Author, messageID uint, question string) {
	err := b.workers.Submit(func() { b.answer(s, author, messageID, question) })
	if err != nil {
		b.metrics.RecordBotReply("rejected")
		b.logger.Warn("bot question dropped",
			zap.String("username", author.Username),
			zap.Int("queued", b.workers.Stats().Queued),
			zap.Error(err),
		)
	}
}

func (b *Bot) answer(s *Service, author Author, messageID uint, question string) {
	if b.base.Err() != nil {
		b.metrics.RecordBotReply("rejected")
		return
	}
	ctx, cancel := context.WithTimeout(b.base, b.cfg.Timeout)
	defer cancel()

	// 提问本身由路由器单独附加，不计入历史
	history, err := s.historyExcluding(ctx, b.cfg.HistorySize, messageID)
	if err != nil {
		b.logger.Warn("history unavailable", zap.Error(err))
	}

	rc := agent.RequestContext{
		UserID:    author.ID,
		Username:  author.Username,
		Timestamp: time.Now(),
		History:   history,
	}
	res := b.router.Route(ctx, question, rc, b.store)
	if b.base.Err() != nil {
		b.metrics.RecordBotReply("rejected")
		b.logger.Warn("bot reply abandoned on shutdown", zap.String("username", author.Username))
		return
	}

	// 回复需要在路由超时后仍然落库
	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer saveCancel()

	if _, err := s.saveBotReply(saveCtx, res.Message); err != nil {
		b.metrics.RecordBotReply("error")
		b.logger.Error("bot reply not saved", zap.String("agent", res.AgentUsed), zap.Error(err))
		return
	}

	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	b.metrics.RecordBotReply(outcome)
	b.logger.Info("bot replied",
		zap.String("agent", res.AgentUsed),
		zap.Float64("confidence", res.Confidence),
		zap.Bool("success", res.Success),
		zap.String("username", author.Username),
	)
}
