package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/stemchat/agent"
	"github.com/BaSui01/stemchat/internal/events"
	"github.com/BaSui01/stemchat/internal/metrics"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
	maxContentLength = 4000
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotOwner        = errors.New("you can only change your own messages")
	ErrEmptyContent    = errors.New("message content is required")
	ErrContentTooLong  = fmt.Errorf("message content exceeds %d characters", maxContentLength)
)

// Service owns the messages table and notifies clients of changes.
type Service struct {
	db        *gorm.DB
	hub       Broadcaster
	publisher events.Publisher
	bot       *Bot
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher mirrors chat events to a broker.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithBot enables "#" triggered replies.
func WithBot(b *Bot) Option {
	return func(s *Service) { s.bot = b }
}

// WithMetrics records chat events.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// NewService creates a chat service.
func NewService(db *gorm.DB, hub Broadcaster, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		db:        db,
		hub:       hub,
		publisher: events.Noop{},
		logger:    logger.With(zap.String("component", "chat")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bot returns the attached bot, or nil.
func (s *Service) Bot() *Bot { return s.bot }

func (s *Service) joined(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("messages").
		Select("messages.*, users.username AS username").
		Joins("LEFT JOIN users ON users.id = messages.user_id")
}

// List returns the newest limit messages, oldest first.
func (s *Service) List(ctx context.Context, limit int) ([]View, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	var rows []row
	err := s.joined(ctx).
		Order("messages.created_at DESC").
		Order("messages.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]View, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r.view()
	}
	return out, nil
}

// History returns the last n messages in the shape agents read.
func (s *Service) History(ctx context.Context, n int) ([]agent.HistoryMessage, error) {
	return s.historyExcluding(ctx, n, 0)
}

// historyExcluding is History without the message skip. The bot passes the
// question it answers so the LLM does not receive it twice.
func (s *Service) historyExcluding(ctx context.Context, n int, skip uint) ([]agent.HistoryMessage, error) {
	if n <= 0 {
		return nil, nil
	}
	limit := n
	if skip != 0 {
		limit++
	}
	views, err := s.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	history := make([]agent.HistoryMessage, 0, len(views))
	for _, v := range views {
		if skip != 0 && v.ID == skip {
			continue
		}
		history = append(history, agent.HistoryMessage{
			Username:  v.Username,
			Content:   v.Content,
			IsBot:     v.IsBot,
			CreatedAt: v.CreatedAt,
		})
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	return history, nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if len([]rune(content)) > maxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// Post stores a user message, broadcasts it and, when the content carries
// the bot trigger, schedules an answer.
func (s *Service) Post(ctx context.Context, author Author, content string) (*View, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}

	uid := author.ID
	msg := Message{UserID: &uid, Content: content}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	view := newView(msg, &author.Username)
	s.notify(ctx, Envelope{Type: EventMessage, Message: &view}, events.TypeMessageCreated)
	s.maybeAnswer(author, msg.ID, content)
	return &view, nil
}

// Edit replaces the content of the author's message. The bot reply that
// directly follows it is deleted, and a new one is requested when the new
// content carries the trigger.
func (s *Service) Edit(ctx context.Context, author Author, id uint, content string) (*View, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}

	var (
		msg       Message
		removedID uint
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadOwned(tx, author, id, &msg); err != nil {
			return err
		}
		reply, err := followingReply(tx, msg.ID)
		if err != nil {
			return err
		}
		if reply != nil {
			if err := tx.Delete(&Message{}, reply.ID).Error; err != nil {
				return err
			}
			removedID = reply.ID
		}
		msg.Content = content
		return tx.Model(&Message{}).Where("id = ?", msg.ID).Update("content", content).Error
	})
	if err != nil {
		return nil, mapError("edit message", err)
	}

	view := newView(msg, &author.Username)
	s.notify(ctx, Envelope{Type: EventMessageEdited, Message: &view}, events.TypeMessageEdited)
	if removedID != 0 {
		s.notify(ctx, Envelope{Type: EventMessageDeleted, MessageID: removedID}, events.TypeMessageDeleted)
	}
	s.maybeAnswer(author, msg.ID, content)
	return &view, nil
}

// Delete removes the author's message and the bot reply that directly
// follows it. It returns the removed ids.
func (s *Service) Delete(ctx context.Context, author Author, id uint) ([]uint, error) {
	var removed []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg Message
		if err := loadOwned(tx, author, id, &msg); err != nil {
			return err
		}
		reply, err := followingReply(tx, msg.ID)
		if err != nil {
			return err
		}
		ids := []uint{msg.ID}
		if reply != nil {
			ids = append(ids, reply.ID)
		}
		if err := tx.Delete(&Message{}, ids).Error; err != nil {
			return err
		}
		removed = ids
		return nil
	})
	if err != nil {
		return nil, mapError("delete message", err)
	}

	for _, rid := range removed {
		s.notify(ctx, Envelope{Type: EventMessageDeleted, MessageID: rid}, events.TypeMessageDeleted)
	}
	return removed, nil
}

// Clear deletes every message.
func (s *Service) Clear(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Message{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear messages: %w", res.Error)
	}
	s.notify(ctx, Envelope{Type: EventMessagesCleared}, events.TypeMessagesCleared)
	s.logger.Info("messages cleared", zap.Int64("count", res.RowsAffected))
	return res.RowsAffected, nil
}

// saveBotReply persists and broadcasts a bot message.
func (s *Service) saveBotReply(ctx context.Context, content string) (*View, error) {
	msg := Message{Content: content, IsBot: true}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("create bot message: %w", err)
	}
	view := newView(msg, nil)
	s.notify(ctx, Envelope{Type: EventMessage, Message: &view}, events.TypeMessageCreated)
	return &view, nil
}

func (s *Service) maybeAnswer(author Author, messageID uint, content string) {
	if s.bot == nil {
		return
	}
	question, ok := s.bot.Trigger(content)
	if !ok {
		return
	}
	s.bot.dispatch(s, author, messageID, question)
}

func (s *Service) notify(ctx context.Context, env Envelope, eventType string) {
	if s.hub != nil {
		s.hub.Broadcast(env)
	}
	s.metrics.RecordChatEvent(env.Type)

	key := ""
	switch {
	case env.Message != nil:
		key = strconv.FormatUint(uint64(env.Message.ID), 10)
	case env.MessageID != 0:
		key = strconv.FormatUint(uint64(env.MessageID), 10)
	}
	if err := s.publisher.Publish(ctx, events.New(eventType, key, env)); err != nil {
		s.logger.Warn("chat event not published", zap.String("type", eventType), zap.Error(err))
	}
}

func loadOwned(tx *gorm.DB, author Author, id uint, msg *Message) error {
	if err := tx.First(msg, id).Error; err != nil {
		return err
	}
	if msg.IsBot || msg.UserID == nil || *msg.UserID != author.ID {
		return ErrNotOwner
	}
	return nil
}

// followingReply returns the first bot message after id when no user
// message lies in between.
func followingReply(tx *gorm.DB, id uint) (*Message, error) {
	var next Message
	err := tx.Where("id > ? AND is_bot = ?", id, true).Order("id").Limit(1).Take(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var between int64
	if err := tx.Model(&Message{}).
		Where("id > ? AND id < ? AND is_bot = ?", id, next.ID, false).
		Count(&between).Error; err != nil {
		return nil, err
	}
	if between > 0 {
		return nil, nil
	}
	return &next, nil
}

func mapError(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrMessageNotFound
	case errors.Is(err, ErrNotOwner):
		return ErrNotOwner
	}
	return fmt.Errorf("%s: %w", op, err)
}
