package chat

import (
	"time"

	"gorm.io/gorm"
)

// BotUsername is shown for messages written by the bot.
const BotUsername = "LLM Bot"

// Broadcast envelope types.
const (
	EventMessage         = "message"
	EventMessageEdited   = "message_edited"
	EventMessageDeleted  = "message_deleted"
	EventMessagesCleared = "messages_cleared"
	EventAck             = "ack"
)

// Message is one chat line. UserID is nil for bot messages.
type Message struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    *uint     `gorm:"index"`
	Content   string    `gorm:"type:text;not null"`
	IsBot     bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"index"`
}

func (Message) TableName() string { return "messages" }

// AutoMigrate creates the messages table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Message{})
}

// View is the wire shape of a message.
type View struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	IsBot     bool      `json:"is_bot"`
	CreatedAt time.Time `json:"created_at"`
}

// Envelope is a frame pushed to WebSocket clients.
type Envelope struct {
	Type      string `json:"type"`
	Message   *View  `json:"message,omitempty"`
	MessageID uint   `json:"message_id,omitempty"`
	Echo      string `json:"echo,omitempty"`
}

// Author identifies the user acting on a message.
type Author struct {
	ID       uint
	Username string
}

// row is a message joined with its author's username.
type row struct {
	Message
	Username *string
}

func (r row) view() View {
	return newView(r.Message, r.Username)
}

func newView(m Message, username *string) View {
	v := View{ID: m.ID, Content: m.Content, IsBot: m.IsBot, CreatedAt: m.CreatedAt}
	switch {
	case m.IsBot:
		v.Username = BotUsername
	case username != nil:
		v.Username = *username
	default:
		v.Username = "unknown"
	}
	return v
}
