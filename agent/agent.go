package agent

import (
	"context"
	"time"

	"github.com/BaSui01/stemchat/internal/inventory"
)

// Agent is one intent handler behind the router.
//
// Assess must be pure: no I/O, no mutation, a score in [0, 1]. Execute runs
// only on the winning agent and reports every failure through Result rather
// than by panicking.
type Agent interface {
	Name() string
	Description() string
	Assess(message string, rc RequestContext) float64
	Execute(ctx context.Context, message string, rc RequestContext, store Store) Result
	Capabilities() []string
}

// Store is the inventory surface agents read from.
type Store interface {
	FindItemsByName(ctx context.Context, name string) ([]inventory.Item, error)
	SearchItems(ctx context.Context, fragment string) ([]inventory.Item, error)
	ListItems(ctx context.Context) ([]inventory.Item, error)
	ListLowStock(ctx context.Context) ([]inventory.Item, error)
	SuppliersForItem(ctx context.Context, itemName string) ([]inventory.Supplier, error)
	ApplyTransaction(ctx context.Context, in inventory.TransactionInput) (*inventory.Item, *inventory.Transaction, error)
	ListTransactions(ctx context.Context, itemID uint, limit int) ([]inventory.Transaction, error)
}

// HistoryMessage is one earlier chat line, oldest first in RequestContext.
type HistoryMessage struct {
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	IsBot     bool      `json:"is_bot"`
	CreatedAt time.Time `json:"created_at"`
}

// RequestContext is read-only metadata about the asking user.
type RequestContext struct {
	UserID    uint
	Username  string
	Timestamp time.Time
	History   []HistoryMessage
}

// Result is what an agent hands back to the router.
type Result struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    any      `json:"data,omitempty"`
	Actions []string `json:"actions,omitempty"`
}

// Descriptor is the public self-description served by GET /api/agents.
type Descriptor struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
}

// Describe builds a Descriptor for a.
func Describe(a Agent) Descriptor {
	return Descriptor{
		Name:         a.Name(),
		Description:  a.Description(),
		Capabilities: a.Capabilities(),
	}
}

func failure(message string) Result {
	return Result{Success: false, Message: message}
}
