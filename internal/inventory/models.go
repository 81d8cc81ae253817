package inventory

import (
	"errors"
	"fmt"
	"time"
)

// Store errors.
var (
	ErrItemNotFound       = errors.New("inventory item not found")
	ErrDuplicateItem      = errors.New("inventory item already exists in category")
	ErrInsufficientStock  = errors.New("quantity change would make stock negative")
	ErrInvalidTransaction = errors.New("invalid inventory transaction")
	ErrInvalidSupplier    = errors.New("invalid supplier")
	ErrInvalidItem        = errors.New("invalid inventory item")
)

// Item is one stocked material. Quantity never drops below zero and only
// changes through ApplyTransaction.
type Item struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"size:100;not null;uniqueIndex:idx_items_name_category" json:"name"`
	Category      string     `gorm:"size:50;not null;uniqueIndex:idx_items_name_category;index" json:"category"`
	Description   string     `gorm:"type:text" json:"description,omitempty"`
	Quantity      int        `gorm:"not null" json:"quantity"`
	Unit          string     `gorm:"size:20;not null" json:"unit"`
	MinQuantity   int        `gorm:"not null" json:"min_quantity"`
	Location      string     `gorm:"size:100" json:"location,omitempty"`
	LastRestocked *time.Time `json:"last_restocked,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (Item) TableName() string { return "inventory_items" }

// IsLowStock reports quantity at or below the restock threshold.
func (i Item) IsLowStock() bool { return i.Quantity <= i.MinQuantity }

// IsCritical reports quantity under half the threshold.
func (i Item) IsCritical() bool { return i.Quantity*2 < i.MinQuantity }

// Deficit is how far below the threshold the item sits; zero when not low.
func (i Item) Deficit() int {
	if d := i.MinQuantity - i.Quantity; d > 0 {
		return d
	}
	return 0
}

// Margin is quantity minus threshold; the most urgent items have the lowest margin.
func (i Item) Margin() int { return i.Quantity - i.MinQuantity }

// TransactionType classifies a quantity movement.
type TransactionType string

const (
	TransactionAdd        TransactionType = "add"
	TransactionRemove     TransactionType = "remove"
	TransactionAdjustment TransactionType = "adjustment"
	TransactionOrder      TransactionType = "order"
)

// Valid reports whether t is a known type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionAdd, TransactionRemove, TransactionAdjustment, TransactionOrder:
		return true
	}
	return false
}

// Transaction is an append-only audit row for one quantity delta.
type Transaction struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ItemID         uint            `gorm:"not null;index" json:"item_id"`
	Type           TransactionType `gorm:"column:transaction_type;size:20;not null" json:"transaction_type"`
	QuantityChange int             `gorm:"not null" json:"quantity_change"`
	QuantityAfter  int             `gorm:"not null" json:"quantity_after"`
	Reason         string          `gorm:"type:text" json:"reason,omitempty"`
	UserID         *uint           `gorm:"index" json:"user_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TableName 指定表名
func (Transaction) TableName() string { return "inventory_transactions" }

// TransactionInput describes a requested quantity change.
type TransactionInput struct {
	ItemID uint
	// Type may be empty; it is derived from the sign of Change.
	Type   TransactionType
	Change int
	Reason string
	UserID *uint
}

func (in TransactionInput) resolvedType() TransactionType {
	if in.Type != "" {
		return in.Type
	}
	switch {
	case in.Change > 0:
		return TransactionAdd
	case in.Change < 0:
		return TransactionRemove
	default:
		return TransactionAdjustment
	}
}

// validate rejects a zero change and a sign that contradicts add or remove.
func (in TransactionInput) validate(txType TransactionType) error {
	switch {
	case !txType.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, in.Type)
	case in.Change == 0:
		return fmt.Errorf("%w: quantity change must be non-zero", ErrInvalidTransaction)
	case txType == TransactionAdd && in.Change < 0:
		return fmt.Errorf("%w: add needs a positive quantity change", ErrInvalidTransaction)
	case txType == TransactionRemove && in.Change > 0:
		return fmt.Errorf("%w: remove needs a negative quantity change", ErrInvalidTransaction)
	}
	return nil
}

// Supplier offers an item, matched by name rather than by foreign key.
type Supplier struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	ItemName     string    `gorm:"size:100;not null;index" json:"item_name"`
	ContactInfo  string    `gorm:"size:255" json:"contact_info,omitempty"`
	OrderURL     string    `gorm:"size:500" json:"order_url,omitempty"`
	PricePerUnit float64   `gorm:"not null" json:"price_per_unit"`
	LeadTimeDays int       `gorm:"not null" json:"lead_time_days"`
	Notes        string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Supplier) TableName() string { return "suppliers" }

// Validate checks the non-negative price and lead time invariants.
func (s Supplier) Validate() error {
	if s.Name == "" || s.ItemName == "" {
		return errors.Join(ErrInvalidSupplier, errors.New("name and item_name are required"))
	}
	if s.PricePerUnit < 0 || s.LeadTimeDays < 0 {
		return errors.Join(ErrInvalidSupplier, errors.New("price and lead time must be non-negative"))
	}
	return nil
}
