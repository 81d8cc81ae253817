package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/stemchat/internal/database"
)

// TxRunner is the slice of *database.Pool the store needs.
type TxRunner interface {
	DB() *gorm.DB
	WithRetry(ctx context.Context, operation string, fn database.TransactionFunc) error
}

// GormStore persists items, suppliers and transactions through gorm.
type GormStore struct {
	tx     TxRunner
	logger *zap.Logger
}

// NewGormStore creates a store over the shared pool.
func NewGormStore(tx TxRunner, logger *zap.Logger) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{
		tx:     tx,
		logger: logger.With(zap.String("component", "inventory_store")),
	}
}

// AutoMigrate creates the inventory tables. Used by tests and dev setups
// that skip golang-migrate.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Item{}, &Transaction{}, &Supplier{}); err != nil {
		return fmt.Errorf("failed to auto migrate inventory: %w", err)
	}
	return nil
}

func (s *GormStore) db(ctx context.Context) *gorm.DB {
	return s.tx.DB().WithContext(ctx)
}

// likeEscaper makes user text literal inside a LIKE pattern. Queries pair it
// with ESCAPE '!', which reads the same in postgres, mysql and sqlite.
var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

func likePattern(fragment string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(fragment))) + "%"
}

// =============================================================================
// Items
// =============================================================================

// GetItem loads one item by id.
func (s *GormStore) GetItem(ctx context.Context, id uint) (*Item, error) {
	var item Item
	err := s.db(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return &item, nil
}

// FindItemsByName returns items whose name equals name, ignoring case,
// in insertion order.
func (s *GormStore) FindItemsByName(ctx context.Context, name string) ([]Item, error) {
	var items []Item
	err := s.db(ctx).
		Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("find items by name: %w", err)
	}
	return items, nil
}

// SearchItems returns items whose name contains fragment, ignoring case.
func (s *GormStore) SearchItems(ctx context.Context, fragment string) ([]Item, error) {
	var items []Item
	err := s.db(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '!'`, likePattern(fragment)).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	return items, nil
}

// ListItems returns every item in insertion order.
func (s *GormStore) ListItems(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := s.db(ctx).Order("id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// ListLowStock returns items with quantity <= min_quantity, most urgent
// (lowest quantity - min_quantity) first.
func (s *GormStore) ListLowStock(ctx context.Context) ([]Item, error) {
	var items []Item
	err := s.db(ctx).
		Where("quantity <= min_quantity").
		Order("quantity - min_quantity ASC").
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	return items, nil
}

// CreateItem inserts item and, when it starts with stock, the initial "add"
// transaction in the same unit of work.
func (s *GormStore) CreateItem(ctx context.Context, item *Item, userID *uint) error {
	if strings.TrimSpace(item.Name) == "" || item.Quantity < 0 || item.MinQuantity < 0 {
		return ErrInvalidItem
	}
	if item.Category == "" {
		item.Category = InferCategory(item.Name)
	}
	if item.Unit == "" {
		item.Unit = "units"
	}

	return s.tx.WithRetry(ctx, "create_item", func(tx *gorm.DB) error {
		var existing int64
		err := tx.Model(&Item{}).
			Where("LOWER(name) = ? AND category = ?", strings.ToLower(item.Name), item.Category).
			Count(&existing).Error
		if err != nil {
			return fmt.Errorf("check duplicate item: %w", err)
		}
		if existing > 0 {
			return ErrDuplicateItem
		}

		if item.Quantity > 0 {
			now := time.Now()
			item.LastRestocked = &now
		}
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("create item: %w", err)
		}

		if item.Quantity == 0 {
			return nil
		}
		return tx.Create(&Transaction{
			ItemID:         item.ID,
			Type:           TransactionAdd,
			QuantityChange: item.Quantity,
			QuantityAfter:  item.Quantity,
			Reason:         "initial stock",
			UserID:         userID,
		}).Error
	})
}

// =============================================================================
// Transactions
// =============================================================================

// ApplyTransaction changes an item's quantity and appends the audit row in one
// database transaction. The quantity update is a single conditional
// read-modify-write, so concurrent deltas against the same item serialize.
func (s *GormStore) ApplyTransaction(ctx context.Context, in TransactionInput) (*Item, *Transaction, error) {
	txType := in.resolvedType()
	if err := in.validate(txType); err != nil {
		return nil, nil, err
	}

	var (
		item   Item
		record Transaction
	)

	err := s.tx.WithRetry(ctx, "apply_transaction", func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&item, in.ItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return fmt.Errorf("load item: %w", err)
		}

		updates := map[string]any{
			"quantity":   gorm.Expr("quantity + ?", in.Change),
			"updated_at": time.Now(),
		}
		if txType == TransactionAdd && in.Change > 0 {
			updates["last_restocked"] = time.Now()
		}

		res := tx.Model(&Item{}).
			Where("id = ? AND quantity + ? >= 0", in.ItemID, in.Change).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update quantity: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientStock
		}

		if err := tx.First(&item, in.ItemID).Error; err != nil {
			return fmt.Errorf("reload item: %w", err)
		}

		record = Transaction{
			ItemID:         item.ID,
			Type:           txType,
			QuantityChange: in.Change,
			QuantityAfter:  item.Quantity,
			Reason:         in.Reason,
			UserID:         in.UserID,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("inventory transaction applied",
		zap.Uint("item_id", item.ID),
		zap.String("item", item.Name),
		zap.String("type", string(txType)),
		zap.Int("change", in.Change),
		zap.Int("quantity_after", item.Quantity),
	)
	return &item, &record, nil
}

// ListTransactions returns an item's transactions, newest first.
func (s *GormStore) ListTransactions(ctx context.Context, itemID uint, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Transaction
	err := s.db(ctx).
		Where("item_id = ?", itemID).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// =============================================================================
// Suppliers
// =============================================================================

// ListSuppliers returns suppliers, optionally filtered by an item-name
// substring, cheapest first.
func (s *GormStore) ListSuppliers(ctx context.Context, itemFilter string) ([]Supplier, error) {
	q := s.db(ctx)
	if strings.TrimSpace(itemFilter) != "" {
		q = q.Where(`LOWER(item_name) LIKE ? ESCAPE '!'`, likePattern(itemFilter))
	}
	var out []Supplier
	if err := q.Order("price_per_unit ASC").Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	return out, nil
}

// SuppliersForItem matches supplier item names against itemName by substring
// in either direction ("Arduino" supplies "Arduino Uno Kits"), cheapest first.
func (s *GormStore) SuppliersForItem(ctx context.Context, itemName string) ([]Supplier, error) {
	direct, err := s.ListSuppliers(ctx, itemName)
	if err != nil {
		return nil, err
	}
	if len(direct) > 0 {
		return direct, nil
	}

	all, err := s.ListSuppliers(ctx, "")
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(itemName))
	var out []Supplier
	for _, sup := range all {
		offered := strings.ToLower(strings.TrimSpace(sup.ItemName))
		if offered != "" && strings.Contains(needle, offered) {
			out = append(out, sup)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PricePerUnit < out[j].PricePerUnit })
	return out, nil
}

// CreateSupplier validates and inserts a supplier.
func (s *GormStore) CreateSupplier(ctx context.Context, sup *Supplier) error {
	if err := sup.Validate(); err != nil {
		return err
	}
	if err := s.db(ctx).Create(sup).Error; err != nil {
		return fmt.Errorf("create supplier: %w", err)
	}
	return nil
}
