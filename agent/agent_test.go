package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BaSui01/stemchat/internal/database"
	"github.com/BaSui01/stemchat/internal/inventory"
)

// newInventory returns a store over a private in-memory database, seeded
// with the starter data set when seed is true.
func newInventory(t *testing.T, seed bool) (*inventory.GormStore, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	cfg := database.DefaultPoolConfig()
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1
	cfg.ConnMaxLifetime = 0
	cfg.ConnMaxIdleTime = 0
	cfg.HealthCheckInterval = 0
	pool, err := database.NewPool(db, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	require.NoError(t, inventory.AutoMigrate(db))
	if seed {
		_, err = inventory.Seed(context.Background(), db, zap.NewNop())
		require.NoError(t, err)
	}
	return inventory.NewGormStore(pool, zap.NewNop()), db
}

var errStoreDown = errors.New("connection refused")

// brokenStore fails every call.
type brokenStore struct{}

func (brokenStore) FindItemsByName(context.Context, string) ([]inventory.Item, error) {
	return nil, errStoreDown
}

func (brokenStore) SearchItems(context.Context, string) ([]inventory.Item, error) {
	return nil, errStoreDown
}

func (brokenStore) ListItems(context.Context) ([]inventory.Item, error) {
	return nil, errStoreDown
}

func (brokenStore) ListLowStock(context.Context) ([]inventory.Item, error) {
	return nil, errStoreDown
}

func (brokenStore) SuppliersForItem(context.Context, string) ([]inventory.Supplier, error) {
	return nil, errStoreDown
}

func (brokenStore) ApplyTransaction(context.Context, inventory.TransactionInput) (*inventory.Item, *inventory.Transaction, error) {
	return nil, nil, errStoreDown
}

func (brokenStore) ListTransactions(context.Context, uint, int) ([]inventory.Transaction, error) {
	return nil, errStoreDown
}

// panicStore blows up on the first read.
type panicStore struct{ brokenStore }

func (panicStore) FindItemsByName(context.Context, string) ([]inventory.Item, error) {
	panic("nil map write")
}

func (panicStore) ListItems(context.Context) ([]inventory.Item, error) {
	panic("nil map write")
}
