package inventory

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/stemchat/internal/cache"
)

// Repository is the full inventory surface. GormStore and CachedStore both
// satisfy it.
type Repository interface {
	GetItem(ctx context.Context, id uint) (*Item, error)
	FindItemsByName(ctx context.Context, name string) ([]Item, error)
	SearchItems(ctx context.Context, fragment string) ([]Item, error)
	ListItems(ctx context.Context) ([]Item, error)
	ListLowStock(ctx context.Context) ([]Item, error)
	CreateItem(ctx context.Context, item *Item, userID *uint) error
	ApplyTransaction(ctx context.Context, in TransactionInput) (*Item, *Transaction, error)
	ListTransactions(ctx context.Context, itemID uint, limit int) ([]Transaction, error)
	ListSuppliers(ctx context.Context, itemFilter string) ([]Supplier, error)
	SuppliersForItem(ctx context.Context, itemName string) ([]Supplier, error)
	CreateSupplier(ctx context.Context, sup *Supplier) error
}

var (
	_ Repository = (*GormStore)(nil)
	_ Repository = (*CachedStore)(nil)
)

const (
	cacheNamespace   = "inventory:"
	keyItems         = "items"
	keyLowStock      = "low_stock"
	keySupplierPrefx = "suppliers:"

	// keyVersion lives outside the namespace so invalidation never deletes it.
	keyVersion = "inventory_version"
)

// CachedStore fronts a Repository with redis for the read-heavy list
// queries. Concurrent misses on one key share a single backend load.
//
// Entries are stored under the current write version
// ("inventory:v3:items"). A write bumps the version before dropping the
// namespace, so a load that raced the write can only fill a key no reader
// asks for again. The local epoch covers a failed version bump on this
// instance.
type CachedStore struct {
	Repository
	cache  *cache.Manager
	group  singleflight.Group
	epoch  atomic.Uint64
	logger *zap.Logger
}

// NewCachedStore wraps next with the given cache.
func NewCachedStore(next Repository, c *cache.Manager, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{
		Repository: next,
		cache:      c,
		logger:     logger.With(zap.String("component", "inventory_cache")),
	}
}

// loadThrough reads key from redis, falling back to load on a miss or on any
// cache failure. Cache errors never fail the read.
func loadThrough[T any](ctx context.Context, s *CachedStore, name string, load func() (T, error)) (T, error) {
	epoch := s.epoch.Load()
	version, err := s.cache.Counter(ctx, keyVersion)
	if err != nil {
		s.logger.Warn("cache version unavailable, using database", zap.Error(err))
		return load()
	}
	key := versionedKey(version, name)

	var cached T
	err = s.cache.GetJSON(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !cache.IsCacheMiss(err) {
		s.logger.Warn("cache read failed, using database", zap.String("key", key), zap.Error(err))
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		fresh, err := load()
		if err != nil {
			return fresh, err
		}
		if s.epoch.Load() != epoch {
			// 加载期间发生了写入，结果可能已过期
			return fresh, nil
		}
		if err := s.cache.SetJSON(ctx, key, fresh, 0); err != nil {
			s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func versionedKey(version int64, name string) string {
	return cacheNamespace + "v" + strconv.FormatInt(version, 10) + ":" + name
}

// ListItems 带缓存
func (s *CachedStore) ListItems(ctx context.Context) ([]Item, error) {
	return loadThrough(ctx, s, keyItems, func() ([]Item, error) {
		return s.Repository.ListItems(ctx)
	})
}

// ListLowStock 带缓存
func (s *CachedStore) ListLowStock(ctx context.Context) ([]Item, error) {
	return loadThrough(ctx, s, keyLowStock, func() ([]Item, error) {
		return s.Repository.ListLowStock(ctx)
	})
}

// SuppliersForItem 带缓存
func (s *CachedStore) SuppliersForItem(ctx context.Context, itemName string) ([]Supplier, error) {
	key := keySupplierPrefx + "for:" + strings.ToLower(strings.TrimSpace(itemName))
	return loadThrough(ctx, s, key, func() ([]Supplier, error) {
		return s.Repository.SuppliersForItem(ctx, itemName)
	})
}

// ListSuppliers 带缓存
func (s *CachedStore) ListSuppliers(ctx context.Context, itemFilter string) ([]Supplier, error) {
	key := keySupplierPrefx + "list:" + strings.ToLower(strings.TrimSpace(itemFilter))
	return loadThrough(ctx, s, key, func() ([]Supplier, error) {
		return s.Repository.ListSuppliers(ctx, itemFilter)
	})
}

// CreateItem writes through and invalidates.
func (s *CachedStore) CreateItem(ctx context.Context, item *Item, userID *uint) error {
	if err := s.Repository.CreateItem(ctx, item, userID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ApplyTransaction writes through and invalidates.
func (s *CachedStore) ApplyTransaction(ctx context.Context, in TransactionInput) (*Item, *Transaction, error) {
	item, record, err := s.Repository.ApplyTransaction(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	s.invalidate(ctx)
	return item, record, nil
}

// CreateSupplier writes through and invalidates.
func (s *CachedStore) CreateSupplier(ctx context.Context, sup *Supplier) error {
	if err := s.Repository.CreateSupplier(ctx, sup); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// invalidate bumps the version first; the prefix delete only reclaims memory.
func (s *CachedStore) invalidate(ctx context.Context) {
	s.epoch.Add(1)
	if _, err := s.cache.Incr(ctx, keyVersion); err != nil {
		s.logger.Warn("cache version bump failed", zap.Error(err))
	}
	if err := s.cache.DeletePrefix(ctx, cacheNamespace); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}
