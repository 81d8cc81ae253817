package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/stemchat/internal/cache"
)

// gatedRepo parks ListLowStock after it has read the database, so a write
// can land between the read and the cache fill.
type gatedRepo struct {
	Repository
	loaded  chan struct{}
	release chan struct{}
}

func (g *gatedRepo) ListLowStock(ctx context.Context) ([]Item, error) {
	items, err := g.Repository.ListLowStock(ctx)
	if g.loaded != nil {
		g.loaded <- struct{}{}
		<-g.release
	}
	return items, err
}

type countingRepo struct {
	Repository
	listItems atomic.Int32
	lowStock  atomic.Int32
}

func (c *countingRepo) ListItems(ctx context.Context) ([]Item, error) {
	c.listItems.Add(1)
	return c.Repository.ListItems(ctx)
}

func (c *countingRepo) ListLowStock(ctx context.Context) ([]Item, error) {
	c.lowStock.Add(1)
	return c.Repository.ListLowStock(ctx)
}

func newCachedTestStore(t *testing.T) (*CachedStore, *countingRepo, *miniredis.Miniredis) {
	t.Helper()

	store, db := newTestStore(t)
	_, err := Seed(context.Background(), db, nil)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	cfg := cache.DefaultConfig()
	cfg.Addr = mr.Addr()
	mgr, err := cache.NewManager(cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	repo := &countingRepo{Repository: store}
	return NewCachedStore(repo, mgr, zap.NewNop()), repo, mr
}

func TestCachedStore_ServesRepeatReadsFromRedis(t *testing.T) {
	cached, repo, mr := newCachedTestStore(t)
	ctx := context.Background()

	first, err := cached.ListItems(ctx)
	require.NoError(t, err)
	second, err := cached.ListItems(ctx)
	require.NoError(t, err)

	assert.Len(t, first, 16)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), repo.listItems.Load())
	assert.True(t, mr.Exists("stemchat:inventory:v0:items"))
}

func TestCachedStore_WriteInvalidates(t *testing.T) {
	cached, repo, mr := newCachedTestStore(t)
	ctx := context.Background()

	low, err := cached.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 5)
	_, err = cached.ListItems(ctx)
	require.NoError(t, err)

	markers := low[0]
	for _, it := range low {
		if it.Name == "Markers" {
			markers = it
		}
	}
	_, _, err = cached.ApplyTransaction(ctx, TransactionInput{ItemID: markers.ID, Change: 20, Reason: "delivery"})
	require.NoError(t, err)
	assert.False(t, mr.Exists("stemchat:inventory:v0:items"))
	assert.False(t, mr.Exists("stemchat:inventory:v0:low_stock"))
	version, err := mr.Get("stemchat:inventory_version")
	require.NoError(t, err)
	assert.Equal(t, "1", version)

	low, err = cached.ListLowStock(ctx)
	require.NoError(t, err)
	assert.Len(t, low, 4)
	assert.Equal(t, int32(2), repo.lowStock.Load())
}

func TestCachedStore_FallsBackWhenRedisDown(t *testing.T) {
	cached, repo, mr := newCachedTestStore(t)
	mr.Close()

	items, err := cached.ListItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 16)
	assert.Equal(t, int32(1), repo.listItems.Load())
}

func TestCachedStore_SuppliersCachedPerItem(t *testing.T) {
	cached, _, mr := newCachedTestStore(t)
	ctx := context.Background()

	sups, err := cached.SuppliersForItem(ctx, "Arduino Uno Kits")
	require.NoError(t, err)
	require.Len(t, sups, 2)
	assert.True(t, mr.Exists("stemchat:inventory:v0:suppliers:for:arduino uno kits"))

	require.NoError(t, cached.CreateSupplier(ctx, &Supplier{Name: "Local Shop", ItemName: "Arduino", PricePerUnit: 30, LeadTimeDays: 1}))
	sups, err = cached.SuppliersForItem(ctx, "Arduino Uno Kits")
	require.NoError(t, err)
	require.Len(t, sups, 3)
	assert.Equal(t, "Local Shop", sups[0].Name)
}

func TestCachedStore_ConcurrentMissesShareLoad(t *testing.T) {
	cached, repo, _ := newCachedTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := cached.ListItems(ctx)
			assert.NoError(t, err)
			assert.Len(t, items, 16)
		}()
	}
	wg.Wait()

	// singleflight collapses overlapping misses; late arrivals hit redis.
	assert.LessOrEqual(t, repo.listItems.Load(), int32(16))
	assert.GreaterOrEqual(t, repo.listItems.Load(), int32(1))
}

func TestCachedStore_WriteDuringLoadIsNotCached(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	_, err := Seed(ctx, db, nil)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	cfg := cache.DefaultConfig()
	cfg.Addr = mr.Addr()
	mgr, err := cache.NewManager(cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	gated := &gatedRepo{Repository: store, loaded: make(chan struct{}), release: make(chan struct{})}
	cached := NewCachedStore(gated, mgr, zap.NewNop())

	markers, err := store.FindItemsByName(ctx, "Markers")
	require.NoError(t, err)
	require.Len(t, markers, 1)
	require.Equal(t, 8, markers[0].Quantity)

	type result struct {
		items []Item
		err   error
	}
	done := make(chan result, 1)
	go func() {
		items, err := cached.ListLowStock(ctx)
		done <- result{items, err}
	}()
	<-gated.loaded

	updated, _, err := cached.ApplyTransaction(ctx, TransactionInput{ItemID: markers[0].ID, Change: 100, Reason: "delivery"})
	require.NoError(t, err)
	require.Equal(t, 108, updated.Quantity)

	gated.loaded = nil
	close(gated.release)
	first := <-done
	require.NoError(t, first.err)

	low, err := cached.ListLowStock(ctx)
	require.NoError(t, err)
	for _, it := range low {
		assert.NotEqual(t, "Markers", it.Name, "restocked item served from cache with quantity %d", it.Quantity)
	}
	assert.False(t, mr.Exists("stemchat:inventory:v0:low_stock"))
}
