package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

type counter struct{ hits, misses int }

func (c *counter) observe(hit bool) {
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager, *counter) {
	t.Helper()

	mr := miniredis.RunT(t)
	c := &counter{}

	manager, err := NewManager(Config{
		Addr:       mr.Addr(),
		KeyPrefix:  "test:",
		DefaultTTL: time.Minute,
	}, zap.NewNop(), c.observe)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager, c
}

type payload struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

func TestNewManager_Unreachable(t *testing.T) {
	_, err := NewManager(Config{Addr: "127.0.0.1:1"}, nil, nil)
	assert.Error(t, err)
}

func TestManager_JSONRoundTripAndPrefix(t *testing.T) {
	mr, manager, c := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.SetJSON(ctx, "items:all", payload{Name: "Markers", Quantity: 8}, 0))
	assert.True(t, mr.Exists("test:items:all"))
	assert.Equal(t, time.Minute, mr.TTL("test:items:all"))

	var got payload
	require.NoError(t, manager.GetJSON(ctx, "items:all", &got))
	assert.Equal(t, payload{Name: "Markers", Quantity: 8}, got)
	assert.Equal(t, 1, c.hits)
}

func TestManager_Miss(t *testing.T) {
	_, manager, c := setupTestRedis(t)

	var got payload
	err := manager.GetJSON(context.Background(), "nope", &got)
	assert.True(t, IsCacheMiss(err))
	assert.Equal(t, 1, c.misses)
}

func TestManager_TTLExpiry(t *testing.T) {
	mr, manager, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.SetJSON(ctx, "k", payload{Name: "x"}, 10*time.Second))
	mr.FastForward(11 * time.Second)

	var got payload
	assert.ErrorIs(t, manager.GetJSON(ctx, "k", &got), ErrCacheMiss)
}

func TestManager_DeleteAndDeletePrefix(t *testing.T) {
	mr, manager, _ := setupTestRedis(t)
	ctx := context.Background()

	for _, k := range []string{"suppliers:marker", "suppliers:arduino", "items:all"} {
		require.NoError(t, manager.SetJSON(ctx, k, payload{Name: k}, 0))
	}

	require.NoError(t, manager.DeletePrefix(ctx, "suppliers:"))
	assert.False(t, mr.Exists("test:suppliers:marker"))
	assert.False(t, mr.Exists("test:suppliers:arduino"))
	assert.True(t, mr.Exists("test:items:all"))

	require.NoError(t, manager.Delete(ctx, "items:all"))
	assert.False(t, mr.Exists("test:items:all"))
	require.NoError(t, manager.Delete(ctx))
}

func TestManager_Counter(t *testing.T) {
	mr, manager, _ := setupTestRedis(t)
	ctx := context.Background()

	n, err := manager.Counter(ctx, "version")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = manager.Incr(ctx, "version")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = manager.Incr(ctx, "version")
	require.NoError(t, err)

	n, err = manager.Counter(ctx, "version")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	got, err := mr.Get("test:version")
	require.NoError(t, err)
	assert.Equal(t, "2", got)

	require.NoError(t, manager.SetJSON(ctx, "json", payload{Name: "x"}, 0))
	_, err = manager.Counter(ctx, "json")
	assert.Error(t, err)
}

func TestManager_Closed(t *testing.T) {
	_, manager, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	assert.ErrorIs(t, manager.Ping(ctx), ErrClosed)
	assert.ErrorIs(t, manager.SetJSON(ctx, "k", 1, 0), ErrClosed)
	var v int
	assert.ErrorIs(t, manager.GetJSON(ctx, "k", &v), ErrClosed)
	_, err := manager.Incr(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
}
