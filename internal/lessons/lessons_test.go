package lessons

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	n, err := Seed(context.Background(), db, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, len(SeedPlans()), n)
	return NewStore(db, zap.NewNop())
}

func TestSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		query     Query
		wantFirst string
		wantLen   int
	}{
		{"by topic", Query{Terms: []string{"circuit"}}, "Build a Simple Circuit", 1},
		{"title beats materials", Query{Terms: []string{"arduino"}}, "Blinking LED with Arduino", 1},
		{"subject filter", Query{Subject: "physics"}, "Build a Simple Circuit", 2},
		{"grade filter", Query{Terms: []string{"led"}, GradeLevel: 6}, "Blinking LED with Arduino", 1},
		{"limit", Query{Limit: 2}, "Build a Simple Circuit", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans, err := store.Search(ctx, tt.query)
			require.NoError(t, err)
			require.Len(t, plans, tt.wantLen)
			assert.Equal(t, tt.wantFirst, plans[0].Title)
		})
	}
}

func TestSearch_NoMatch(t *testing.T) {
	store := newTestStore(t)
	plans, err := store.Search(context.Background(), Query{Terms: []string{"volcano"}})
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestSeed_Idempotent(t *testing.T) {
	store := newTestStore(t)
	n, err := Seed(context.Background(), store.db, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreate_Validates(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Create(context.Background(), &Plan{Title: "x"}))
	require.NoError(t, store.Create(context.Background(), &Plan{Title: "Volcanoes", Subject: "Earth Science", GradeLevel: 5}))

	plans, err := store.Search(context.Background(), Query{Terms: []string{"volcano"}})
	require.NoError(t, err)
	require.Len(t, plans, 1)
}
