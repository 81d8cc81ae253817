package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BaSui01/stemchat/internal/inventory"
)

func runInventory(t *testing.T, store Store, message string) Result {
	t.Helper()
	a := NewInventoryAgent(zap.NewNop())
	return a.Execute(context.Background(), message, RequestContext{UserID: 1, Username: "teacher1"}, store)
}

func TestInventoryAgent_RunningLowOnMarkers(t *testing.T) {
	store, db := newInventory(t, true)

	core, logs := observer.New(zap.InfoLevel)
	a := NewInventoryAgent(zap.New(core))

	msg := "We're running low on markers"
	assert.GreaterOrEqual(t, a.Assess(msg, RequestContext{}), 0.9)

	res := a.Execute(context.Background(), msg, RequestContext{UserID: 2, Username: "teacher1"}, store)
	require.True(t, res.Success, res.Message)
	assert.Contains(t, res.Message, "8 boxes remaining, below threshold of 15")
	assert.Contains(t, res.Message, "EduMart")
	assert.Contains(t, res.Message, "https://edumart.com/markers-dry-erase")

	report, ok := res.Data.(LowStockReport)
	require.True(t, ok)
	assert.Equal(t, "Markers", report.Item.Name)
	require.Len(t, report.Suppliers, 1)

	// advisory only: logged, nothing written
	assert.Equal(t, 1, logs.FilterMessage("low stock reported").Len())
	var n int64
	require.NoError(t, db.Model(&inventory.Transaction{}).Where("item_id = ?", report.Item.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n) // the seed row
}

func TestInventoryAgent_AtThreshold(t *testing.T) {
	store, _ := newInventory(t, true)
	items, err := store.FindItemsByName(context.Background(), "Markers")
	require.NoError(t, err)
	_, _, err = store.ApplyTransaction(context.Background(), inventory.TransactionInput{ItemID: items[0].ID, Change: 7})
	require.NoError(t, err)

	res := runInventory(t, store, "running low on markers?")
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "15 boxes remaining, at threshold of 15")
}

func TestInventoryAgent_StockSufficient(t *testing.T) {
	store, _ := newInventory(t, true)

	res := runInventory(t, store, "are we running low on pencils")
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "stock sufficient")
	report := res.Data.(LowStockReport)
	assert.True(t, report.Sufficient)
	assert.Empty(t, report.Suppliers)
}

func TestInventoryAgent_StockCheck(t *testing.T) {
	store, _ := newInventory(t, true)

	res := runInventory(t, store, "#How many pencils do we have?")
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "Pencils: 150 pieces in stock")
	assert.Contains(t, res.Message, "Storage Room A")

	report := res.Data.(StockReport)
	assert.Equal(t, 150, report.Item.Quantity)
	assert.False(t, report.IsLowStock)
}

func TestInventoryAgent_PartialNameResolves(t *testing.T) {
	store, _ := newInventory(t, true)

	res := runInventory(t, store, "how many microscop do we have")
	require.True(t, res.Success)
	report := res.Data.(StockReport)
	assert.Equal(t, "Microscopes", report.Item.Name)
	assert.Equal(t, 12, report.Item.Quantity)
	assert.True(t, report.IsLowStock)
	assert.False(t, report.IsCritical)
}

func TestInventoryAgent_ShortPluralResolves(t *testing.T) {
	store, _ := newInventory(t, true)

	res := runInventory(t, store, "how many raspberry pis do we have")
	require.True(t, res.Success, res.Message)
	report, ok := res.Data.(StockReport)
	require.True(t, ok, res.Message)
	assert.Equal(t, "Raspberry Pi 4", report.Item.Name)
	assert.Contains(t, res.Message, "Raspberry Pi 4: 10 units in stock")
}

func TestInventoryAgent_CriticalFlag(t *testing.T) {
	store, _ := newInventory(t, true)

	// Jumper Wires: 5 of 10 is not critical, 4 is.
	items, err := store.SearchItems(context.Background(), "jumper")
	require.NoError(t, err)
	_, _, err = store.ApplyTransaction(context.Background(), inventory.TransactionInput{ItemID: items[0].ID, Change: -1})
	require.NoError(t, err)

	res := runInventory(t, store, "how many jumper wires in stock")
	report := res.Data.(StockReport)
	assert.True(t, report.IsCritical)
	assert.Contains(t, res.Message, "Critical")
}

func TestInventoryAgent_NotFoundSuggests(t *testing.T) {
	store, _ := newInventory(t, true)

	res := runInventory(t, store, "how many pencels do we have")
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, `couldn't find "pencel"`)
	assert.Contains(t, res.Message, "Did you mean: Pencils?")

	res = runInventory(t, store, "how many telescopes do we have")
	assert.True(t, res.Success)
	assert.NotContains(t, res.Message, "Did you mean")
}

func TestInventoryAgent_Ambiguous(t *testing.T) {
	store, db := newInventory(t, false)
	require.NoError(t, db.Create(&inventory.Item{Name: "Red Pens", Category: "Stationery", Quantity: 4, Unit: "boxes", MinQuantity: 2}).Error)
	require.NoError(t, db.Create(&inventory.Item{Name: "Tan Pens", Category: "Stationery", Quantity: 9, Unit: "boxes", MinQuantity: 2}).Error)

	res := runInventory(t, store, "how many pens do we have")
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "matches several items")
	assert.Contains(t, res.Message, "Red Pens")
	assert.Contains(t, res.Message, "Tan Pens")
	assert.Contains(t, res.Actions, "clarify")
}

func TestInventoryAgent_SameNameAcrossCategoriesPicksOldest(t *testing.T) {
	store, db := newInventory(t, false)
	first := inventory.Item{Name: "Magnets", Category: "General Supplies", Quantity: 30, Unit: "pieces", MinQuantity: 5}
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Create(&inventory.Item{Name: "Magnets", Category: "Kits & Sets", Quantity: 2, Unit: "kits", MinQuantity: 5}).Error)

	res := runInventory(t, store, "how many magnets do we have")
	require.True(t, res.Success)
	report := res.Data.(StockReport)
	assert.Equal(t, first.ID, report.Item.ID)
}

func TestInventoryAgent_FullInventory(t *testing.T) {
	store, _ := newInventory(t, true)

	res := runInventory(t, store, "Show me all inventory")
	require.True(t, res.Success)
	for _, cat := range []string{"Electronics:", "Lab Equipment:", "Stationery:", "Tools:"} {
		assert.Contains(t, res.Message, cat)
	}
	assert.Contains(t, res.Message, "Markers: 8 boxes ⚠️ low")
	assert.Contains(t, res.Message, "5 item(s) at or below the restock threshold")
}

func TestInventoryAgent_LowStockScanOrdering(t *testing.T) {
	store, _ := newInventory(t, true)

	res := runInventory(t, store, "What's low?")
	require.True(t, res.Success)

	items := res.Data.(map[string]any)["low_stock_items"].([]inventory.Item)
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	assert.Equal(t, []string{"Markers", "Beakers (250ml)", "Safety Goggles", "Jumper Wires", "Microscopes"}, names)
	for i := 1; i < len(items); i++ {
		assert.LessOrEqual(t, items[i-1].Margin(), items[i].Margin())
	}
}

func TestInventoryAgent_Order(t *testing.T) {
	store, db := newInventory(t, true)

	t.Run("cheapest first through reverse supplier match", func(t *testing.T) {
		res := runInventory(t, store, "Can you order more arduino?")
		require.True(t, res.Success)
		opts := res.Data.(OrderOptions)
		require.NotNil(t, opts.Item)
		assert.Equal(t, "Arduino Uno Kits", opts.Item.Name)
		require.Len(t, opts.Suppliers, 2)
		assert.Equal(t, "Amazon Business", opts.Suppliers[0].Name)
		assert.Equal(t, "TechEd Supplies", opts.Suppliers[1].Name)
	})

	t.Run("no supplier on file", func(t *testing.T) {
		res := runInventory(t, store, "order hot glue guns")
		require.True(t, res.Success)
		assert.Contains(t, res.Message, "No supplier on file for Hot Glue Guns")
	})

	t.Run("resolved name with size suffix", func(t *testing.T) {
		res := runInventory(t, store, "buy beakers")
		require.True(t, res.Success)
		assert.Contains(t, res.Message, "Order options for Beakers (250ml)")
		assert.Contains(t, res.Message, "Lab Pro Direct")
	})

	t.Run("unknown item uses raw phrase", func(t *testing.T) {
		require.NoError(t, store.CreateSupplier(context.Background(), &inventory.Supplier{
			Name: "Paper Co", ItemName: "Graph Paper", PricePerUnit: 3.25, LeadTimeDays: 2,
		}))
		res := runInventory(t, store, "order graph paper")
		require.True(t, res.Success)
		opts := res.Data.(OrderOptions)
		assert.Nil(t, opts.Item)
		require.Len(t, opts.Suppliers, 1)
		assert.Equal(t, "Paper Co", opts.Suppliers[0].Name)
	})

	t.Run("no item asks", func(t *testing.T) {
		res := runInventory(t, store, "I want to buy")
		require.True(t, res.Success)
		assert.Contains(t, res.Message, "Which item")
	})

	var n int64
	require.NoError(t, db.Model(&inventory.Transaction{}).Count(&n).Error)
	assert.Equal(t, int64(16), n, "ordering is advisory")
}

func TestInventoryAgent_StoreFailure(t *testing.T) {
	for _, msg := range []string{"how many markers", "what's low?", "order markers", "show all inventory"} {
		res := runInventory(t, brokenStore{}, msg)
		assert.False(t, res.Success, msg)
		assert.Equal(t, "inventory lookup failed", res.Message, msg)
	}
}

func TestInventoryAgent_PanicBecomesFailure(t *testing.T) {
	res := runInventory(t, panicStore{}, "how many markers")
	assert.False(t, res.Success)
	assert.Equal(t, "inventory lookup failed", res.Message)
}

func TestInventoryAgent_Describe(t *testing.T) {
	d := Describe(NewInventoryAgent(nil))
	assert.Equal(t, "InventoryAgent", d.Name)
	assert.NotEmpty(t, d.Description)
	assert.NotEmpty(t, d.Capabilities)
}
