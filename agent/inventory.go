package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/stemchat/internal/inventory"
)

const (
	maxSuppliersShown  = 3
	msgLookupFailed    = "inventory lookup failed"
	inventoryAgentName = "InventoryAgent"
)

// InventoryAgent answers stock, low-stock and ordering questions. It never
// changes quantities; restocking goes through the admin API.
type InventoryAgent struct {
	logger *zap.Logger
}

// NewInventoryAgent 创建库存 Agent
func NewInventoryAgent(logger *zap.Logger) *InventoryAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryAgent{logger: logger.With(zap.String("agent", inventoryAgentName))}
}

func (a *InventoryAgent) Name() string { return inventoryAgentName }

func (a *InventoryAgent) Description() string {
	return "Manages inventory tracking, stock levels, and supply chain for STEM center materials"
}

func (a *InventoryAgent) Capabilities() []string {
	return []string{
		"Check stock levels for an item",
		"List the full inventory by category",
		"Report items at or below their restock threshold",
		"Find suppliers and prices for reordering",
	}
}

// Assess scores message against the inventory intent groups.
func (a *InventoryAgent) Assess(message string, _ RequestContext) float64 {
	return Classify(message).Confidence
}

// Execute answers the classified question from the store.
func (a *InventoryAgent) Execute(ctx context.Context, message string, rc RequestContext, store Store) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("inventory agent panicked", zap.Any("panic", r))
			res = failure(msgLookupFailed)
		}
	}()

	c := Classify(message)
	var err error
	switch c.Intent {
	case IntentStockCheck:
		res, err = a.stockCheck(ctx, c, store)
	case IntentLowStock:
		res, err = a.lowStock(ctx, c, rc, store)
	case IntentOrder:
		res, err = a.order(ctx, c, store)
	default:
		return failure("I can help with stock levels, low stock and reordering. Try \"how many markers do we have?\"")
	}
	if err != nil {
		a.logger.Error("inventory lookup failed",
			zap.String("intent", c.Intent.String()),
			zap.String("item", c.Item),
			zap.Error(err),
		)
		return failure(msgLookupFailed)
	}
	return res
}

// =============================================================================
// 📦 Stock check
// =============================================================================

// StockReport is the Data payload of a single-item stock check.
type StockReport struct {
	Item       inventory.Item `json:"item"`
	IsLowStock bool           `json:"is_low_stock"`
	IsCritical bool           `json:"is_critical"`
}

func (a *InventoryAgent) stockCheck(ctx context.Context, c Classification, store Store) (Result, error) {
	if !c.HasItem() {
		return a.fullInventory(ctx, store)
	}

	res, err := resolveItem(ctx, store, c.Item)
	if err != nil {
		return Result{}, err
	}
	if !res.found() {
		return unresolved(c.Item, res, "stock_check"), nil
	}

	item := *res.Item
	var b strings.Builder
	fmt.Fprintf(&b, "📦 %s: %d %s in stock\n", item.Name, item.Quantity, item.Unit)
	fmt.Fprintf(&b, "Category: %s\n", item.Category)
	if item.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", item.Location)
	}
	fmt.Fprintf(&b, "Restock threshold: %d %s", item.MinQuantity, item.Unit)
	switch {
	case item.IsCritical():
		b.WriteString("\n🔴 Critical: less than half the threshold remains")
	case item.IsLowStock():
		b.WriteString("\n⚠️ Low stock")
	}

	return Result{
		Success: true,
		Message: b.String(),
		Data: StockReport{
			Item:       item,
			IsLowStock: item.IsLowStock(),
			IsCritical: item.IsCritical(),
		},
		Actions: []string{"stock_check"},
	}, nil
}

func (a *InventoryAgent) fullInventory(ctx context.Context, store Store) (Result, error) {
	items, err := store.ListItems(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list items: %w", err)
	}
	if len(items) == 0 {
		return Result{Success: true, Message: "Inventory is empty.", Actions: []string{"full_inventory_check"}}, nil
	}

	byCategory := make(map[string][]inventory.Item)
	var categories []string
	for _, it := range items {
		if _, ok := byCategory[it.Category]; !ok {
			categories = append(categories, it.Category)
		}
		byCategory[it.Category] = append(byCategory[it.Category], it)
	}
	sort.Strings(categories)

	lowCount := 0
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Inventory (%d items)", len(items))
	for _, cat := range categories {
		fmt.Fprintf(&b, "\n\n%s:", cat)
		for _, it := range byCategory[cat] {
			fmt.Fprintf(&b, "\n• %s: %d %s", it.Name, it.Quantity, it.Unit)
			if it.IsLowStock() {
				lowCount++
				b.WriteString(" ⚠️ low")
			}
		}
	}
	if lowCount > 0 {
		fmt.Fprintf(&b, "\n\n%d item(s) at or below the restock threshold.", lowCount)
	}

	return Result{
		Success: true,
		Message: b.String(),
		Data:    map[string]any{"total_items": len(items), "low_stock_count": lowCount, "items": items},
		Actions: []string{"full_inventory_check"},
	}, nil
}

// =============================================================================
// ⚠️ Low stock
// =============================================================================

// LowStockReport is the Data payload of a single-item low-stock query.
type LowStockReport struct {
	Item       inventory.Item       `json:"item"`
	Sufficient bool                 `json:"sufficient"`
	Suppliers  []inventory.Supplier `json:"suppliers,omitempty"`
}

func (a *InventoryAgent) lowStock(ctx context.Context, c Classification, rc RequestContext, store Store) (Result, error) {
	if !c.HasItem() {
		return a.lowStockScan(ctx, store)
	}

	res, err := resolveItem(ctx, store, c.Item)
	if err != nil {
		return Result{}, err
	}
	if !res.found() {
		return unresolved(c.Item, res, "low_stock_check"), nil
	}
	item := *res.Item

	if !item.IsLowStock() {
		return Result{
			Success: true,
			Message: fmt.Sprintf("✅ %s stock sufficient: %d %s on hand, threshold is %d.",
				item.Name, item.Quantity, item.Unit, item.MinQuantity),
			Data:    LowStockReport{Item: item, Sufficient: true},
			Actions: []string{"stock_check"},
		}, nil
	}

	// A low-stock report is advisory: it is logged, never written as a
	// transaction.
	a.logger.Info("low stock reported",
		zap.Uint("item_id", item.ID),
		zap.String("item", item.Name),
		zap.Int("quantity", item.Quantity),
		zap.Int("min_quantity", item.MinQuantity),
		zap.Uint("user_id", rc.UserID),
		zap.String("username", rc.Username),
	)

	suppliers, err := store.SuppliersForItem(ctx, item.Name)
	if err != nil {
		return Result{}, fmt.Errorf("suppliers for %q: %w", item.Name, err)
	}
	suppliers = cheapest(suppliers, maxSuppliersShown)

	relation := "below"
	if item.Quantity == item.MinQuantity {
		relation = "at"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ %s: %d %s remaining, %s threshold of %d.",
		item.Name, item.Quantity, item.Unit, relation, item.MinQuantity)
	if item.IsCritical() {
		b.WriteString(" 🔴 Critical.")
	}
	actions := []string{"stock_check", "supplier_lookup"}
	if len(suppliers) == 0 {
		fmt.Fprintf(&b, "\nNo supplier on file for %s.", item.Name)
	} else {
		b.WriteString("\n\nSuppliers:")
		writeSuppliers(&b, suppliers)
		actions = append(actions, "order:"+suppliers[0].Name)
	}

	return Result{
		Success: true,
		Message: b.String(),
		Data:    LowStockReport{Item: item, Suppliers: suppliers},
		Actions: actions,
	}, nil
}

func (a *InventoryAgent) lowStockScan(ctx context.Context, store Store) (Result, error) {
	items, err := store.ListLowStock(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list low stock: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Margin() < items[j].Margin() })

	if len(items) == 0 {
		return Result{
			Success: true,
			Message: "✅ All inventory items are adequately stocked.",
			Data:    map[string]any{"low_stock_items": []inventory.Item{}},
			Actions: []string{"low_stock_check"},
		}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ %d item(s) need restocking:", len(items))
	for _, it := range items {
		fmt.Fprintf(&b, "\n• %s: %d %s (threshold %d)", it.Name, it.Quantity, it.Unit, it.MinQuantity)
		if it.IsCritical() {
			b.WriteString(" 🔴")
		}
	}

	return Result{
		Success: true,
		Message: b.String(),
		Data:    map[string]any{"low_stock_items": items},
		Actions: []string{"low_stock_check"},
	}, nil
}

// =============================================================================
// 🛒 Order
// =============================================================================

// OrderOptions is the Data payload of an order request.
type OrderOptions struct {
	Query     string               `json:"query"`
	Item      *inventory.Item      `json:"item,omitempty"`
	Suppliers []inventory.Supplier `json:"suppliers"`
}

func (a *InventoryAgent) order(ctx context.Context, c Classification, store Store) (Result, error) {
	if !c.HasItem() {
		return Result{
			Success: true,
			Message: "Which item would you like to order? For example: \"order more markers\".",
			Actions: []string{"order_request"},
		}, nil
	}

	res, err := resolveItem(ctx, store, c.Item)
	if err != nil {
		return Result{}, err
	}
	if len(res.Ambiguous) > 0 {
		return unresolved(c.Item, res, "order_request"), nil
	}

	name := c.Item
	if res.found() {
		name = res.Item.Name
	}

	suppliers, err := store.SuppliersForItem(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("suppliers for %q: %w", name, err)
	}
	sort.SliceStable(suppliers, func(i, j int) bool { return suppliers[i].PricePerUnit < suppliers[j].PricePerUnit })

	data := OrderOptions{Query: c.Item, Item: res.Item, Suppliers: suppliers}
	if len(suppliers) == 0 {
		return Result{
			Success: true,
			Message: fmt.Sprintf("No supplier on file for %s.", name),
			Data:    data,
			Actions: []string{"supplier_not_found"},
		}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🛒 Order options for %s:", name)
	writeSuppliers(&b, suppliers)
	if res.found() {
		fmt.Fprintf(&b, "\n\nCurrently %d %s in stock (threshold %d).", res.Item.Quantity, res.Item.Unit, res.Item.MinQuantity)
	}

	return Result{
		Success: true,
		Message: b.String(),
		Data:    data,
		Actions: []string{"supplier_lookup", "order_request"},
	}, nil
}

// =============================================================================
// helpers
// =============================================================================

func cheapest(suppliers []inventory.Supplier, n int) []inventory.Supplier {
	out := append([]inventory.Supplier(nil), suppliers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PricePerUnit < out[j].PricePerUnit })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func writeSuppliers(b *strings.Builder, suppliers []inventory.Supplier) {
	for i, s := range suppliers {
		fmt.Fprintf(b, "\n%d. %s: $%.2f/unit, %d day lead time", i+1, s.Name, s.PricePerUnit, s.LeadTimeDays)
		if s.OrderURL != "" {
			fmt.Fprintf(b, "\n   %s", s.OrderURL)
		}
	}
}

// unresolved answers not-found and ambiguous lookups. Both are successful
// replies: the bot asks rather than fails.
func unresolved(query string, res resolution, action string) Result {
	if len(res.Ambiguous) > 0 {
		names := make([]string, len(res.Ambiguous))
		for i, it := range res.Ambiguous {
			names[i] = it.Name
		}
		return Result{
			Success: true,
			Message: fmt.Sprintf("\"%s\" matches several items: %s. Which one do you mean?", query, strings.Join(names, ", ")),
			Data:    map[string]any{"query": query, "candidates": names},
			Actions: []string{action, "clarify"},
		}
	}

	msg := fmt.Sprintf("I couldn't find \"%s\" in the inventory.", query)
	if len(res.Suggestions) > 0 {
		msg += " Did you mean: " + strings.Join(res.Suggestions, ", ") + "?"
	}
	return Result{
		Success: true,
		Message: msg,
		Data:    map[string]any{"query": query, "suggestions": res.Suggestions},
		Actions: []string{action, "item_not_found"},
	}
}
