package agent

import (
	"regexp"
	"strings"
)

// Intent is the inventory question being asked.
type Intent int

const (
	IntentNone Intent = iota
	IntentOrder
	IntentLowStock
	IntentStockCheck
)

// String 返回意图名称
func (i Intent) String() string {
	switch i {
	case IntentOrder:
		return "order"
	case IntentLowStock:
		return "low_stock"
	case IntentStockCheck:
		return "stock_check"
	default:
		return "none"
	}
}

// Confidence levels per intent group.
const (
	confOrderItem      = 0.85
	confOrderGeneric   = 0.4
	confLowStockItem   = 0.9
	confLowStockAll    = 0.5
	confStockCheckItem = 0.8
	confStockCheckAll  = 0.6
)

type intentGroup struct {
	intent      Intent
	trigger     *regexp.Regexp
	withItem    float64
	withoutItem float64
}

// Groups are tried in order; the first whose trigger appears wins.
var intentGroups = []intentGroup{
	{
		intent:      IntentOrder,
		trigger:     regexp.MustCompile(`\b(re)?order(s|ed|ing)?\b|\bbuy(ing)?\b|\bpurchas(e|ing)\b|\bsuppliers?\b|\bget more\b`),
		withItem:    confOrderItem,
		withoutItem: confOrderGeneric,
	},
	{
		intent:      IntentLowStock,
		trigger:     regexp.MustCompile(`running low|almost out|short on|low on|need more|\brestock\w*|\bout of\b|low stock|what'?s low|what is low`),
		withItem:    confLowStockItem,
		withoutItem: confLowStockAll,
	},
	{
		intent:      IntentStockCheck,
		trigger:     regexp.MustCompile(`how many|check stock|inventory for|show me|stock of|in stock|stock levels?|show all|\blist\b|\binventory\b`),
		withItem:    confStockCheckItem,
		withoutItem: confStockCheckAll,
	},
}

var (
	lessonTerms         = []string{"lesson", "curriculum", "plan", "worksheet", "activity", "grade"}
	strongInventoryCues = []string{"inventory", "stock", "supplies", "materials", "order", "restock"}
)

// Classification is the pure, store-free reading of a message.
type Classification struct {
	Intent     Intent
	Item       string // normalized candidate phrase; empty for item-less queries
	WantAll    bool
	Confidence float64
}

// HasItem reports whether an item phrase was extracted.
func (c Classification) HasItem() bool { return c.Item != "" }

// Classify maps a chat message onto an inventory intent.
func Classify(message string) Classification {
	msg := normalizeMessage(message)
	if msg == "" || isLessonRequest(msg) {
		return Classification{}
	}

	for _, g := range intentGroups {
		loc := g.trigger.FindStringIndex(msg)
		if loc == nil {
			continue
		}

		p := extractItem(msg, loc[0], loc[1])
		c := Classification{Intent: g.intent, Item: p.text, WantAll: p.wantAll}
		if c.HasItem() {
			c.Confidence = g.withItem
		} else {
			c.Confidence = g.withoutItem
		}
		return c
	}
	return Classification{}
}

// isLessonRequest is true for lesson-planning talk that carries no strong
// inventory cue.
func isLessonRequest(msg string) bool {
	if !containsAny(msg, lessonTerms) {
		return false
	}
	return !containsAny(msg, strongInventoryCues)
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
