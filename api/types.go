package api

import (
	"time"

	"github.com/BaSui01/stemchat/internal/inventory"
)

// =============================================================================
// 认证
// =============================================================================

// Credentials is the body of POST /api/signup and POST /api/login.
type Credentials struct {
	Username string `json:"username" example:"teacher1"`
	Password string `json:"password" example:"password123"`
}

// UserInfo 用户公开信息
type UserInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// TokenResponse 登录/注册成功的响应
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type" example:"bearer"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserInfo  `json:"user"`
}

// =============================================================================
// 聊天消息
// =============================================================================

// MessageRequest is the body of POST /api/messages and PUT /api/messages/{id}.
type MessageRequest struct {
	Content string `json:"content" example:"#how many markers do we have?"`
}

// DeletedResponse lists the ids removed by a delete.
type DeletedResponse struct {
	Deleted []uint `json:"deleted"`
}

// ClearedResponse 清空消息的结果
type ClearedResponse struct {
	Deleted int64 `json:"deleted"`
}

// =============================================================================
// 库存
// =============================================================================

// ItemView is an inventory item with its derived stock flags.
type ItemView struct {
	inventory.Item
	IsLowStock bool `json:"is_low_stock"`
	IsCritical bool `json:"is_critical"`
}

// NewItemView 计算派生字段
func NewItemView(item inventory.Item) ItemView {
	return ItemView{Item: item, IsLowStock: item.IsLowStock(), IsCritical: item.IsCritical()}
}

// LowStockView is one row of GET /api/inventory/low-stock.
type LowStockView struct {
	ItemView
	Deficit int `json:"deficit"`
}

// CreateItemRequest 新建物料
type CreateItemRequest struct {
	Name        string `json:"name" example:"Beakers (250ml)"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity"`
	Unit        string `json:"unit,omitempty" example:"pieces"`
	MinQuantity int    `json:"min_quantity"`
	Location    string `json:"location,omitempty"`
}

// Item converts the request to a store model.
func (r CreateItemRequest) Item() *inventory.Item {
	return &inventory.Item{
		Name:        r.Name,
		Category:    r.Category,
		Description: r.Description,
		Quantity:    r.Quantity,
		Unit:        r.Unit,
		MinQuantity: r.MinQuantity,
		Location:    r.Location,
	}
}

// UpdateQuantityRequest is the body of PUT /api/inventory/{id}.
type UpdateQuantityRequest struct {
	QuantityChange  int    `json:"quantity_change" example:"-5"`
	Reason          string `json:"reason,omitempty"`
	TransactionType string `json:"transaction_type,omitempty" example:"remove"`
}

// TransactionResponse 数量变更的结果
type TransactionResponse struct {
	Item        ItemView              `json:"item"`
	Transaction inventory.Transaction `json:"transaction"`
}

// CreateSupplierRequest 新建供应商
type CreateSupplierRequest struct {
	Name         string  `json:"name"`
	ItemName     string  `json:"item_name"`
	ContactInfo  string  `json:"contact_info,omitempty"`
	OrderURL     string  `json:"order_url,omitempty"`
	PricePerUnit float64 `json:"price_per_unit"`
	LeadTimeDays int     `json:"lead_time_days"`
	Notes        string  `json:"notes,omitempty"`
}

// Supplier converts the request to a store model.
func (r CreateSupplierRequest) Supplier() *inventory.Supplier {
	return &inventory.Supplier{
		Name:         r.Name,
		ItemName:     r.ItemName,
		ContactInfo:  r.ContactInfo,
		OrderURL:     r.OrderURL,
		PricePerUnit: r.PricePerUnit,
		LeadTimeDays: r.LeadTimeDays,
		Notes:        r.Notes,
	}
}
