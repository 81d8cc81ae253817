package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/stemchat/api"
	"github.com/BaSui01/stemchat/internal/events"
	"github.com/BaSui01/stemchat/internal/inventory"
	"github.com/BaSui01/stemchat/internal/metrics"
	"github.com/BaSui01/stemchat/types"
)

// =============================================================================
// 📦 库存 Handler
// =============================================================================

const defaultTransactionLimit = 50

// InventoryStore is the slice of inventory.Repository the handler needs.
type InventoryStore interface {
	GetItem(ctx context.Context, id uint) (*inventory.Item, error)
	ListItems(ctx context.Context) ([]inventory.Item, error)
	ListLowStock(ctx context.Context) ([]inventory.Item, error)
	CreateItem(ctx context.Context, item *inventory.Item, userID *uint) error
	ApplyTransaction(ctx context.Context, in inventory.TransactionInput) (*inventory.Item, *inventory.Transaction, error)
	ListTransactions(ctx context.Context, itemID uint, limit int) ([]inventory.Transaction, error)
	ListSuppliers(ctx context.Context, itemFilter string) ([]inventory.Supplier, error)
	CreateSupplier(ctx context.Context, sup *inventory.Supplier) error
}

// InventoryHandler 物料、事务与供应商接口
type InventoryHandler struct {
	store     InventoryStore
	publisher events.Publisher
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// NewInventoryHandler 创建库存处理器。publisher 与 collector 可为 nil。
func NewInventoryHandler(store InventoryStore, publisher events.Publisher, collector *metrics.Collector, logger *zap.Logger) *InventoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &InventoryHandler{
		store:     store,
		publisher: publisher,
		metrics:   collector,
		logger:    logger.With(zap.String("handler", "inventory")),
	}
}

// HandleListItems 处理 GET /api/inventory
// @Summary 全部物料及库存标记
// @Tags 库存
// @Produce json
// @Success 200 {object} Response{data=[]api.ItemView}
// @Router /api/inventory [get]
func (h *InventoryHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListItems(r.Context())
	if err != nil {
		WriteError(w, inventoryError(err), h.logger)
		return
	}
	out := make([]api.ItemView, 0, len(items))
	for _, it := range items {
		out = append(out, api.NewItemView(it))
	}
	WriteSuccess(w, out)
}

// HandleLowStock 处理 GET /api/inventory/low-stock，按紧急程度排序
func (h *InventoryHandler) HandleLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListLowStock(r.Context())
	if err != nil {
		WriteError(w, inventoryError(err), h.logger)
		return
	}
	out := make([]api.LowStockView, 0, len(items))
	for _, it := range items {
		out = append(out, api.LowStockView{ItemView: api.NewItemView(it), Deficit: it.Deficit()})
	}
	WriteSuccess(w, out)
}

// HandleCreateItem 处理 POST /api/inventory
// @Summary 新建物料；分类为空时按名称推断
// @Tags 库存
// @Accept json
// @Produce json
// @Param request body api.CreateItemRequest true "物料"
// @Success 201 {object} Response{data=api.ItemView}
// @Failure 409 {object} Response "同分类下重名"
// @Router /api/inventory [post]
func (h *InventoryHandler) HandleCreateItem(w http.ResponseWriter, r *http.Request) {
	uid, _, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	var req api.CreateItemRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	item := req.Item()
	if err := h.store.CreateItem(r.Context(), item, &uid); err != nil {
		WriteError(w, inventoryError(err), h.logger)
		return
	}

	h.publish(r.Context(), events.New(events.TypeInventoryItemCreated, itemKey(item.ID), item))
	WriteStatus(w, http.StatusCreated, api.NewItemView(*item))
}

// HandleUpdateQuantity 处理 PUT /api/inventory/{id}
// @Summary 调整数量并记录事务
// @Tags 库存
// @Accept json
// @Produce json
// @Param id path int true "物料 ID"
// @Param request body api.UpdateQuantityRequest true "数量变化"
// @Success 200 {object} Response{data=api.TransactionResponse}
// @Failure 404 {object} Response
// @Failure 409 {object} Response "库存不足"
// @Router /api/inventory/{id} [put]
func (h *InventoryHandler) HandleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	uid, _, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := PathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req api.UpdateQuantityRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	txType := inventory.TransactionType(strings.ToLower(strings.TrimSpace(req.TransactionType)))
	if txType != "" && !txType.Valid() {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"transaction_type must be one of add, remove, adjustment, order", h.logger)
		return
	}

	item, record, err := h.store.ApplyTransaction(r.Context(), inventory.TransactionInput{
		ItemID: id,
		Type:   txType,
		Change: req.QuantityChange,
		Reason: req.Reason,
		UserID: &uid,
	})
	label := string(txType)
	if label == "" {
		label = "auto"
	}
	if err != nil {
		status := "error"
		if errors.Is(err, inventory.ErrInsufficientStock) {
			status = "insufficient"
		}
		h.metrics.RecordInventoryTransaction(label, status)
		WriteError(w, inventoryError(err), h.logger)
		return
	}
	h.metrics.RecordInventoryTransaction(string(record.Type), "ok")

	resp := api.TransactionResponse{Item: api.NewItemView(*item), Transaction: *record}
	h.publish(r.Context(), events.New(events.TypeInventoryTransaction, itemKey(item.ID), resp))
	WriteSuccess(w, resp)
}

// HandleTransactions 处理 GET /api/inventory/{id}/transactions
func (h *InventoryHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := PathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	if _, err := h.store.GetItem(r.Context(), id); err != nil {
		WriteError(w, inventoryError(err), h.logger)
		return
	}
	txs, err := h.store.ListTransactions(r.Context(), id, QueryInt(r, "limit", defaultTransactionLimit))
	if err != nil {
		WriteError(w, inventoryError(err), h.logger)
		return
	}
	if txs == nil {
		txs = []inventory.Transaction{}
	}
	WriteSuccess(w, txs)
}

// HandleListSuppliers 处理 GET /api/suppliers?item_name=
func (h *InventoryHandler) HandleListSuppliers(w http.ResponseWriter, r *http.Request) {
	sups, err := h.store.ListSuppliers(r.Context(), strings.TrimSpace(r.URL.Query().Get("item_name")))
	if err != nil {
		WriteError(w, inventoryError(err), h.logger)
		return
	}
	if sups == nil {
		sups = []inventory.Supplier{}
	}
	WriteSuccess(w, sups)
}

// HandleCreateSupplier 处理 POST /api/suppliers
func (h *InventoryHandler) HandleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSupplierRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	sup := req.Supplier()
	if err := h.store.CreateSupplier(r.Context(), sup); err != nil {
		WriteError(w, inventoryError(err), h.logger)
		return
	}
	WriteStatus(w, http.StatusCreated, sup)
}

func (h *InventoryHandler) publish(ctx context.Context, e events.Event) {
	if err := h.publisher.Publish(ctx, e); err != nil {
		h.logger.Warn("publish inventory event failed", zap.String("type", e.Type), zap.Error(err))
	}
}

func itemKey(id uint) string {
	return "item-" + strconv.FormatUint(uint64(id), 10)
}

func inventoryError(err error) *types.Error {
	switch {
	case errors.Is(err, inventory.ErrItemNotFound):
		return types.NewError(types.ErrNotFound, err.Error())
	case errors.Is(err, inventory.ErrInsufficientStock):
		return types.NewError(types.ErrInsufficientStock, err.Error())
	case errors.Is(err, inventory.ErrDuplicateItem):
		return types.NewError(types.ErrConflict, err.Error())
	case errors.Is(err, inventory.ErrInvalidItem),
		errors.Is(err, inventory.ErrInvalidTransaction),
		errors.Is(err, inventory.ErrInvalidSupplier):
		return types.NewError(types.ErrInvalidRequest, err.Error())
	}
	return types.NewError(types.ErrInternalError, "inventory store unavailable").
		WithCause(err).
		WithRetryable(true)
}
