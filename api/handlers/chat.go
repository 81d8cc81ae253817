package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/stemchat/api"
	"github.com/BaSui01/stemchat/internal/chat"
	"github.com/BaSui01/stemchat/types"
)

// =============================================================================
// 💬 聊天 Handler
// =============================================================================

// MessageService is the slice of chat.Service the handler needs.
type MessageService interface {
	List(ctx context.Context, limit int) ([]chat.View, error)
	Post(ctx context.Context, author chat.Author, content string) (*chat.View, error)
	Edit(ctx context.Context, author chat.Author, id uint, content string) (*chat.View, error)
	Delete(ctx context.Context, author chat.Author, id uint) ([]uint, error)
	Clear(ctx context.Context) (int64, error)
}

// ConnServer serves one upgraded WebSocket until it closes.
type ConnServer interface {
	Serve(ctx context.Context, conn *websocket.Conn) error
}

// ChatHandler 消息 REST 接口与 WebSocket 入口
type ChatHandler struct {
	messages MessageService
	hub      ConnServer
	// origins 允许的 WebSocket Origin 模式，空表示只接受同源
	origins []string
	logger  *zap.Logger
}

// NewChatHandler 创建聊天处理器
func NewChatHandler(messages MessageService, hub ConnServer, origins []string, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		messages: messages,
		hub:      hub,
		origins:  origins,
		logger:   logger.With(zap.String("handler", "chat")),
	}
}

// HandleList 处理 GET /api/messages?limit=N
// @Summary 最近消息（从旧到新）
// @Tags 聊天
// @Produce json
// @Param limit query int false "条数，默认 50"
// @Success 200 {object} Response{data=[]chat.View}
// @Router /api/messages [get]
func (h *ChatHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := QueryInt(r, "limit", chat.DefaultListLimit)
	views, err := h.messages.List(r.Context(), limit)
	if err != nil {
		WriteError(w, chatError(err), h.logger)
		return
	}
	WriteSuccess(w, views)
}

// HandlePost 处理 POST /api/messages
// @Summary 发送消息；以 # 开头时机器人异步回答
// @Tags 聊天
// @Accept json
// @Produce json
// @Param request body api.MessageRequest true "消息内容"
// @Success 201 {object} Response{data=chat.View}
// @Router /api/messages [post]
func (h *ChatHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	author, ok := h.author(w, r)
	if !ok {
		return
	}
	var req api.MessageRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	view, err := h.messages.Post(r.Context(), author, req.Content)
	if err != nil {
		WriteError(w, chatError(err), h.logger)
		return
	}
	WriteStatus(w, http.StatusCreated, view)
}

// HandleEdit 处理 PUT /api/messages/{id}
func (h *ChatHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	author, ok := h.author(w, r)
	if !ok {
		return
	}
	id, ok := PathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req api.MessageRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	view, err := h.messages.Edit(r.Context(), author, id, req.Content)
	if err != nil {
		WriteError(w, chatError(err), h.logger)
		return
	}
	WriteSuccess(w, view)
}

// HandleDelete 处理 DELETE /api/messages/{id}
func (h *ChatHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	author, ok := h.author(w, r)
	if !ok {
		return
	}
	id, ok := PathID(w, r, "id", h.logger)
	if !ok {
		return
	}

	deleted, err := h.messages.Delete(r.Context(), author, id)
	if err != nil {
		WriteError(w, chatError(err), h.logger)
		return
	}
	WriteSuccess(w, api.DeletedResponse{Deleted: deleted})
}

// HandleClear 处理 DELETE /api/messages
func (h *ChatHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.author(w, r); !ok {
		return
	}
	n, err := h.messages.Clear(r.Context())
	if err != nil {
		WriteError(w, chatError(err), h.logger)
		return
	}
	WriteSuccess(w, api.ClearedResponse{Deleted: n})
}

// HandleWebSocket 处理 GET /ws：升级连接后交给 Hub
func (h *ChatHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	author, ok := h.author(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		// Accept has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.logger.Debug("websocket connected", zap.String("username", author.Username))
	if err := h.hub.Serve(r.Context(), conn); err != nil && !errors.Is(err, chat.ErrHubClosed) {
		h.logger.Debug("websocket closed", zap.String("username", author.Username), zap.Error(err))
	}
}

func (h *ChatHandler) author(w http.ResponseWriter, r *http.Request) (chat.Author, bool) {
	id, name, ok := currentUser(w, r, h.logger)
	return chat.Author{ID: id, Username: name}, ok
}

func chatError(err error) *types.Error {
	switch {
	case errors.Is(err, chat.ErrMessageNotFound):
		return types.NewError(types.ErrNotFound, err.Error())
	case errors.Is(err, chat.ErrNotOwner):
		return types.NewError(types.ErrForbidden, err.Error())
	case errors.Is(err, chat.ErrEmptyContent), errors.Is(err, chat.ErrContentTooLong):
		return types.NewError(types.ErrInvalidRequest, err.Error())
	}
	return types.AsError(err)
}
