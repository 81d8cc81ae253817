package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/stemchat/api"
	"github.com/BaSui01/stemchat/internal/auth"
	"github.com/BaSui01/stemchat/types"
)

// =============================================================================
// 🔐 认证 Handler
// =============================================================================

// Authenticator is the slice of auth.Service the handler needs.
type Authenticator interface {
	Signup(ctx context.Context, username, password string) (*auth.Session, error)
	Login(ctx context.Context, username, password string) (*auth.Session, error)
}

// AuthHandler 注册与登录
type AuthHandler struct {
	auth   Authenticator
	logger *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(a Authenticator, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: a, logger: logger.With(zap.String("handler", "auth"))}
}

// HandleSignup 处理 POST /api/signup
// @Summary 注册
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body api.Credentials true "用户名与密码"
// @Success 201 {object} Response{data=api.TokenResponse}
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Router /api/signup [post]
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req api.Credentials
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	sess, err := h.auth.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, authError(err), h.logger)
		return
	}
	WriteStatus(w, http.StatusCreated, tokenResponse(sess))
}

// HandleLogin 处理 POST /api/login
// @Summary 登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body api.Credentials true "用户名与密码"
// @Success 200 {object} Response{data=api.TokenResponse}
// @Failure 401 {object} Response
// @Router /api/login [post]
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.Credentials
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	sess, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, authError(err), h.logger)
		return
	}
	WriteSuccess(w, tokenResponse(sess))
}

func tokenResponse(sess *auth.Session) api.TokenResponse {
	return api.TokenResponse{
		Token:     sess.Token,
		TokenType: "bearer",
		ExpiresAt: sess.ExpiresAt,
		User:      api.UserInfo{ID: sess.User.ID, Username: sess.User.Username},
	}
}

func authError(err error) *types.Error {
	switch {
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrPasswordTooShort):
		return types.NewError(types.ErrInvalidRequest, err.Error())
	case errors.Is(err, auth.ErrUsernameTaken):
		return types.NewError(types.ErrConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		return types.NewError(types.ErrUnauthorized, err.Error())
	}
	return types.NewError(types.ErrInternalError, "authentication failed").WithCause(err)
}
