package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/notionauth/internal/middleware"
	"github.com/hitoshi/notionauth/internal/model"
	"github.com/hitoshi/notionauth/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーの退会処理を実行する。
	// accountsと現在のsessionを削除し、userをアーカイブする。
	Withdraw(ctx context.Context, userID, sessionToken string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	auth    AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, auth AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		auth:    auth,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /auth/account（セッションミドルウェアの後に配置）
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	found, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Withdraw(r.Context(), found.User.ID, found.Session.SessionToken); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
			return
		}
		slog.Error("failed to withdraw", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.auth.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
