// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/notionauth/internal/auth"
	"github.com/hitoshi/notionauth/internal/middleware"
	"github.com/hitoshi/notionauth/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600 // 10分
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	OAuthEnabled() bool
	GetLoginURL(state string) (string, error)
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	RequestEmailSignIn(ctx context.Context, email string) error
	HandleEmailCallback(ctx context.Context, email, token string) (*model.Session, error)
	Logout(ctx context.Context, sessionToken string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	AfterSignInURL string // サインイン後のリダイレクト先（フロントエンド）
	CookieDomain   string
	CookieSecure   bool
	ProviderName   string // エラーメッセージに使うOAuthプロバイダー名
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	if config.ProviderName == "" {
		config.ProviderName = "github"
	}
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login はOAuthフローを開始する。
// GET /auth/github/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.service.OAuthEnabled() {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewProviderDisabledError(h.config.ProviderName))
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	loginURL, err := h.service.GetLoginURL(state)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	// stateをCookieに保存（CSRF対策）
	h.setCookie(w, oauthStateCookie, state, oauthStateMaxAge)
	http.Redirect(w, r, loginURL, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidStateError())
		return
	}
	h.setCookie(w, oauthStateCookie, "", -1)

	// 2. プロバイダー側のエラー（ユーザーが拒否した場合など）
	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		slog.Warn("oauth provider returned error", slog.String("error", providerErr))
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewSignInFailedError())
		return
	}

	// 3. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidStateError())
		return
	}

	// 4. 認証処理
	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.writeAuthError(w, err)
		return
	}

	// 5. セッションCookieを設定してフロントエンドにリダイレクト
	h.setSessionCookie(w, session)
	http.Redirect(w, r, h.config.AfterSignInURL, http.StatusTemporaryRedirect)
}

// RequestEmail はメールアドレス宛にサインインリンクを送信する。
// POST /auth/email (form: email)
// 登録済みかどうかに関わらず同じレスポンスを返す。
func (h *AuthHandler) RequestEmail(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	if err := h.service.RequestEmailSignIn(r.Context(), email); err != nil {
		if errors.Is(err, auth.ErrInvalidEmail) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidEmailError(email))
			return
		}
		slog.Error("failed to request email sign in", slog.String("error", err.Error()))
		h.writeAuthError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "sent",
	})
}

// EmailCallback はメールリンクのトークンを検証し、セッションを発行する。
// GET /auth/email/callback?email=xxx&token=yyy
func (h *AuthHandler) EmailCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	session, err := h.service.HandleEmailCallback(r.Context(), q.Get("email"), q.Get("token"))
	if err != nil {
		slog.Warn("email callback failed", slog.String("error", err.Error()))
		h.writeAuthError(w, err)
		return
	}

	h.setSessionCookie(w, session)
	http.Redirect(w, r, h.config.AfterSignInURL, http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	h.setCookie(w, middleware.SessionCookieName, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

// sessionResponse はGET /auth/sessionのレスポンス。
type sessionResponse struct {
	User    sessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
}

type sessionUser struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	Email         string     `json:"email,omitempty"`
	Image         string     `json:"image,omitempty"`
	EmailVerified *time.Time `json:"emailVerified,omitempty"`
}

// Session は現在のセッションとユーザー情報を返す。
// GET /auth/session（セッションミドルウェアの後に配置）
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	found, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, sessionResponse{
		User: sessionUser{
			ID:            found.User.ID,
			Name:          found.User.Name,
			Email:         found.User.Email,
			Image:         found.User.Image,
			EmailVerified: found.User.EmailVerified,
		},
		Expires: found.Session.Expires,
	})
}

// writeAuthError は認証サービスのエラーをHTTPレスポンスに変換する。
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrProviderDisabled):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewProviderDisabledError(h.config.ProviderName))
	case errors.Is(err, auth.ErrAccountNotLinked):
		middleware.WriteErrorResponse(w, http.StatusConflict, model.NewAccountNotLinkedError(h.config.ProviderName))
	case errors.Is(err, auth.ErrVerificationFailed):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewVerificationFailedError())
	case errors.Is(err, auth.ErrSignInFailed):
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewSignInFailedError())
	default:
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewSignInFailedError())
	}
}

// setSessionCookie はセッショントークンをHTTP Only Cookieに設定する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *model.Session) {
	maxAge := int(time.Until(session.Expires).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	h.setCookie(w, middleware.SessionCookieName, session.SessionToken, maxAge)
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
