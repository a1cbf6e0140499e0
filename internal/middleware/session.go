// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/notionauth/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "session_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey      = contextKey("user_id")
	sessionContextKey     = contextKey("session")
	requestUserContextKey = contextKey("request_user")
)

// requestUser はロギングミドルウェアが内側で解決されたユーザーIDを受け取るための入れ物。
type requestUser struct {
	userID string
}

func withRequestUser(ctx context.Context, holder *requestUser) context.Context {
	return context.WithValue(ctx, requestUserContextKey, holder)
}

// SessionResolver はセッショントークンから有効なセッションを解決する。auth.Serviceが実装する。
type SessionResolver interface {
	CurrentSession(ctx context.Context, sessionToken string) (*model.SessionAndUser, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッショントークンを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みユーザーIDとセッションをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
// notFoundに一致するエラーは通常の未認証として扱い、ログに出さない。
func NewSessionMiddleware(resolver SessionResolver, notFound error) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからセッショントークンを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. セッションの有効性を検証（期限延長もここで行われる）
			found, err := resolver.CurrentSession(r.Context(), cookie.Value)
			if err != nil {
				if notFound == nil || !errors.Is(err, notFound) {
					slog.Error("failed to resolve session",
						slog.String("error", err.Error()),
					)
				}
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 3. 認証済みユーザーIDとセッションをコンテキストに注入
			ctx := ContextWithSession(r.Context(), found)
			if holder, ok := ctx.Value(requestUserContextKey).(*requestUser); ok {
				holder.userID = found.User.ID
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// SessionFromContext はリクエストコンテキストからセッションとユーザーを取得する。
func SessionFromContext(ctx context.Context) (*model.SessionAndUser, bool) {
	found, ok := ctx.Value(sessionContextKey).(*model.SessionAndUser)
	return found, ok && found != nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithSession はコンテキストにセッションとユーザーIDを注入する。
func ContextWithSession(ctx context.Context, found *model.SessionAndUser) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey, found)
	return ContextWithUserID(ctx, found.User.ID)
}
