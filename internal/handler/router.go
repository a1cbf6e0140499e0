package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/notionauth/internal/metrics"
	"github.com/hitoshi/notionauth/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	SessionNotFound   error // SessionResolverが返す「セッションなし」のエラー
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRF              middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 退会（nilの場合はDELETE /auth/accountを公開しない）
	UserService UserServiceInterface

	// メトリクス（nilの場合は/metricsを公開しない）
	Metrics         *metrics.Collector
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders → CORS
//	/auth/*: RateLimit(General) → CSRF → (POST /auth/email: RateLimit(Email)) → (GET /auth/session, DELETE /auth/account: Session)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.InstrumentHandler)
	}

	r.Get("/health", Health)
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	sessionMW := middleware.NewSessionMiddleware(deps.SessionResolver, deps.SessionNotFound)

	r.Route("/auth", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		r.Method(http.MethodGet, "/csrf", middleware.NewCSRFTokenHandler(deps.CSRF))

		// OAuthフロー
		r.Get("/github/login", authHandler.Login)
		r.Get("/github/callback", authHandler.Callback)

		// メールリンクフロー
		if deps.RateLimiter != nil {
			r.With(deps.RateLimiter.EmailSignInMiddleware()).Post("/email", authHandler.RequestEmail)
		} else {
			r.Post("/email", authHandler.RequestEmail)
		}
		r.Get("/email/callback", authHandler.EmailCallback)

		// セッション管理
		r.Post("/logout", authHandler.Logout)
		r.With(sessionMW).Get("/session", authHandler.Session)
		if deps.UserService != nil {
			userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)
			r.With(sessionMW).Delete("/account", userHandler.Withdraw)
		}
	})

	return r
}

// Health はプロセスの生存確認に応答する。
// GET /health
// Notionへの到達性はcheckサブコマンドで確認する。
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
