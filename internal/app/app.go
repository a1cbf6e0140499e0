package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/notionauth/internal/adapter"
	"github.com/hitoshi/notionauth/internal/auth"
	"github.com/hitoshi/notionauth/internal/config"
	"github.com/hitoshi/notionauth/internal/gateway"
	"github.com/hitoshi/notionauth/internal/handler"
	"github.com/hitoshi/notionauth/internal/logger"
	"github.com/hitoshi/notionauth/internal/mapper"
	"github.com/hitoshi/notionauth/internal/metrics"
	"github.com/hitoshi/notionauth/internal/middleware"
	"github.com/hitoshi/notionauth/internal/notion"
	"github.com/hitoshi/notionauth/internal/security"
	"github.com/hitoshi/notionauth/internal/user"
	"github.com/hitoshi/notionauth/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成
	return cfg, logger.SetupDefault(w, cfg.LogLevel), nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, log, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.Bool("github_enabled", cfg.GitHub.Enabled()),
	)

	c, err := newComponents(cfg, log, nil)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	switch cmd {
	case CommandWorker:
		return runWorker(c)
	case CommandCheck:
		return runCheck(c)
	default:
		return runServe(c)
	}
}

// components はサブコマンド間で共有する依存関係。
type components struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector
	adapter  *adapter.Adapter
}

// newComponents はNotionクライアントからアダプターまでを構築する。
// httpClientがnilの場合はNOTION_TIMEOUTを設定したクライアントを使う。
func newComponents(cfg *config.Config, log *slog.Logger, httpClient *http.Client) (*components, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Notion.Timeout}
	}

	// 1. Notion APIクライアント
	client := notion.NewClient(httpClient, notion.ClientConfig{
		Token:   cfg.Notion.Key,
		BaseURL: cfg.Notion.BaseURL,
		Version: cfg.Notion.Version,
		Timeout: cfg.Notion.Timeout,
	}, log)

	// 2. 送信側のレート制限とメトリクス
	limiter, err := gateway.NewWindowLimiter(cfg.Notion.RateLimit, cfg.Notion.RateInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	gw := gateway.New(limiter, log,
		gateway.WithMaxInFlight(cfg.Notion.MaxInFlight),
		gateway.WithMetrics(collector),
	)

	// 3. アダプター
	store := adapter.New(client, gw, adapter.Collections{
		Users:              cfg.Notion.UserDBID,
		Accounts:           cfg.Notion.AccountDBID,
		Sessions:           cfg.Notion.SessionDBID,
		VerificationTokens: cfg.Notion.VerificationTokenDBID,
	},
		adapter.WithSessionUpdateMode(cfg.SessionUpdateMode),
		adapter.WithEmailVerifiedPolicy(cfg.EmailVerifiedPolicy),
		adapter.WithLogger(log),
	)

	return &components{
		cfg:      cfg,
		logger:   log,
		registry: registry,
		metrics:  collector,
		adapter:  store,
	}, nil
}

// authService は認証サービスを構築する。GitHubの設定がない場合はメールリンクのみ有効。
func (c *components) authService() *auth.Service {
	var oauth auth.OAuthProvider
	if c.cfg.GitHub.Enabled() {
		oauth = auth.NewGitHubOAuthProvider(auth.GitHubOAuthConfig{
			ClientID:     c.cfg.GitHub.ClientID,
			ClientSecret: c.cfg.GitHub.ClientSecret,
			RedirectURL:  c.cfg.GitHub.RedirectURL,
		}, security.NewProfileSanitizer())
	}

	return auth.NewService(oauth, c.adapter, auth.NewLogMailer(c.logger), auth.ServiceConfig{
		SessionMaxAge:        c.cfg.SessionMaxAge,
		SessionUpdateAge:     sessionUpdateAge(c.cfg),
		VerificationTokenTTL: c.cfg.VerificationTokenTTL,
		Secret:               c.cfg.AuthSecret,
		BaseURL:              c.cfg.BaseURL,
	})
}

// sessionUpdateAge はセッション延長の間隔を返す。
// token_onlyモードではexpiresが書き込まれないため、延長を行わない。
func sessionUpdateAge(cfg *config.Config) time.Duration {
	if cfg.SessionUpdateMode != mapper.SessionUpdateExtendExpiry {
		return 0
	}
	return cfg.SessionUpdateAge
}

// router はHTTPルーターを構築する。
func (c *components) router(rateLimiter *middleware.RateLimiter) http.Handler {
	authService := c.authService()

	return handler.NewRouter(&handler.RouterDeps{
		Logger:            c.logger,
		SessionResolver:   authService,
		SessionNotFound:   auth.ErrSessionNotFound,
		CORSAllowedOrigin: c.cfg.AllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRF: middleware.CSRFConfig{
			CookieSecure: c.cfg.CookieSecure,
			CookieDomain: c.cfg.CookieDomain,
		},

		AuthService: authService,
		UserService: user.NewService(c.adapter, c.logger),
		AuthConfig: handler.AuthHandlerConfig{
			AfterSignInURL: c.cfg.AllowedOrigin,
			CookieDomain:   c.cfg.CookieDomain,
			CookieSecure:   c.cfg.CookieSecure,
		},

		Metrics:         c.metrics,
		MetricsGatherer: c.registry,
	})
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(c *components) error {
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(c.cfg.RateLimitPerMinute))
	defer rateLimiter.Stop()

	server := &http.Server{
		Addr:         ":" + c.cfg.ServerPort,
		Handler:      c.router(rateLimiter),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	c.logger.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	c.logger.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れのセッションと検証トークンを定期的にアーカイブする。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(c *components) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c.logger.Info("worker starting",
		slog.Duration("cleanup_interval", c.cfg.CleanupInterval),
	)

	job := cleanup.NewCleanupJob(c.adapter, c.logger, c.metrics)
	job.Start(ctx, c.cfg.CleanupInterval)

	c.logger.Info("worker stopped gracefully")
	return nil
}

// runCheck は設定された4つのNotionデータベースにアクセスできるかを確認する。
func runCheck(c *components) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := c.adapter.CheckCollections(ctx); err != nil {
		return fmt.Errorf("notion check failed: %w", err)
	}

	c.logger.Info("notion databases are reachable")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
