// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/hitoshi/notionauth/internal/mapper"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	Notion Notion `envPrefix:"NOTION_"`
	GitHub GitHub `envPrefix:"GITHUB_"`

	// Session
	SessionMaxAge        time.Duration            `env:"SESSION_MAX_AGE" envDefault:"720h"`
	SessionUpdateAge     time.Duration            `env:"SESSION_UPDATE_AGE" envDefault:"24h"`
	SessionUpdateMode    mapper.SessionUpdateMode `env:"SESSION_UPDATE_MODE" envDefault:"token_only"`
	VerificationTokenTTL time.Duration            `env:"VERIFICATION_TOKEN_TTL" envDefault:"24h"`
	AuthSecret           string                   `env:"AUTH_SECRET,required,notEmpty"`

	EmailVerifiedPolicy mapper.EmailVerifiedPolicy `env:"EMAIL_VERIFIED_POLICY" envDefault:"flagged"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Cookie
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"false"`
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`

	// Rate Limit（受信側、クライアントごと）
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	// Worker
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`

	// Logging
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// Notion はNotion APIとデータベースの設定。
type Notion struct {
	Key     string        `env:"KEY,required,notEmpty"`
	BaseURL string        `env:"BASE_URL" envDefault:"https://api.notion.com/v1"`
	Version string        `env:"VERSION" envDefault:"2022-06-28"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	UserDBID              string `env:"USER_DB_ID,required,notEmpty"`
	AccountDBID           string `env:"ACCOUNT_DB_ID,required,notEmpty"`
	SessionDBID           string `env:"SESSION_DB_ID,required,notEmpty"`
	VerificationTokenDBID string `env:"VERIFICATION_TOKEN_DB_ID,required,notEmpty"`

	// 送信側のレート制限: RateInterval内の開始回数をRateLimit以下に保つ
	RateLimit    int           `env:"RATE_LIMIT" envDefault:"3"`
	RateInterval time.Duration `env:"RATE_INTERVAL" envDefault:"1s"`
	MaxInFlight  int           `env:"MAX_IN_FLIGHT" envDefault:"3"`
}

// GitHub はGitHub OAuthの設定。ClientIDが空の場合、GitHubサインインは無効になる。
type GitHub struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

// Enabled はGitHubサインインが設定されているかを返す。
func (g GitHub) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// parsers はアプリケーション固有の型を環境変数から読み込むためのパーサー。
var parsers = map[reflect.Type]env.ParserFunc{
	reflect.TypeOf(mapper.SessionUpdateMode(0)): func(v string) (interface{}, error) {
		return mapper.ParseSessionUpdateMode(v)
	},
	reflect.TypeOf(mapper.EmailVerifiedPolicy(0)): func(v string) (interface{}, error) {
		return mapper.ParseEmailVerifiedPolicy(v)
	},
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom は指定されたマップから設定を読み込む。テスト用。
func LoadFrom(environment map[string]string) (*Config, error) {
	return load(env.Options{Environment: environment})
}

func load(opts env.Options) (*Config, error) {
	opts.FuncMap = parsers

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate は値の組み合わせを検証する。
func (c *Config) validate() error {
	var problems []string
	if c.Notion.RateLimit < 1 {
		problems = append(problems, "NOTION_RATE_LIMIT must be at least 1")
	}
	if c.Notion.RateInterval <= 0 {
		problems = append(problems, "NOTION_RATE_INTERVAL must be positive")
	}
	if c.SessionMaxAge <= 0 {
		problems = append(problems, "SESSION_MAX_AGE must be positive")
	}
	if c.CleanupInterval <= 0 {
		problems = append(problems, "CLEANUP_INTERVAL must be positive")
	}
	if c.GitHub.Enabled() && c.GitHub.RedirectURL == "" {
		problems = append(problems, "GITHUB_REDIRECT_URL is required when GitHub sign-in is enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
