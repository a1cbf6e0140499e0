package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/notionauth/internal/config"
	"github.com/hitoshi/notionauth/internal/mapper"
)

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	setTestEnv(t, "http://localhost:9999")
	t.Setenv("LOG_LEVEL", "debug")

	var buf bytes.Buffer
	cfg, log, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg == nil || log == nil {
		t.Fatal("expected non-nil config and logger")
	}
	if cfg.Notion.UserDBID != usersDB {
		t.Errorf("UserDBID = %q, want %q", cfg.Notion.UserDBID, usersDB)
	}

	// Verify that slog global logger is configured for JSON output at the configured level
	slog.Default().Debug("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	clearTestEnv(t)

	var buf bytes.Buffer
	cfg, _, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestSessionUpdateAge_OnlyExtendsInExtendExpiryMode(t *testing.T) {
	tests := []struct {
		mode mapper.SessionUpdateMode
		want time.Duration
	}{
		{mapper.SessionUpdateTokenOnly, 0},
		{mapper.SessionUpdateExtendExpiry, 24 * time.Hour},
	}

	for _, tt := range tests {
		cfg := &config.Config{SessionUpdateMode: tt.mode, SessionUpdateAge: 24 * time.Hour}
		if got := sessionUpdateAge(cfg); got != tt.want {
			t.Errorf("sessionUpdateAge(mode=%d) = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func loadTestConfig(t *testing.T, notionURL string, extra map[string]string) *config.Config {
	t.Helper()
	environment := testEnv(notionURL)
	for k, v := range extra {
		environment[k] = v
	}
	cfg, err := config.LoadFrom(environment)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	return cfg
}

func TestComponents_RouterServesHealthAndMetrics(t *testing.T) {
	cfg := loadTestConfig(t, "http://localhost:9999", nil)
	c, err := newComponents(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	if err != nil {
		t.Fatalf("newComponents() error = %v", err)
	}
	router := c.router(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "notionauth_http_requests_total") {
		t.Errorf("metrics output missing http counter")
	}
}

func TestComponents_GitHubLoginDependsOnConfig(t *testing.T) {
	tests := []struct {
		name       string
		extra      map[string]string
		wantStatus int
	}{
		{"未設定", nil, http.StatusNotFound},
		{"設定済み", map[string]string{
			"GITHUB_CLIENT_ID":     "id",
			"GITHUB_CLIENT_SECRET": "secret",
			"GITHUB_REDIRECT_URL":  "http://localhost:8080/auth/github/callback",
		}, http.StatusTemporaryRedirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadTestConfig(t, "http://localhost:9999", tt.extra)
			c, err := newComponents(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
			if err != nil {
				t.Fatalf("newComponents() error = %v", err)
			}

			w := httptest.NewRecorder()
			c.router(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
