package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultBaseURL はNotion APIのベースURL。
	DefaultBaseURL = "https://api.notion.com/v1"
	// DefaultVersion はNotion-Versionヘッダーの既定値。
	DefaultVersion = "2022-06-28"
	// maxResponseSize はレスポンスボディの読み取り上限。
	maxResponseSize = 10 << 20
)

// APIError はNotion APIが返すエラーレスポンス。
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("notion api error: status=%d code=%s: %s", e.Status, e.Code, e.Message)
}

// ClientConfig はClientの設定。
type ClientConfig struct {
	Token   string
	BaseURL string // テスト用に差し替え可能
	Version string
	Timeout time.Duration
}

// Client はNotion APIのクライアント。
// エラーのログ出力は呼び出し側（gateway）の責務とし、ここでは返すだけにする。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	token      string
	version    string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, config ClientConfig, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Version == "" {
		config.Version = DefaultVersion
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    config.BaseURL,
		token:      config.Token,
		version:    config.Version,
	}
}

// CreatePage はデータベースにページを作成する。
func (c *Client) CreatePage(ctx context.Context, req CreatePageRequest) (*Page, error) {
	req.Parent.DatabaseID = NormalizeID(req.Parent.DatabaseID)
	if req.Parent.Type == "" {
		req.Parent.Type = "database_id"
	}

	var page Page
	if err := c.do(ctx, http.MethodPost, "/pages", req, &page); err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &page, nil
}

// RetrievePage はページを取得する。
func (c *Client) RetrievePage(ctx context.Context, pageID string) (*Page, error) {
	var page Page
	if err := c.do(ctx, http.MethodGet, "/pages/"+url.PathEscape(NormalizeID(pageID)), nil, &page); err != nil {
		return nil, fmt.Errorf("failed to retrieve page: %w", err)
	}
	return &page, nil
}

// UpdatePage はページのプロパティまたはアーカイブ状態を更新する。
func (c *Client) UpdatePage(ctx context.Context, pageID string, req UpdatePageRequest) (*Page, error) {
	var page Page
	if err := c.do(ctx, http.MethodPatch, "/pages/"+url.PathEscape(NormalizeID(pageID)), req, &page); err != nil {
		return nil, fmt.Errorf("failed to update page: %w", err)
	}
	return &page, nil
}

// QueryDatabase はデータベースをフィルタ付きでクエリする。
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, req QueryRequest) (*QueryResponse, error) {
	var res QueryResponse
	path := "/databases/" + url.PathEscape(NormalizeID(databaseID)) + "/query"
	if err := c.do(ctx, http.MethodPost, path, req, &res); err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}
	return &res, nil
}

// RetrieveDatabase はデータベースのメタデータとスキーマを取得する。
func (c *Client) RetrieveDatabase(ctx context.Context, databaseID string) (*Database, error) {
	var db Database
	if err := c.do(ctx, http.MethodGet, "/databases/"+url.PathEscape(NormalizeID(databaseID)), nil, &db); err != nil {
		return nil, fmt.Errorf("failed to retrieve database: %w", err)
	}
	return &db, nil
}

// do はリクエストを送信し、2xxの場合はoutにデコードする。
// 2xx以外は*APIErrorとして返す。
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("notion api request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("http_status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
			apiErr.Message = string(data)
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
