// Package notiontest はテスト用のインメモリNotion APIサーバーを提供する。
// ページの作成・取得・更新、データベースのクエリ・取得、アーカイブ、
// 双方向リレーションの同期を再現する。
package notiontest

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/notionauth/internal/notion"
	"github.com/hitoshi/notionauth/internal/property"
)

// relationPair は双方向リレーションの片側を表す。
type relationPair struct {
	db, prop             string
	targetDB, targetProp string
}

// Server はインメモリのNotion APIサーバー。
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	databases map[string]string // 正規化ID → タイトル
	pages     map[string]*notion.Page
	order     []string
	relations []relationPair
	failures  []int
	requests  []Request

	includeArchived bool
}

// Request は受信したリクエストの記録。
type Request struct {
	Method string
	Path   string
	At     time.Time
}

// NewServer はサーバーを起動し、指定IDのデータベースを登録する。
// サーバーはテスト終了時に停止する。
func NewServer(t testing.TB, databaseIDs ...string) *Server {
	t.Helper()

	s := &Server{
		databases: make(map[string]string),
		pages:     make(map[string]*notion.Page),
	}
	for _, id := range databaseIDs {
		s.databases[notion.NormalizeID(id)] = id
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.authorize)
	r.Post("/pages", s.createPage)
	r.Get("/pages/{id}", s.retrievePage)
	r.Patch("/pages/{id}", s.updatePage)
	r.Post("/databases/{id}/query", s.queryDatabase)
	r.Get("/databases/{id}", s.retrieveDatabase)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Relate はdb.propとtargetDB.targetPropを双方向リレーションとして登録する。
// 片側の更新時にもう片側を同期する（Notionの双方向リレーション機能の再現）。
func (s *Server) Relate(db, prop, targetDB, targetProp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := relationPair{db: notion.NormalizeID(db), prop: prop, targetDB: notion.NormalizeID(targetDB), targetProp: targetProp}
	b := relationPair{db: a.targetDB, prop: targetProp, targetDB: a.db, targetProp: prop}
	s.relations = append(s.relations, a, b)
}

// IncludeArchivedInQueries を有効にすると、クエリ結果にアーカイブ済みページを含める。
// アーカイブ除外を呼び出し側が明示的に行うことの検証に使う。
func (s *Server) IncludeArchivedInQueries(include bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.includeArchived = include
}

// Client はこのサーバーに接続するnotion.Clientを返す。
func (s *Server) Client(logger *slog.Logger) *notion.Client {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return notion.NewClient(s.Server.Client(), notion.ClientConfig{
		Token:   "secret_test",
		BaseURL: s.URL,
	}, logger)
}

// FailNext は次のn件のリクエストを指定ステータスで失敗させる。
func (s *Server) FailNext(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures = append(s.failures, status)
	}
}

// Page はIDでページを取得する（検証用）。
func (s *Server) Page(id string) (notion.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[notion.NormalizeID(id)]
	if !ok {
		return notion.Page{}, false
	}
	return *clonePage(p), true
}

// Pages はデータベース内の全ページを作成順に返す（アーカイブ済みを含む）。
func (s *Server) Pages(databaseID string) []notion.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	dbID := notion.NormalizeID(databaseID)
	var out []notion.Page
	for _, id := range s.order {
		p := s.pages[id]
		if notion.NormalizeID(p.Parent.DatabaseID) == dbID {
			out = append(out, *clonePage(p))
		}
	}
	return out
}

// Requests は受信したリクエストを返す。
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// --- ミドルウェア ---

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, At: time.Now()})
		var status int
		if len(s.failures) > 0 {
			status = s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			writeError(w, status, "injected_failure", "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeError(w, http.StatusUnauthorized, "unauthorized", "API token is invalid.")
			return
		}
		if r.Header.Get("Notion-Version") == "" {
			writeError(w, http.StatusBadRequest, "missing_version", "Notion-Version header failed validation.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- ハンドラー ---

func (s *Server) createPage(w http.ResponseWriter, r *http.Request) {
	var req notion.CreatePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dbID := notion.NormalizeID(req.Parent.DatabaseID)
	if _, ok := s.databases[dbID]; !ok {
		writeError(w, http.StatusNotFound, "object_not_found", fmt.Sprintf("Could not find database with ID: %s.", req.Parent.DatabaseID))
		return
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	page := &notion.Page{
		Object:         "page",
		ID:             uuid.NewString(),
		CreatedTime:    now,
		LastEditedTime: now,
		Parent:         notion.DatabaseParent(hyphenate(dbID)),
		Properties:     property.Map{},
	}
	for k, v := range req.Properties {
		page.Properties[k] = normalizeProperty(v)
	}
	key := notion.NormalizeID(page.ID)
	s.pages[key] = page
	s.order = append(s.order, key)
	s.syncRelations(page)

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) retrievePage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, ok := s.pages[notion.NormalizeID(chi.URLParam(r, "id"))]
	if !ok {
		writePageNotFound(w, chi.URLParam(r, "id"))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) updatePage(w http.ResponseWriter, r *http.Request) {
	var req notion.UpdatePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	page, ok := s.pages[notion.NormalizeID(chi.URLParam(r, "id"))]
	if !ok {
		writePageNotFound(w, chi.URLParam(r, "id"))
		return
	}

	unarchiving := req.Archived != nil && !*req.Archived
	if page.Archived && len(req.Properties) > 0 && !unarchiving {
		writeError(w, http.StatusBadRequest, "validation_error", "Can't edit block that is archived. You must unarchive the block before editing.")
		return
	}

	for k, v := range req.Properties {
		page.Properties[k] = normalizeProperty(v)
	}
	if req.Archived != nil {
		page.Archived = *req.Archived
	}
	page.LastEditedTime = time.Now().UTC().Truncate(time.Millisecond)
	if len(req.Properties) > 0 {
		s.syncRelations(page)
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) queryDatabase(w http.ResponseWriter, r *http.Request) {
	var req notion.QueryRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dbID := notion.NormalizeID(chi.URLParam(r, "id"))
	if _, ok := s.databases[dbID]; !ok {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find database.")
		return
	}
	if req.Filter != nil {
		if msg := validateFilter(*req.Filter); msg != "" {
			writeError(w, http.StatusBadRequest, "validation_error", msg)
			return
		}
	}

	var matched []notion.Page
	for _, id := range s.order {
		p := s.pages[id]
		if notion.NormalizeID(p.Parent.DatabaseID) != dbID {
			continue
		}
		if p.Archived && !s.includeArchived {
			continue
		}
		if req.Filter != nil && !matches(p, *req.Filter) {
			continue
		}
		matched = append(matched, *p)
	}

	start := 0
	if req.StartCursor != "" {
		for i, p := range matched {
			if notion.NormalizeID(p.ID) == notion.NormalizeID(req.StartCursor) {
				start = i
				break
			}
		}
	}
	size := req.PageSize
	if size <= 0 || size > 100 {
		size = 100
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}

	res := notion.QueryResponse{Object: "list", Results: matched[start:end]}
	if res.Results == nil {
		res.Results = []notion.Page{}
	}
	if end < len(matched) {
		next := matched[end].ID
		res.NextCursor = &next
		res.HasMore = true
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) retrieveDatabase(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dbID := notion.NormalizeID(chi.URLParam(r, "id"))
	title, ok := s.databases[dbID]
	if !ok {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find database.")
		return
	}
	writeJSON(w, http.StatusOK, notion.Database{
		Object: "database",
		ID:     hyphenate(dbID),
		Title:  []property.RichTextItem{{Type: "text", PlainText: title}},
	})
}

// --- リレーション同期 ---

// syncRelations はpageの変更を双方向リレーションの相手側に反映する。
// 呼び出し側でs.muを保持していること。
func (s *Server) syncRelations(page *notion.Page) {
	dbID := notion.NormalizeID(page.Parent.DatabaseID)
	pageKey := notion.NormalizeID(page.ID)

	for _, rel := range s.relations {
		if rel.db != dbID {
			continue
		}
		wanted := map[string]bool{}
		if v, ok := property.Get[property.Relation](page.Properties, rel.prop); ok {
			for _, id := range v.IDs() {
				wanted[notion.NormalizeID(id)] = true
			}
		}
		for _, key := range s.order {
			target := s.pages[key]
			if notion.NormalizeID(target.Parent.DatabaseID) != rel.targetDB {
				continue
			}
			current, _ := property.Get[property.Relation](target.Properties, rel.targetProp)
			has := false
			next := make(property.Relation, 0, len(current)+1)
			for _, ref := range current {
				if notion.NormalizeID(ref.ID) == pageKey {
					has = true
					if !wanted[key] {
						continue
					}
				}
				next = append(next, ref)
			}
			if wanted[key] && !has {
				next = append(next, property.RelationRef{ID: page.ID})
			}
			if wanted[key] != has {
				target.Properties[rel.targetProp] = property.Property{Value: next}
			}
		}
	}
}

// --- フィルタ評価 ---

// validateFilter はAPIと同様に値のない条件を拒否する。
// 問題がなければ空文字を返す。
func validateFilter(f notion.Filter) string {
	for _, sub := range f.And {
		if msg := validateFilter(sub); msg != "" {
			return msg
		}
	}
	for kind, c := range map[string]*notion.TextCondition{"title": f.Title, "rich_text": f.RichText, "email": f.Email} {
		if c != nil && c.Equals == "" {
			return fmt.Sprintf("body.filter.%s should be defined, instead was `{}`.", kind)
		}
	}
	if f.Number != nil && f.Number.LessThan == nil {
		return "body.filter.number should be defined, instead was `{}`."
	}
	if f.Relation != nil && f.Relation.Contains == "" {
		return "body.filter.relation should be defined, instead was `{}`."
	}
	return ""
}

func matches(p *notion.Page, f notion.Filter) bool {
	if len(f.And) > 0 {
		for _, sub := range f.And {
			if !matches(p, sub) {
				return false
			}
		}
		return true
	}

	switch {
	case f.Title != nil:
		v, _ := property.Get[property.Title](p.Properties, f.Property)
		text, _ := property.PlainText(v)
		return matchText(text, *f.Title)
	case f.RichText != nil:
		v, _ := property.Get[property.RichText](p.Properties, f.Property)
		text, _ := property.PlainText(v)
		return matchText(text, *f.RichText)
	case f.Email != nil:
		v, _ := property.Get[property.Email](p.Properties, f.Property)
		return matchText(string(v), *f.Email)
	case f.Number != nil:
		v, ok := property.Get[property.Number](p.Properties, f.Property)
		if !ok {
			return false
		}
		n, ok := v.Float()
		if !ok {
			return false
		}
		return n < *f.Number.LessThan
	case f.Relation != nil:
		v, _ := property.Get[property.Relation](p.Properties, f.Property)
		for _, id := range v.IDs() {
			if notion.NormalizeID(id) == notion.NormalizeID(f.Relation.Contains) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func matchText(text string, c notion.TextCondition) bool {
	return text == c.Equals
}

// --- ヘルパー ---

// normalizeProperty はAPIと同様にplain_textを補完する。
func normalizeProperty(p property.Property) property.Property {
	fill := func(items []property.RichTextItem) []property.RichTextItem {
		out := make([]property.RichTextItem, len(items))
		for i, item := range items {
			if item.Type == "" {
				item.Type = "text"
			}
			if item.PlainText == "" && item.Text != nil {
				item.PlainText = item.Text.Content
			}
			out[i] = item
		}
		return out
	}
	switch v := p.Value.(type) {
	case property.Title:
		p.Value = property.Title(fill(v))
	case property.RichText:
		p.Value = property.RichText(fill(v))
	}
	return p
}

func clonePage(p *notion.Page) *notion.Page {
	c := *p
	c.Properties = make(property.Map, len(p.Properties))
	for k, v := range p.Properties {
		c.Properties[k] = v
	}
	return &c
}

// hyphenate は32桁のIDを8-4-4-4-12形式に整形する。
func hyphenate(id string) string {
	if len(id) != 32 {
		return id
	}
	return id[0:8] + "-" + id[8:12] + "-" + id[12:16] + "-" + id[16:20] + "-" + id[20:]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"object":  "error",
		"status":  status,
		"code":    code,
		"message": message,
	})
}

func writePageNotFound(w http.ResponseWriter, id string) {
	writeError(w, http.StatusNotFound, "object_not_found",
		fmt.Sprintf("Could not find page with ID: %s. Make sure the relevant pages and databases are shared with your integration.", id))
}
