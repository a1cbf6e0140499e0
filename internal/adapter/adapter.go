// Package adapter はユーザー・アカウント・セッション・メール認証トークンを
// Notionデータベースに保存する認証ストレージアダプタを提供する。
//
// すべてのストア呼び出しはgateway経由で行われ、失敗はnil（見つからない）として扱われる。
// 検索してから更新・アーカイブする操作は2回の独立した呼び出しであり、
// その間に他の呼び出し元が同じページを変更・アーカイブする可能性がある。
package adapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/notionauth/internal/gateway"
	"github.com/hitoshi/notionauth/internal/mapper"
	"github.com/hitoshi/notionauth/internal/notion"
	"github.com/hitoshi/notionauth/internal/property"
)

// CreateUser・UpdateUserが失敗した場合のエラー。
// 他の操作と異なり、これらはnilではなくエラーを返す。
var (
	ErrCreateUser = errors.New("failed to create user")
	ErrUpdateUser = errors.New("failed to update user")
)

// Store はアダプタが利用するNotion APIの操作。*notion.Client が実装する。
type Store interface {
	CreatePage(ctx context.Context, req notion.CreatePageRequest) (*notion.Page, error)
	RetrievePage(ctx context.Context, pageID string) (*notion.Page, error)
	UpdatePage(ctx context.Context, pageID string, req notion.UpdatePageRequest) (*notion.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, req notion.QueryRequest) (*notion.QueryResponse, error)
	RetrieveDatabase(ctx context.Context, databaseID string) (*notion.Database, error)
}

// Collections は4つのデータベースID。
type Collections struct {
	Users              string
	Accounts           string
	Sessions           string
	VerificationTokens string
}

// Adapter は認証ストレージの操作を提供する。複数ゴルーチンから安全に使用できる。
type Adapter struct {
	store  Store
	gw     *gateway.Gateway
	cols   Collections
	logger *slog.Logger

	sessionUpdateMode   mapper.SessionUpdateMode
	emailVerifiedPolicy mapper.EmailVerifiedPolicy
	now                 func() time.Time
}

// Option はAdapterの設定オプション。
type Option func(*Adapter)

// WithSessionUpdateMode はUpdateSessionで書き込む項目を設定する。
func WithSessionUpdateMode(m mapper.SessionUpdateMode) Option {
	return func(a *Adapter) { a.sessionUpdateMode = m }
}

// WithEmailVerifiedPolicy はemailVerifiedを書き込む条件を設定する。
func WithEmailVerifiedPolicy(p mapper.EmailVerifiedPolicy) Option {
	return func(a *Adapter) { a.emailVerifiedPolicy = p }
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock は現在時刻の取得関数を設定する（テスト用）。
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// New は新しいAdapterを生成する。
func New(store Store, gw *gateway.Gateway, cols Collections, opts ...Option) *Adapter {
	a := &Adapter{
		store:  store,
		gw:     gw,
		cols:   cols,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// --- ストア呼び出しのヘルパー ---

func (a *Adapter) create(ctx context.Context, op, databaseID string, props property.Map) *notion.Page {
	return gateway.Call(ctx, a.gw, op, func(ctx context.Context) (*notion.Page, error) {
		return a.store.CreatePage(ctx, notion.CreatePageRequest{
			Parent:     notion.DatabaseParent(notion.NormalizeID(databaseID)),
			Properties: props,
		})
	})
}

func (a *Adapter) update(ctx context.Context, op, pageID string, props property.Map) *notion.Page {
	return gateway.Call(ctx, a.gw, op, func(ctx context.Context) (*notion.Page, error) {
		return a.store.UpdatePage(ctx, notion.NormalizeID(pageID), notion.UpdatePageRequest{Properties: props})
	})
}

func (a *Adapter) archive(ctx context.Context, op, pageID string) *notion.Page {
	return gateway.Call(ctx, a.gw, op, func(ctx context.Context) (*notion.Page, error) {
		return a.store.UpdatePage(ctx, notion.NormalizeID(pageID), notion.ArchiveRequest())
	})
}

// retrieve はページを取得する。アーカイブ済みのページはnilとして扱う。
func (a *Adapter) retrieve(ctx context.Context, op, pageID string) *notion.Page {
	page := gateway.Call(ctx, a.gw, op, func(ctx context.Context) (*notion.Page, error) {
		return a.store.RetrievePage(ctx, notion.NormalizeID(pageID))
	})
	if page == nil || page.Archived {
		return nil
	}
	return page
}

func (a *Adapter) query(ctx context.Context, op, databaseID string, req notion.QueryRequest) *notion.QueryResponse {
	return gateway.Call(ctx, a.gw, op, func(ctx context.Context) (*notion.QueryResponse, error) {
		return a.store.QueryDatabase(ctx, notion.NormalizeID(databaseID), req)
	})
}

// queryPageSize はクエリ1回あたりの取得件数（APIの上限）。
const queryPageSize = 100

// queryFirst はフィルタに一致する最初の未アーカイブページを返す。
// 結果ページが未アーカイブのページを含まない場合はカーソルをたどって次を取得する。
func (a *Adapter) queryFirst(ctx context.Context, op, databaseID string, filter *notion.Filter) *notion.Page {
	req := notion.QueryRequest{Filter: filter, PageSize: queryPageSize}
	for {
		res := a.query(ctx, op, databaseID, req)
		if res == nil {
			return nil
		}
		if live := liveResults(res.Results); len(live) > 0 {
			return &live[0]
		}
		if !res.HasMore || res.NextCursor == nil || *res.NextCursor == "" {
			return nil
		}
		req.StartCursor = *res.NextCursor
	}
}

// liveResults はアーカイブ済みのページを除外する。
// Notionの既定の除外動作には依存せず、すべての検索結果に適用する。
func liveResults(pages []notion.Page) []notion.Page {
	live := make([]notion.Page, 0, len(pages))
	for _, p := range pages {
		if !p.Archived {
			live = append(live, p)
		}
	}
	return live
}
