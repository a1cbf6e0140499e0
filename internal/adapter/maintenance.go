package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/notionauth/internal/gateway"
	"github.com/hitoshi/notionauth/internal/mapper"
	"github.com/hitoshi/notionauth/internal/notion"
)

// PurgeExpired は有効期限がnowより前のセッションとメール認証トークンをアーカイブする。
// アーカイブした件数を返す。途中で失敗した呼び出しは数えない。
func (a *Adapter) PurgeExpired(ctx context.Context, now time.Time) (sessions, tokens int) {
	sessions = a.purge(ctx, "sessions", a.cols.Sessions, mapper.SessionExpires, now)
	tokens = a.purge(ctx, "verification_tokens", a.cols.VerificationTokens, mapper.VerificationExpires, now)
	return sessions, tokens
}

func (a *Adapter) purge(ctx context.Context, name, databaseID, expiresProp string, now time.Time) int {
	expired := a.queryAll(ctx, name+".query_expired", databaseID,
		notion.And(notion.NumberLessThan(expiresProp, float64(now.UnixMilli()))))

	archived := 0
	for _, page := range expired {
		if ctx.Err() != nil {
			break
		}
		if a.archive(ctx, name+".archive", page.ID) != nil {
			archived++
		}
	}

	if len(expired) > 0 {
		a.logger.Info("expired records archived",
			slog.String("collection", name),
			slog.Int("matched", len(expired)),
			slog.Int("archived", archived),
		)
	}
	return archived
}

// queryAll はカーソルをたどって一致する未アーカイブページをすべて取得する。
// 途中のページ取得に失敗した場合はそれまでの結果を返す。
func (a *Adapter) queryAll(ctx context.Context, op, databaseID string, filter *notion.Filter) []notion.Page {
	var pages []notion.Page
	req := notion.QueryRequest{Filter: filter, PageSize: queryPageSize}
	for {
		res := a.query(ctx, op, databaseID, req)
		if res == nil {
			return pages
		}
		pages = append(pages, liveResults(res.Results)...)
		if !res.HasMore || res.NextCursor == nil || *res.NextCursor == "" {
			return pages
		}
		req.StartCursor = *res.NextCursor
	}
}

// CheckCollections は設定された4つのデータベースにアクセスできるかを確認する。
// アクセスできないデータベースをすべてまとめたエラーを返す。
func (a *Adapter) CheckCollections(ctx context.Context) error {
	targets := []struct {
		name string
		id   string
	}{
		{"users", a.cols.Users},
		{"accounts", a.cols.Accounts},
		{"sessions", a.cols.Sessions},
		{"verification_tokens", a.cols.VerificationTokens},
	}

	var errs []error
	for _, target := range targets {
		if target.id == "" {
			errs = append(errs, fmt.Errorf("%s: database id is not configured", target.name))
			continue
		}
		db := gateway.Call(ctx, a.gw, "databases.retrieve", func(ctx context.Context) (*notion.Database, error) {
			return a.store.RetrieveDatabase(ctx, notion.NormalizeID(target.id))
		})
		switch {
		case db == nil:
			errs = append(errs, fmt.Errorf("%s: database %s is not reachable", target.name, target.id))
		case db.Archived:
			errs = append(errs, fmt.Errorf("%s: database %s is archived", target.name, target.id))
		}
	}
	return errors.Join(errs...)
}
