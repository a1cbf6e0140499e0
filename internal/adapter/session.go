package adapter

import (
	"context"
	"log/slog"

	"github.com/hitoshi/notionauth/internal/mapper"
	"github.com/hitoshi/notionauth/internal/model"
	"github.com/hitoshi/notionauth/internal/notion"
)

// CreateSession はSessionデータベースにセッションを作成する。失敗時はnilを返す。
func (a *Adapter) CreateSession(ctx context.Context, s model.Session) *model.Session {
	page := a.create(ctx, "sessions.create", a.cols.Sessions, mapper.SessionProperties(s))
	return mapper.SessionFromPage(page, a.now())
}

// GetSessionAndUser はセッショントークンからセッションと所有ユーザーを取得する。
// セッションを検索し、そのセッションをsessionsリレーションに含むUserを検索する。
// いずれかが見つからない場合はnilを返す。
func (a *Adapter) GetSessionAndUser(ctx context.Context, sessionToken string) *model.SessionAndUser {
	sessionPage := a.findSession(ctx, sessionToken)
	if sessionPage == nil {
		return nil
	}

	userPage := a.queryFirst(ctx, "users.query_by_session", a.cols.Users,
		notion.And(notion.RelationContains(mapper.UserSessions, sessionPage.ID)))
	if userPage == nil {
		return nil
	}

	return &model.SessionAndUser{
		Session: *mapper.SessionFromPage(sessionPage, a.now()),
		User:    *mapper.UserFromPage(userPage),
	}
}

// UpdateSession はセッションを更新する。見つからない場合はnilを返す。
// 既定ではsessionTokenのみを書き直し、expiresは変更しない。
// WithSessionUpdateMode(mapper.SessionUpdateExtendExpiry) を指定した場合はexpiresも書き込む。
func (a *Adapter) UpdateSession(ctx context.Context, u model.SessionUpdate) *model.Session {
	page := a.findSession(ctx, u.SessionToken)
	if page == nil {
		return nil
	}

	updated := a.update(ctx, "sessions.update", page.ID, mapper.SessionUpdateProperties(u, a.sessionUpdateMode))
	return mapper.SessionFromPage(updated, a.now())
}

// DeleteSession はセッションをアーカイブする。見つからない場合は何もしない。
func (a *Adapter) DeleteSession(ctx context.Context, sessionToken string) {
	page := a.findSession(ctx, sessionToken)
	if page == nil {
		return
	}

	if archived := a.archive(ctx, "sessions.archive", page.ID); archived != nil {
		a.logger.Info("session deleted", slog.String("session_id", archived.ID))
	}
}

// findSession はトークンが一致するセッションページを返す。
// 空のトークンはどのセッションにも一致しない。
func (a *Adapter) findSession(ctx context.Context, sessionToken string) *notion.Page {
	if sessionToken == "" {
		return nil
	}
	return a.queryFirst(ctx, "sessions.query_by_token", a.cols.Sessions,
		notion.And(notion.TitleEquals(mapper.SessionToken, sessionToken)))
}
