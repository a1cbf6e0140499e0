package adapter

import (
	"context"
	"log/slog"

	"github.com/hitoshi/notionauth/internal/mapper"
	"github.com/hitoshi/notionauth/internal/model"
	"github.com/hitoshi/notionauth/internal/notion"
)

// LinkAccount はAccountデータベースにアカウントを作成する。失敗時はnilを返す。
func (a *Adapter) LinkAccount(ctx context.Context, account model.Account) *model.Account {
	page := a.create(ctx, "accounts.create", a.cols.Accounts, mapper.AccountProperties(account))
	return mapper.AccountFromPage(page)
}

// UnlinkAccount はプロバイダとプロバイダ側IDが一致するアカウントをアーカイブする。
// 一致するアカウントがない場合、またはキーが空の場合は何もしない。
func (a *Adapter) UnlinkAccount(ctx context.Context, provider, providerAccountID string) {
	if provider == "" || providerAccountID == "" {
		return
	}
	page := a.queryFirst(ctx, "accounts.query_by_provider", a.cols.Accounts, notion.And(
		notion.RichTextEquals(mapper.AccountProvider, provider),
		notion.TitleEquals(mapper.AccountProviderAccountID, providerAccountID),
	))
	if page == nil {
		return
	}

	if archived := a.archive(ctx, "accounts.archive", page.ID); archived != nil {
		a.logger.Info("account unlinked",
			slog.String("account_id", archived.ID),
			slog.String("provider", provider),
		)
	}
}

// ListAccounts はユーザーに紐付く未アーカイブのアカウントをすべて取得する。
func (a *Adapter) ListAccounts(ctx context.Context, userID string) []model.Account {
	if userID == "" {
		return []model.Account{}
	}
	pages := a.queryAll(ctx, "accounts.query_by_user", a.cols.Accounts,
		notion.And(notion.RelationContains(mapper.AccountUserID, userID)))

	accounts := make([]model.Account, 0, len(pages))
	for i := range pages {
		if account := mapper.AccountFromPage(&pages[i]); account != nil {
			accounts = append(accounts, *account)
		}
	}
	return accounts
}
