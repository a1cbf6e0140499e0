package adapter

import (
	"context"
	"fmt"

	"github.com/hitoshi/notionauth/internal/mapper"
	"github.com/hitoshi/notionauth/internal/model"
	"github.com/hitoshi/notionauth/internal/notion"
)

// CreateUser はUserデータベースにユーザーを作成する。
// 作成に失敗した場合はErrCreateUserを返す。
func (a *Adapter) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	page := a.create(ctx, "users.create", a.cols.Users, mapper.UserProperties(u, a.emailVerifiedPolicy))
	if page == nil {
		return nil, fmt.Errorf("%w: email=%s", ErrCreateUser, u.Email)
	}
	return mapper.UserFromPage(page), nil
}

// GetUser はIDでユーザーを取得する。存在しない場合はnilを返す。
func (a *Adapter) GetUser(ctx context.Context, id string) *model.User {
	return mapper.UserFromPage(a.retrieve(ctx, "users.retrieve", id))
}

// GetUserByEmail はメールアドレスが完全一致するユーザーを取得する。
// emailが空の場合は検索せずnilを返す。
func (a *Adapter) GetUserByEmail(ctx context.Context, email string) *model.User {
	if email == "" {
		return nil
	}
	page := a.queryFirst(ctx, "users.query_by_email", a.cols.Users,
		notion.And(notion.EmailEquals(mapper.UserEmail, email)))
	return mapper.UserFromPage(page)
}

// GetUserByAccount はプロバイダとプロバイダ側IDからユーザーを取得する。
// Accountを検索し、そのAccountをaccountsリレーションに含むUserを検索する。
// いずれかの検索結果が空の場合、またはキーが空の場合はnilを返す。
func (a *Adapter) GetUserByAccount(ctx context.Context, provider, providerAccountID string) *model.User {
	if provider == "" || providerAccountID == "" {
		return nil
	}
	account := a.queryFirst(ctx, "accounts.query_by_provider", a.cols.Accounts, notion.And(
		notion.RichTextEquals(mapper.AccountProvider, provider),
		notion.TitleEquals(mapper.AccountProviderAccountID, providerAccountID),
	))
	if account == nil {
		return nil
	}

	page := a.queryFirst(ctx, "users.query_by_account", a.cols.Users,
		notion.And(notion.RelationContains(mapper.UserAccounts, account.ID)))
	return mapper.UserFromPage(page)
}

// UpdateUser はユーザーのプロパティをすべて書き直す。
// 更新に失敗した場合はErrUpdateUserを返す。
func (a *Adapter) UpdateUser(ctx context.Context, u model.User) (*model.User, error) {
	page := a.update(ctx, "users.update", u.ID, mapper.UserProperties(u, a.emailVerifiedPolicy))
	if page == nil {
		return nil, fmt.Errorf("%w: id=%s", ErrUpdateUser, u.ID)
	}
	return mapper.UserFromPage(page), nil
}

// DeleteUser はユーザーをアーカイブし、アーカイブ後の内容を返す。
// 存在しないIDの場合はnilを返す。
func (a *Adapter) DeleteUser(ctx context.Context, id string) *model.User {
	return mapper.UserFromPage(a.archive(ctx, "users.archive", id))
}
