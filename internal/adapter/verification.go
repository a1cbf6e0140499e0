package adapter

import (
	"context"

	"github.com/hitoshi/notionauth/internal/mapper"
	"github.com/hitoshi/notionauth/internal/model"
	"github.com/hitoshi/notionauth/internal/notion"
)

// CreateVerificationToken はメール認証トークンを作成する。失敗時はnilを返す。
func (a *Adapter) CreateVerificationToken(ctx context.Context, v model.VerificationToken) *model.VerificationToken {
	page := a.create(ctx, "verification_tokens.create", a.cols.VerificationTokens, mapper.VerificationTokenProperties(v))
	return mapper.VerificationTokenFromPage(page, a.now())
}

// UseVerificationToken はidentifierとtokenが一致するトークンをアーカイブし、その内容を返す。
// 一致するトークンがない場合、いずれかのキーが空の場合、またはアーカイブに失敗した場合はnilを返す。
// アーカイブに成功したトークンは以後の検索に一致しないため、1回しか使用できない。
func (a *Adapter) UseVerificationToken(ctx context.Context, identifier, token string) *model.VerificationToken {
	if identifier == "" || token == "" {
		return nil
	}
	page := a.queryFirst(ctx, "verification_tokens.query", a.cols.VerificationTokens, notion.And(
		notion.TitleEquals(mapper.VerificationIdentifier, identifier),
		notion.RichTextEquals(mapper.VerificationToken, token),
	))
	if page == nil {
		return nil
	}

	if a.archive(ctx, "verification_tokens.archive", page.ID) == nil {
		return nil
	}
	return mapper.VerificationTokenFromPage(page, a.now())
}
