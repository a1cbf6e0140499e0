package mapper

import (
	"github.com/hitoshi/notionauth/internal/model"
	"github.com/hitoshi/notionauth/internal/notion"
	"github.com/hitoshi/notionauth/internal/property"
)

// AccountProperties はAccountの作成用プロパティを構築する。
// プロバイダ識別項目とuserIdは常に含め、トークン類は値がある場合のみ含める。
func AccountProperties(a model.Account) property.Map {
	typ := a.Type
	if typ == "" {
		typ = model.ProviderTypeOAuth
	}

	props := property.Map{
		AccountProviderAccountID: property.NewTitle(a.ProviderAccountID),
		AccountUserID:            property.NewRelation(notion.NormalizeID(a.UserID)),
		AccountType:              property.NewSelect(string(typ)),
		AccountProvider:          property.NewRichText(a.Provider),
	}

	optional := map[string]string{
		AccountRefreshToken:     a.RefreshToken,
		AccountAccessToken:      a.AccessToken,
		AccountTokenType:        a.TokenType,
		AccountScope:            a.Scope,
		AccountIDToken:          a.IDToken,
		AccountSessionState:     a.SessionState,
		AccountOAuthToken:       a.OAuthToken,
		AccountOAuthTokenSecret: a.OAuthTokenSecret,
	}
	for key, value := range optional {
		if value != "" {
			props[key] = property.NewRichText(value)
		}
	}

	if a.ExpiresAt != nil {
		props[AccountExpiresAt] = property.NewNumber(float64(*a.ExpiresAt))
	}
	return props
}

// AccountFromPage はページをAccountに変換する。pageがnilの場合はnilを返す。
// typeが未設定の場合はoauthとする。
func AccountFromPage(page *notion.Page) *model.Account {
	if page == nil {
		return nil
	}
	props := page.Properties

	a := &model.Account{
		ID:                page.ID,
		UserID:            firstRelation(props, AccountUserID),
		Type:              model.ProviderTypeOAuth,
		Provider:          richText(props, AccountProvider),
		ProviderAccountID: title(props, AccountProviderAccountID),
		RefreshToken:      richText(props, AccountRefreshToken),
		AccessToken:       richText(props, AccountAccessToken),
		TokenType:         richText(props, AccountTokenType),
		Scope:             richText(props, AccountScope),
		IDToken:           richText(props, AccountIDToken),
		SessionState:      richText(props, AccountSessionState),
		OAuthToken:        richText(props, AccountOAuthToken),
		OAuthTokenSecret:  richText(props, AccountOAuthTokenSecret),
	}
	if sel, ok := property.Get[property.Select](props, AccountType); ok && sel.Name != "" {
		a.Type = model.ProviderType(sel.Name)
	}
	if n, ok := property.Get[property.Number](props, AccountExpiresAt); ok {
		if f, ok := n.Float(); ok && f != 0 {
			v := int64(f)
			a.ExpiresAt = &v
		}
	}
	return a
}

func title(props property.Map, key string) string {
	v, ok := property.Get[property.Title](props, key)
	if !ok {
		return ""
	}
	s, _ := property.PlainText(v)
	return s
}

func richText(props property.Map, key string) string {
	v, ok := property.Get[property.RichText](props, key)
	if !ok {
		return ""
	}
	s, _ := property.PlainText(v)
	return s
}

func firstRelation(props property.Map, key string) string {
	v, ok := property.Get[property.Relation](props, key)
	if !ok {
		return ""
	}
	if ids := v.IDs(); len(ids) > 0 {
		return ids[0]
	}
	return ""
}
