package mapper

import (
	"time"

	"github.com/hitoshi/notionauth/internal/model"
	"github.com/hitoshi/notionauth/internal/notion"
	"github.com/hitoshi/notionauth/internal/property"
)

// SessionProperties はSessionの作成用プロパティを構築する。
func SessionProperties(s model.Session) property.Map {
	return property.Map{
		SessionToken:   property.NewTitle(s.SessionToken),
		SessionUserID:  property.NewRelation(notion.NormalizeID(s.UserID)),
		SessionExpires: property.NewEpochMillis(s.Expires),
	}
}

// SessionUpdateProperties はUpdateSession用のプロパティを構築する。
// SessionUpdateTokenOnly ではsessionTokenのみを書き直し、expiresには触れない。
func SessionUpdateProperties(u model.SessionUpdate, mode SessionUpdateMode) property.Map {
	props := property.Map{
		SessionToken: property.NewTitle(u.SessionToken),
	}
	if mode == SessionUpdateExtendExpiry && u.Expires != nil {
		props[SessionExpires] = property.NewEpochMillis(*u.Expires)
	}
	return props
}

// SessionFromPage はページをSessionに変換する。pageがnilの場合はnilを返す。
// expiresが未設定の場合はnowを有効期限とする。
func SessionFromPage(page *notion.Page, now time.Time) *model.Session {
	if page == nil {
		return nil
	}
	s := &model.Session{
		ID:           page.ID,
		UserID:       firstRelation(page.Properties, SessionUserID),
		SessionToken: title(page.Properties, SessionToken),
		Expires:      now,
	}
	if ts, ok := property.Timestamp(page.Properties, SessionExpires); ok {
		s.Expires = ts
	}
	return s
}

// VerificationTokenProperties はVerificationTokenの作成用プロパティを構築する。
func VerificationTokenProperties(v model.VerificationToken) property.Map {
	return property.Map{
		VerificationIdentifier: property.NewTitle(v.Identifier),
		VerificationToken:      property.NewRichText(v.Token),
		VerificationExpires:    property.NewEpochMillis(v.Expires),
	}
}

// VerificationTokenFromPage はページをVerificationTokenに変換する。
// pageがnilの場合はnilを返す。expiresが未設定の場合はnowを有効期限とする。
func VerificationTokenFromPage(page *notion.Page, now time.Time) *model.VerificationToken {
	if page == nil {
		return nil
	}
	v := &model.VerificationToken{
		Identifier: title(page.Properties, VerificationIdentifier),
		Token:      richText(page.Properties, VerificationToken),
		Expires:    now,
	}
	if ts, ok := property.Timestamp(page.Properties, VerificationExpires); ok {
		v.Expires = ts
	}
	return v
}
