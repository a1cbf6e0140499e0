package mapper

import (
	"strings"

	"github.com/hitoshi/notionauth/internal/model"
	"github.com/hitoshi/notionauth/internal/notion"
	"github.com/hitoshi/notionauth/internal/property"
)

// UserProperties はUserの作成・更新用プロパティを構築する。
// nameとemailは常に含める。imageは値がある場合のみ含める。
func UserProperties(u model.User, policy EmailVerifiedPolicy) property.Map {
	props := property.Map{
		UserName:  property.NewTitle(u.Name),
		UserEmail: property.NewEmail(u.Email),
	}

	switch policy {
	case EmailVerifiedWhenFlagged:
		if u.VerifiedEmail {
			if u.EmailVerified != nil {
				props[UserEmailVerified] = property.NewEpochMillis(*u.EmailVerified)
			} else {
				props[UserEmailVerified] = property.NewNumber(0)
			}
		}
	case EmailVerifiedWhenPresent:
		if u.EmailVerified != nil {
			props[UserEmailVerified] = property.NewEpochMillis(*u.EmailVerified)
		}
	}

	if u.Image != "" {
		props[UserImage] = property.NewFiles(imageFile(u.Image))
	}
	return props
}

// imageFile はNotionホストのURLならfile参照、それ以外はexternal参照を返す。
func imageFile(url string) property.FileItem {
	if strings.Contains(url, NotionHostedMarker) {
		return property.Hosted(imageFileName, url)
	}
	return property.External(imageFileName, url)
}

// UserFromPage はページをUserに変換する。pageがnilの場合はnilを返す。
func UserFromPage(page *notion.Page) *model.User {
	if page == nil {
		return nil
	}

	u := &model.User{ID: page.ID}
	if title, ok := property.Get[property.Title](page.Properties, UserName); ok {
		u.Name, _ = property.PlainText(title)
	}
	if email, ok := property.Get[property.Email](page.Properties, UserEmail); ok {
		u.Email = string(email)
	}
	if ts, ok := property.Timestamp(page.Properties, UserEmailVerified); ok {
		u.EmailVerified = &ts
	}
	if files, ok := property.Get[property.Files](page.Properties, UserImage); ok {
		if refs := property.FileRefs(files); len(refs) > 0 {
			u.Image = refs[0].URL
		}
	}
	return u
}
