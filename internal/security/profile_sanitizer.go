// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizer はOAuthプロバイダーから受け取ったプロフィール項目を
// Notionに保存する前に無害化する。
// 名前はbluemondayのStrictPolicyで全タグを除去したプレーンテキストにする。
// 画像URLはhttpsの絶対URLのみ通過させる。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxNameLength はNotionのテキスト1要素の上限に合わせた名前の最大文字数。
const maxNameLength = 2000

// ProfileSanitizer はプロフィール項目のサニタイズを行う。
// bluemondayのポリシーはスレッドセーフなため、複数のリクエストから共有できる。
type ProfileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerを生成する。
func NewProfileSanitizer() *ProfileSanitizer {
	return &ProfileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeName はHTMLタグを除去し、空白を正規化した名前を返す。
// bluemondayがエスケープした文字実体参照は元の文字に戻す。
// Notionにはプレーンテキストとして保存されるため、エスケープは不要。
func (s *ProfileSanitizer) SanitizeName(name string) string {
	if name == "" {
		return ""
	}
	cleaned := html.UnescapeString(s.policy.Sanitize(name))
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	runes := []rune(cleaned)
	if len(runes) > maxNameLength {
		cleaned = string(runes[:maxNameLength])
	}
	return cleaned
}

// SanitizeImageURL はhttpsの絶対URLのみを返す。
// それ以外（http, javascript, data, 相対URL等）は空文字列を返す。
func (s *ProfileSanitizer) SanitizeImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if !strings.EqualFold(u.Scheme, "https") || u.Host == "" || u.User != nil {
		return ""
	}
	return u.String()
}
