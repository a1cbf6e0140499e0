// Package mapper はドメインレコードとNotionページのプロパティを相互変換する。
// 変換は純粋関数で、ストアへの呼び出しは行わない。
package mapper

import "fmt"

// Userデータベースのプロパティ名
const (
	UserName          = "name"
	UserEmail         = "email"
	UserEmailVerified = "emailVerified"
	UserImage         = "image"
	UserAccounts      = "accounts"
	UserSessions      = "sessions"
)

// Accountデータベースのプロパティ名
const (
	AccountProviderAccountID = "providerAccountId"
	AccountUserID            = "userId"
	AccountType              = "type"
	AccountProvider          = "provider"
	AccountRefreshToken      = "refresh_token"
	AccountAccessToken       = "access_token"
	AccountExpiresAt         = "expires_at"
	AccountTokenType         = "token_type"
	AccountScope             = "scope"
	AccountIDToken           = "id_token"
	AccountSessionState      = "session_state"
	AccountOAuthToken        = "oauth_token"
	AccountOAuthTokenSecret  = "oauth_token_secret"
)

// Sessionデータベースのプロパティ名
const (
	SessionToken   = "sessionToken"
	SessionUserID  = "userId"
	SessionExpires = "expires"
)

// VerificationTokenデータベースのプロパティ名
const (
	VerificationIdentifier = "identifier"
	VerificationToken      = "token"
	VerificationExpires    = "expires"
)

// NotionHostedMarker はNotionのファイルストレージでホストされたURLに含まれるホスト名。
// このURLはexternalではなくfile参照として書き込む必要がある。
const NotionHostedMarker = "secure.notion-static.com"

// imageFileName はimageプロパティに書き込むファイル名。
const imageFileName = "avatar"

// EmailVerifiedPolicy はUserのemailVerifiedを書き込む条件。
type EmailVerifiedPolicy int

const (
	// EmailVerifiedWhenFlagged はUser.VerifiedEmailがtrueの場合のみ書き込む。
	// 時刻がnilなら0を書き込む。
	EmailVerifiedWhenFlagged EmailVerifiedPolicy = iota
	// EmailVerifiedWhenPresent はUser.EmailVerifiedが設定されている場合に書き込む。
	EmailVerifiedWhenPresent
)

// ParseEmailVerifiedPolicy は設定値からポリシーを解釈する。
func ParseEmailVerifiedPolicy(s string) (EmailVerifiedPolicy, error) {
	switch s {
	case "", "flagged":
		return EmailVerifiedWhenFlagged, nil
	case "present":
		return EmailVerifiedWhenPresent, nil
	default:
		return 0, fmt.Errorf("unknown email verified policy: %q", s)
	}
}

// SessionUpdateMode はUpdateSessionで書き込む項目。
type SessionUpdateMode int

const (
	// SessionUpdateTokenOnly はsessionTokenのみを書き直す。
	SessionUpdateTokenOnly SessionUpdateMode = iota
	// SessionUpdateExtendExpiry は指定があればexpiresも書き込む。
	SessionUpdateExtendExpiry
)

// ParseSessionUpdateMode は設定値からモードを解釈する。
func ParseSessionUpdateMode(s string) (SessionUpdateMode, error) {
	switch s {
	case "", "token_only":
		return SessionUpdateTokenOnly, nil
	case "extend_expiry":
		return SessionUpdateExtendExpiry, nil
	default:
		return 0, fmt.Errorf("unknown session update mode: %q", s)
	}
}
