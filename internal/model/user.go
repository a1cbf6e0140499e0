// Package model はドメインモデルを定義する。
package model

import "time"

// User は認証対象のユーザーを表す。
// Emailの一意性はストアではなく呼び出し側（検索してから作成）で保証する。
type User struct {
	ID            string
	Name          string
	Email         string
	EmailVerified *time.Time
	Image         string

	// VerifiedEmail はemailVerifiedを書き込むかどうかのフラグ。
	// EmailVerifiedWhenFlagged ポリシーでのみ参照される。
	VerifiedEmail bool
}

// ProviderType はアカウントのプロバイダ種別。
type ProviderType string

// 定義済みプロバイダ種別
const (
	ProviderTypeOAuth       ProviderType = "oauth"
	ProviderTypeOIDC        ProviderType = "oidc"
	ProviderTypeEmail       ProviderType = "email"
	ProviderTypeCredentials ProviderType = "credentials"
)

// Account は外部プロバイダとユーザーの紐付けを表す。
// トークン類はすべて任意項目で、空文字は未設定として扱う。
type Account struct {
	ID                string
	UserID            string
	Type              ProviderType
	Provider          string
	ProviderAccountID string
	RefreshToken      string
	AccessToken       string
	ExpiresAt         *int64 // エポック秒
	TokenType         string
	Scope             string
	IDToken           string
	SessionState      string

	// OAuth1 の旧フィールド
	OAuthToken       string
	OAuthTokenSecret string
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID           string
	UserID       string
	SessionToken string
	Expires      time.Time
}

// SessionUpdate はセッション更新の入力。
// Expiresは SessionUpdateExtendExpiry モードでのみ書き込まれる。
type SessionUpdate struct {
	SessionToken string
	Expires      *time.Time
}

// SessionAndUser はセッションとその所有ユーザーの組。
type SessionAndUser struct {
	Session Session
	User    User
}

// VerificationToken はメール認証用のワンタイムトークン。
type VerificationToken struct {
	Identifier string
	Token      string
	Expires    time.Time
}
