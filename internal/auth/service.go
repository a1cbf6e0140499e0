// Package auth はOAuth・メールリンクによるサインインとセッション管理を提供する。
// 永続化はすべてStorage（Notionアダプタ）を経由する。
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/hitoshi/notionauth/internal/model"
)

// 認証処理のエラー。ハンドラーはerrors.Isで判定してレスポンスを決める。
var (
	ErrProviderDisabled    = errors.New("oauth provider is not configured")
	ErrAccountNotLinked    = errors.New("email is already registered with another sign-in method")
	ErrSignInFailed        = errors.New("sign in failed")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrVerificationFailed  = errors.New("verification token is invalid or expired")
	ErrSessionNotFound     = errors.New("session not found or expired")
	ErrSessionTokenMissing = errors.New("session token is required")
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Image          string
	Provider       string // "github" 等
	Token          *oauth2.Token
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// Name はプロバイダ名を返す。Accountのproviderに保存される。
	Name() string
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// Mailer はサインインリンクを送信する。
type Mailer interface {
	SendSignInLink(ctx context.Context, to, link string) error
}

// Storage は認証サービスが利用する永続化操作。*adapter.Adapter が実装する。
// nilの戻り値は「見つからない」または「ストアに到達できない」を意味する。
type Storage interface {
	CreateUser(ctx context.Context, u model.User) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) *model.User
	GetUserByAccount(ctx context.Context, provider, providerAccountID string) *model.User
	UpdateUser(ctx context.Context, u model.User) (*model.User, error)
	LinkAccount(ctx context.Context, account model.Account) *model.Account
	CreateSession(ctx context.Context, s model.Session) *model.Session
	GetSessionAndUser(ctx context.Context, sessionToken string) *model.SessionAndUser
	UpdateSession(ctx context.Context, u model.SessionUpdate) *model.Session
	DeleteSession(ctx context.Context, sessionToken string)
	CreateVerificationToken(ctx context.Context, v model.VerificationToken) *model.VerificationToken
	UseVerificationToken(ctx context.Context, identifier, token string) *model.VerificationToken
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge        time.Duration // セッション有効期間
	SessionUpdateAge     time.Duration // この間隔ごとにセッション有効期限を延長する
	VerificationTokenTTL time.Duration // メールリンクの有効期間
	Secret               string        // メールリンクトークンのハッシュに使う
	BaseURL              string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth   OAuthProvider
	storage Storage
	mailer  Mailer
	config  ServiceConfig
	now     func() time.Time
}

// NewService はServiceを生成する。oauthがnilの場合、OAuthサインインは無効になる。
func NewService(oauth OAuthProvider, storage Storage, mailer Mailer, config ServiceConfig) *Service {
	return &Service{
		oauth:   oauth,
		storage: storage,
		mailer:  mailer,
		config:  config,
		now:     time.Now,
	}
}

// OAuthEnabled はOAuthサインインが設定されているかを返す。
func (s *Service) OAuthEnabled() bool {
	return s.oauth != nil
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) (string, error) {
	if s.oauth == nil {
		return "", ErrProviderDisabled
	}
	return s.oauth.GetLoginURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 紐付け済みアカウントがあればそのユーザーでログインする。
// 未登録の場合はユーザーとアカウントを作成する。ただし同じメールアドレスのユーザーが
// 既に存在する場合は自動で紐付けず、ErrAccountNotLinkedを返す。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if s.oauth == nil {
		return nil, ErrProviderDisabled
	}

	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}
	info.Email = normalizeEmail(info.Email)

	// 2. 紐付け済みアカウントから既存ユーザーを検索
	user := s.storage.GetUserByAccount(ctx, info.Provider, info.ProviderUserID)
	if user != nil {
		slog.Info("existing user signed in",
			slog.String("user_id", user.ID),
			slog.String("provider", info.Provider),
		)
	} else {
		user, err = s.registerOAuthUser(ctx, info)
		if err != nil {
			return nil, err
		}
	}

	// 3. セッションを発行
	return s.createSession(ctx, user.ID)
}

// registerOAuthUser はOAuthプロフィールからユーザーとアカウントを作成する。
func (s *Service) registerOAuthUser(ctx context.Context, info *OAuthUserInfo) (*model.User, error) {
	if info.Email != "" {
		if existing := s.storage.GetUserByEmail(ctx, info.Email); existing != nil {
			slog.Warn("oauth account not linked",
				slog.String("user_id", existing.ID),
				slog.String("provider", info.Provider),
			)
			return nil, ErrAccountNotLinked
		}
	}

	user, err := s.storage.CreateUser(ctx, model.User{
		Name:  info.Name,
		Email: info.Email,
		Image: info.Image,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignInFailed, err)
	}

	account := model.Account{
		UserID:            user.ID,
		Type:              model.ProviderTypeOAuth,
		Provider:          info.Provider,
		ProviderAccountID: info.ProviderUserID,
	}
	if tok := info.Token; tok != nil {
		account.AccessToken = tok.AccessToken
		account.RefreshToken = tok.RefreshToken
		account.TokenType = strings.ToLower(tok.TokenType)
		if !tok.Expiry.IsZero() {
			expiresAt := tok.Expiry.Unix()
			account.ExpiresAt = &expiresAt
		}
		if scope, ok := tok.Extra("scope").(string); ok {
			account.Scope = scope
		}
	}
	if s.storage.LinkAccount(ctx, account) == nil {
		return nil, fmt.Errorf("%w: failed to link %s account", ErrSignInFailed, info.Provider)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("provider", info.Provider),
	)
	return user, nil
}

// RequestEmailSignIn はメールアドレス宛にサインインリンクを送信する。
// ストアに保存するのはトークンのハッシュのみで、生のトークンはリンクにだけ含まれる。
func (s *Service) RequestEmailSignIn(ctx context.Context, email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEmail, email)
	}
	identifier := normalizeEmail(addr.Address)

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}

	created := s.storage.CreateVerificationToken(ctx, model.VerificationToken{
		Identifier: identifier,
		Token:      s.hashToken(token),
		Expires:    s.now().Add(s.config.VerificationTokenTTL),
	})
	if created == nil {
		return fmt.Errorf("%w: failed to store verification token", ErrSignInFailed)
	}

	link := s.config.BaseURL + "/auth/email/callback?" + url.Values{
		"email": {identifier},
		"token": {token},
	}.Encode()
	if err := s.mailer.SendSignInLink(ctx, identifier, link); err != nil {
		return fmt.Errorf("failed to send sign in link: %w", err)
	}
	return nil
}

// HandleEmailCallback はメールリンクのトークンを消費し、セッションを発行する。
// 未登録のメールアドレスならユーザーを作成し、emailVerifiedを記録する。
func (s *Service) HandleEmailCallback(ctx context.Context, email, token string) (*model.Session, error) {
	identifier := normalizeEmail(email)
	if identifier == "" || token == "" {
		return nil, ErrVerificationFailed
	}

	// 1. トークンを消費（1回限り）
	used := s.storage.UseVerificationToken(ctx, identifier, s.hashToken(token))
	if used == nil {
		return nil, ErrVerificationFailed
	}
	now := s.now()
	if used.Expires.Before(now) {
		return nil, ErrVerificationFailed
	}

	// 2. ユーザーを検索または作成
	user := s.storage.GetUserByEmail(ctx, identifier)
	switch {
	case user == nil:
		created, err := s.storage.CreateUser(ctx, model.User{
			Name:          identifier,
			Email:         identifier,
			EmailVerified: &now,
			VerifiedEmail: true,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSignInFailed, err)
		}
		user = created
		slog.Info("new user created", slog.String("user_id", user.ID), slog.String("provider", "email"))
	case user.EmailVerified == nil:
		user.EmailVerified = &now
		user.VerifiedEmail = true
		if _, err := s.storage.UpdateUser(ctx, *user); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSignInFailed, err)
		}
	}

	// 3. セッションを発行
	return s.createSession(ctx, user.ID)
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return ErrSessionTokenMissing
	}

	s.storage.DeleteSession(ctx, sessionToken)
	slog.Info("user logged out")
	return nil
}

// CurrentSession はセッショントークンから有効なセッションとユーザーを取得する。
// 期限切れのセッションは削除してErrSessionNotFoundを返す。
// 最終延長からSessionUpdateAgeが経過していれば有効期限を延長する。
func (s *Service) CurrentSession(ctx context.Context, sessionToken string) (*model.SessionAndUser, error) {
	if sessionToken == "" {
		return nil, ErrSessionNotFound
	}

	found := s.storage.GetSessionAndUser(ctx, sessionToken)
	if found == nil {
		return nil, ErrSessionNotFound
	}

	now := s.now()
	if !found.Session.Expires.After(now) {
		s.storage.DeleteSession(ctx, sessionToken)
		return nil, ErrSessionNotFound
	}

	if s.config.SessionUpdateAge > 0 {
		lastExtended := found.Session.Expires.Add(-s.config.SessionMaxAge)
		if now.Sub(lastExtended) >= s.config.SessionUpdateAge {
			expires := now.Add(s.config.SessionMaxAge)
			if updated := s.storage.UpdateSession(ctx, model.SessionUpdate{
				SessionToken: sessionToken,
				Expires:      &expires,
			}); updated != nil {
				found.Session = *updated
			}
		}
	}
	return found, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session := s.storage.CreateSession(ctx, model.Session{
		UserID:       userID,
		SessionToken: token,
		Expires:      s.now().Add(s.config.SessionMaxAge),
	})
	if session == nil {
		return nil, fmt.Errorf("%w: failed to save session", ErrSignInFailed)
	}
	return session, nil
}

// normalizeEmail はメールアドレスを照合用に小文字化する。
// OAuthとメールリンクの両方の経路で適用する。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// hashToken はメールリンクのトークンをシークレット付きでハッシュする。
func (s *Service) hashToken(token string) string {
	sum := sha256.Sum256([]byte(token + s.config.Secret))
	return hex.EncodeToString(sum[:])
}

// generateToken は暗号的に安全なトークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
