// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/notionauth/internal/model"
)

// 退会処理のエラー
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrWithdrawFailed = errors.New("withdraw failed")
)

// Store は退会処理が利用する永続化操作。*adapter.Adapter が実装する。
type Store interface {
	GetUser(ctx context.Context, id string) *model.User
	ListAccounts(ctx context.Context, userID string) []model.Account
	UnlinkAccount(ctx context.Context, provider, providerAccountID string)
	DeleteSession(ctx context.Context, sessionToken string)
	DeleteUser(ctx context.Context, id string) *model.User
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: accounts → 現在のsession → user。すべてアーカイブで行う。
// 他の端末のセッションはユーザーが解決できなくなるため無効になり、期限切れ後にクリーンアップで消える。
func (s *Service) Withdraw(ctx context.Context, userID, sessionToken string) error {
	// ユーザー存在確認
	if s.store.GetUser(ctx, userID) == nil {
		return ErrUserNotFound
	}

	s.logger.Info("withdraw started", slog.String("user_id", userID))

	// 1. 紐付くアカウントを解除（同じプロバイダIDで再登録できるようにする）
	for _, account := range s.store.ListAccounts(ctx, userID) {
		s.store.UnlinkAccount(ctx, account.Provider, account.ProviderAccountID)
	}

	// 2. 現在のセッションを削除
	if sessionToken != "" {
		s.store.DeleteSession(ctx, sessionToken)
	}

	// 3. ユーザーをアーカイブ
	if s.store.DeleteUser(ctx, userID) == nil {
		return fmt.Errorf("%w: user_id=%s", ErrWithdrawFailed, userID)
	}

	s.logger.Info("withdraw completed", slog.String("user_id", userID))
	return nil
}
