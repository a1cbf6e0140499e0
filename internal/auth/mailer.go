package auth

import (
	"context"
	"log/slog"
)

// LogMailer はサインインリンクを送信せずログに出力するMailer。
// 開発環境とメール送信基盤がない環境で使う。
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer はLogMailerを生成する。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendSignInLink はリンクをINFOログに出力する。
func (m *LogMailer) SendSignInLink(ctx context.Context, to, link string) error {
	m.logger.InfoContext(ctx, "sign in link issued",
		slog.String("to", to),
		slog.String("link", link),
	)
	return nil
}

var _ Mailer = (*LogMailer)(nil)
