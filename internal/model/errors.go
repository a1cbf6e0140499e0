package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeSignInFailed       = "SIGN_IN_FAILED"
	ErrCodeAccountNotLinked   = "ACCOUNT_NOT_LINKED"
	ErrCodeProviderDisabled   = "PROVIDER_DISABLED"
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeVerificationFailed = "VERIFICATION_FAILED"
	ErrCodeInvalidState       = "INVALID_STATE"
	ErrCodeCSRFFailed         = "CSRF_FAILED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewSignInFailedError はサインイン失敗エラーを生成する。
// ストアの一時的な障害でもこのエラーになる。
func NewSignInFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeSignInFailed,
		Message:  "サインインに失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewAccountNotLinkedError は同じメールアドレスのユーザーが別のプロバイダで登録済みの場合のエラーを生成する。
func NewAccountNotLinkedError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotLinked,
		Message:  fmt.Sprintf("このメールアドレスは別の方法で登録されています（%s）。", provider),
		Category: "auth",
		Action:   "最初に使用したサインイン方法でログインしてください。",
	}
}

// NewProviderDisabledError はプロバイダが設定されていない場合のエラーを生成する。
func NewProviderDisabledError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderDisabled,
		Message:  fmt.Sprintf("%s でのサインインは無効です。", provider),
		Category: "auth",
		Action:   "別のサインイン方法を選択してください。",
	}
}

// NewInvalidEmailError は無効なメールアドレスのエラーを生成する。
func NewInvalidEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  fmt.Sprintf("無効なメールアドレスです: %s", email),
		Category: "validation",
		Action:   "正しいメールアドレスを入力してください。",
	}
}

// NewVerificationFailedError はメール認証リンクが無効・期限切れ・使用済みの場合のエラーを生成する。
func NewVerificationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeVerificationFailed,
		Message:  "認証リンクが無効か、有効期限が切れています。",
		Category: "auth",
		Action:   "もう一度サインインリンクを送信してください。",
	}
}

// NewInvalidStateError はOAuthのstate検証に失敗した場合のエラーを生成する。
func NewInvalidStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  "認証リクエストが無効です。",
		Category: "auth",
		Action:   "最初からサインインをやり直してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "サインインしてください。",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "リクエストを検証できませんでした。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
