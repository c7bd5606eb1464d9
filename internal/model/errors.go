// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, content, upload, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeNotAuthorized        = "NOT_AUTHORIZED"
	ErrCodeAccountDeactivated   = "ACCOUNT_DEACTIVATED"
	ErrCodeProviderUnavailable  = "PROVIDER_UNAVAILABLE"
	ErrCodeUploadTransferFailed = "UPLOAD_TRANSFER_FAILED"
	ErrCodeImageDecodeFailed    = "IMAGE_DECODE_FAILED"
	ErrCodeImageEncodeFailed    = "IMAGE_ENCODE_FAILED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeProjectNotFound      = "PROJECT_NOT_FOUND"
	ErrCodeMessageNotFound      = "MESSAGE_NOT_FOUND"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
)

// WarnCodeSizeBudgetUnmet はサイズ予算未達の警告コード。
// 品質フロア到達後のベストエフォート結果はエラーではなく、
// レスポンスのwarningフィールドでこのコードを返す。
const WarnCodeSizeBudgetUnmet = "SIZE_BUDGET_UNMET"

// NewInvalidCredentialsError は認証失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewNotAuthorizedError は管理者権限なしエラーを生成する。
// 認証は成功したが、有効な管理者レコードが存在しない場合に使用する。
func NewNotAuthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthorized,
		Message:  "このアカウントには管理者権限がありません。",
		Category: "auth",
		Action:   "管理者として登録されたアカウントでサインインしてください。",
	}
}

// NewAccountDeactivatedError はアカウント無効化エラーを生成する。
func NewAccountDeactivatedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountDeactivated,
		Message:  "このアカウントは無効化されています。",
		Category: "auth",
		Action:   "サインインし直すか、運用担当者に連絡してください。",
	}
}

// NewProviderUnavailableError はプロバイダー接続失敗エラーを生成する。
func NewProviderUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeProviderUnavailable,
		Message:  "外部サービスとの通信に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUploadTransferFailedError はアップロード転送失敗エラーを生成する。
func NewUploadTransferFailedError(statusCode int) *APIError {
	return &APIError{
		Code:     ErrCodeUploadTransferFailed,
		Message:  fmt.Sprintf("ストレージへの転送がステータス %d で失敗しました。", statusCode),
		Category: "upload",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewImageDecodeError は画像デコード失敗エラーを生成する。
func NewImageDecodeError() *APIError {
	return &APIError{
		Code:     ErrCodeImageDecodeFailed,
		Message:  "この画像を処理できませんでした。",
		Category: "upload",
		Action:   "JPEG、PNG、GIFのいずれかの画像ファイルを指定してください。",
	}
}

// NewImageEncodeError は画像エンコード失敗エラーを生成する。
func NewImageEncodeError() *APIError {
	return &APIError{
		Code:     ErrCodeImageEncodeFailed,
		Message:  "この画像を処理できませんでした。",
		Category: "upload",
		Action:   "別の画像ファイルで再度お試しください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewProjectNotFoundError はプロジェクト未検出エラーを生成する。
func NewProjectNotFoundError(projectID string) *APIError {
	return &APIError{
		Code:     ErrCodeProjectNotFound,
		Message:  fmt.Sprintf("指定されたプロジェクトが見つかりません: %s", projectID),
		Category: "content",
		Action:   "プロジェクトIDを確認してください。",
	}
}

// NewMessageNotFoundError は問い合わせメッセージ未検出エラーを生成する。
func NewMessageNotFoundError(messageID string) *APIError {
	return &APIError{
		Code:     ErrCodeMessageNotFound,
		Message:  fmt.Sprintf("指定されたメッセージが見つかりません: %s", messageID),
		Category: "content",
		Action:   "メッセージIDを確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "サインインしてください。",
	}
}
