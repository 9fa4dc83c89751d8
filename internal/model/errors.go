package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, tracking, ratelimit, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL           = "INVALID_URL"
	ErrCodeInvalidSite          = "INVALID_SITE"
	ErrCodeInvalidCheckInterval = "INVALID_CHECK_INTERVAL"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeItemNotFound         = "ITEM_NOT_FOUND"
	ErrCodeSSRFBlocked          = "SSRF_BLOCKED"
	ErrCodeFetchFailed          = "FETCH_FAILED"
)

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewInvalidSiteError は対応外サイトのURLが登録された場合のエラーを生成する。
func NewInvalidSiteError(host string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSite,
		Message:  fmt.Sprintf("対応していないサイトです: %s", host),
		Category: "validation",
		Action:   "対応サイト一覧（GET /api/sites）に含まれるドメインの商品ページURLを入力してください。",
	}
}

// NewInvalidCheckIntervalError はチェック間隔が無効な場合のエラーを生成する。
func NewInvalidCheckIntervalError(seconds int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCheckInterval,
		Message:  fmt.Sprintf("無効なチェック間隔です: %d秒", seconds),
		Category: "validation",
		Action:   "チェック間隔は正の秒数で指定してください。",
	}
}

// NewRateLimitedError は登録レート上限エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "監視アイテムの登録数が時間あたりの上限に達しています。",
		Category: "ratelimit",
		Action:   "時間をおいてから再度登録してください。",
	}
}

// NewItemNotFoundError は監視アイテムが見つからない場合のエラーを生成する。
func NewItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定された監視アイテムが見つかりません: %s", itemID),
		Category: "tracking",
		Action:   "アイテムIDを確認してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "tracking",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}
