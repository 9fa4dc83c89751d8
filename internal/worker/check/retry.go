package check

import (
	"errors"
	"time"

	"github.com/hitoshi/zaiko/internal/fetch"
)

const (
	// retryBaseDelay はチェック内リトライの初回遅延。
	retryBaseDelay = 500 * time.Millisecond
)

// IsTransientFetchError は同一チェック内での短時間リトライの対象となる
// 一時的な失敗かを判定する。
// ネットワークエラー、タイムアウト、429および5xxのHTTPステータスが対象。
// 4xx（429を除く）は恒久的な失敗としてリトライしない。
func IsTransientFetchError(err error) bool {
	var netErr *fetch.NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var timeoutErr *fetch.TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	var renderErr *fetch.RenderError
	if errors.As(err, &renderErr) {
		return true
	}
	var statusErr *fetch.HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == 429 || statusErr.Code >= 500
	}
	return false
}

// RetryDelay はチェック内リトライのn回目（0始まり）の遅延を返す。
// 初回500ms、2倍ずつ増加する。
func RetryDelay(attempt int) time.Duration {
	delay := retryBaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// FailureReason はメトリクス用の失敗理由ラベルを返す。
func FailureReason(err error) string {
	var timeoutErr *fetch.TimeoutError
	if errors.As(err, &timeoutErr) {
		return "timeout"
	}
	var statusErr *fetch.HTTPStatusError
	if errors.As(err, &statusErr) {
		return "http_status"
	}
	var renderErr *fetch.RenderError
	if errors.As(err, &renderErr) {
		return "render"
	}
	var netErr *fetch.NetworkError
	if errors.As(err, &netErr) {
		return "network"
	}
	return "unknown"
}
