// Package fetch は商品ページのHTTP取得とレンダリング取得を提供する。
package fetch

import "fmt"

// NetworkError は接続失敗・DNS解決失敗などのネットワークレベルの失敗を表す。
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("ネットワークエラー: %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError は2xx以外のHTTPステータスを表す。
type HTTPStatusError struct {
	URL  string
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTPステータスエラー: %s: status=%d", e.URL, e.Code)
}

// TimeoutError は取得のタイムアウトを表す。
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("タイムアウト: %s: %v", e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// RenderError はヘッドレスブラウザによるレンダリング取得の失敗を表す。
type RenderError struct {
	URL string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("レンダリングエラー: %s: %v", e.URL, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
