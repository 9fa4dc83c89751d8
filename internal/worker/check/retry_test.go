package check

import (
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/zaiko/internal/fetch"
)

// 一時的な失敗と恒久的な失敗が正しく分類されることを検証
func TestIsTransientFetchError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"ネットワークエラーは一時的", &fetch.NetworkError{URL: "u", Err: errors.New("refused")}, true},
		{"タイムアウトは一時的", &fetch.TimeoutError{URL: "u", Err: errors.New("deadline")}, true},
		{"レンダリングエラーは一時的", &fetch.RenderError{URL: "u", Err: errors.New("crashed")}, true},
		{"429は一時的", &fetch.HTTPStatusError{URL: "u", Code: 429}, true},
		{"500は一時的", &fetch.HTTPStatusError{URL: "u", Code: 500}, true},
		{"503は一時的", &fetch.HTTPStatusError{URL: "u", Code: 503}, true},
		{"404は恒久的", &fetch.HTTPStatusError{URL: "u", Code: 404}, false},
		{"403は恒久的", &fetch.HTTPStatusError{URL: "u", Code: 403}, false},
		{"未知のエラーは恒久的", errors.New("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransientFetchError(tt.err); got != tt.want {
				t.Errorf("IsTransientFetchError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// リトライ遅延が指数的に増加することを検証
func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
	}

	for _, tt := range tests {
		if got := RetryDelay(tt.attempt); got != tt.want {
			t.Errorf("RetryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

// メトリクス用の失敗理由ラベルが正しく分類されることを検証
func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&fetch.TimeoutError{URL: "u", Err: errors.New("x")}, "timeout"},
		{&fetch.HTTPStatusError{URL: "u", Code: 500}, "http_status"},
		{&fetch.RenderError{URL: "u", Err: errors.New("x")}, "render"},
		{&fetch.NetworkError{URL: "u", Err: errors.New("x")}, "network"},
		{errors.New("x"), "unknown"},
	}

	for _, tt := range tests {
		if got := FailureReason(tt.err); got != tt.want {
			t.Errorf("FailureReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
