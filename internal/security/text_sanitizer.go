// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService は商品ページから抽出したテキスト（商品名など）を
// サニタイズし、ストアドXSSなどのセキュリティリスクからユーザーを保護する。
// bluemondayのStrictPolicyですべてのHTMLタグを除去し、プレーンテキストのみを残す。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は抽出テキストのサニタイズ機能のインターフェースを定義する。
// 抽出した商品名の保存前およびAPI応答時に使用される。
type TextSanitizerService interface {
	// Sanitize は入力からすべてのHTMLタグを除去し、前後の空白を畳んだ
	// プレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはタグをすべて除去し、テキストノードのみを通過させる。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを除去し、連続する空白を1つに畳んで返す。
func (s *textSanitizer) Sanitize(raw string) string {
	clean := s.policy.Sanitize(raw)
	return strings.Join(strings.Fields(clean), " ")
}
