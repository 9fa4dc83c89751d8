package security

import "testing"

// TestTextSanitizer_StripsTags はHTMLタグが除去されることをテストする。
func TestTextSanitizer_StripsTags(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "限定フィギュア Vol.3", "限定フィギュア Vol.3"},
		{"強調タグを除去", "<strong>限定</strong>フィギュア", "限定フィギュア"},
		{"scriptタグを除去", `商品名<script>alert("xss")</script>`, "商品名"},
		{"imgタグを除去", `商品 <img src="x" onerror="alert(1)">`, "商品"},
		{"空文字列は空文字列", "", ""},
		{"連続空白を畳む", "商品   名\n\tテスト", "商品 名 テスト"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestTextSanitizer_Idempotent はサニタイズが冪等であることをテストする。
func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()

	input := `<b>限定</b>モデル <a href="javascript:x()">リンク</a>`
	once := s.Sanitize(input)
	twice := s.Sanitize(once)

	if once != twice {
		t.Errorf("Sanitize is not idempotent: once=%q twice=%q", once, twice)
	}
}

// textSanitizerはTextSanitizerServiceインターフェースを満たすことを検証
func TestTextSanitizer_ImplementsInterface(t *testing.T) {
	var _ TextSanitizerService = (*textSanitizer)(nil)
}
