package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/zaiko/internal/site"
)

// mockSSRFGuard はSSRFValidatorのテスト用モック。
// httptestサーバー（ループバック）へのリクエストを通すため素のクライアントを返す。
type mockSSRFGuard struct {
	validateErr error
}

func (m *mockSSRFGuard) ValidateURL(_ string) error {
	return m.validateErr
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

// mockRenderer はRendererのテスト用モック。
type mockRenderer struct {
	html string
	err  error
}

func (m *mockRenderer) Render(_ context.Context, _ string) (string, error) {
	return m.html, m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSiteConfig() *site.Config {
	return &site.Config{
		SiteKey:              "test_store",
		Domains:              []string{"store.example.com"},
		StockSelector:        ".stock",
		OutOfStockIndicators: []string{"在庫切れ"},
		RequestHeaders:       map[string]string{"X-Custom": "zaiko"},
	}
}

// 静的取得が成功しHTMLが返ることを検証
func TestFetcher_Fetch_Static_Success(t *testing.T) {
	html := `<html><body><div class="stock">在庫あり</div></body></html>`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(html))
	}))
	defer ts.Close()

	f := NewFetcher(&mockSSRFGuard{}, nil, nil, testLogger(), 5*time.Second, 1<<20)

	got, err := f.Fetch(context.Background(), ts.URL, testSiteConfig())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != html {
		t.Errorf("html = %q, want %q", got, html)
	}
}

// 既定ヘッダとサイト設定のヘッダがリクエストに付与されることを検証
func TestFetcher_Fetch_SendsHeaders(t *testing.T) {
	var gotUA, gotCustom string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Custom")
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	f := NewFetcher(&mockSSRFGuard{}, nil, nil, testLogger(), 5*time.Second, 1<<20)

	if _, err := f.Fetch(context.Background(), ts.URL, testSiteConfig()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(gotUA, "StockTracker") {
		t.Errorf("User-Agent = %q, want StockTracker UA", gotUA)
	}
	if gotCustom != "zaiko" {
		t.Errorf("X-Custom = %q, want %q", gotCustom, "zaiko")
	}
}

// 2xx以外のステータスがHTTPStatusErrorとなることを検証
func TestFetcher_Fetch_HTTPStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	f := NewFetcher(&mockSSRFGuard{}, nil, nil, testLogger(), 5*time.Second, 1<<20)

	_, err := f.Fetch(context.Background(), ts.URL, testSiteConfig())
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %T: %v", err, err)
	}
	if statusErr.Code != http.StatusServiceUnavailable {
		t.Errorf("Code = %d, want %d", statusErr.Code, http.StatusServiceUnavailable)
	}
}

// 接続失敗がNetworkErrorとなることを検証
func TestFetcher_Fetch_NetworkError(t *testing.T) {
	// 閉じたサーバーのURLへアクセスして接続失敗させる
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	f := NewFetcher(&mockSSRFGuard{}, nil, nil, testLogger(), 5*time.Second, 1<<20)

	_, err := f.Fetch(context.Background(), url, testSiteConfig())
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %T: %v", err, err)
	}
}

// SSRF検証に失敗したURLはリクエストせずNetworkErrorとなることを検証
func TestFetcher_Fetch_SSRFBlocked(t *testing.T) {
	requested := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = true
	}))
	defer ts.Close()

	guard := &mockSSRFGuard{validateErr: errors.New("blocked IP address")}
	f := NewFetcher(guard, nil, nil, testLogger(), 5*time.Second, 1<<20)

	_, err := f.Fetch(context.Background(), ts.URL, testSiteConfig())
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %T: %v", err, err)
	}
	if requested {
		t.Error("request should not have been sent for a blocked URL")
	}
}

// 遅いレスポンスがTimeoutErrorとなることを検証
func TestFetcher_Fetch_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	f := NewFetcher(&mockSSRFGuard{}, nil, nil, testLogger(), 50*time.Millisecond, 1<<20)

	_, err := f.Fetch(context.Background(), ts.URL, testSiteConfig())
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %T: %v", err, err)
	}
}

// レスポンスボディが上限サイズで打ち切られることを検証
func TestFetcher_Fetch_BodySizeLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 1000)))
	}))
	defer ts.Close()

	f := NewFetcher(&mockSSRFGuard{}, nil, nil, testLogger(), 5*time.Second, 100)

	got, err := f.Fetch(context.Background(), ts.URL, testSiteConfig())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 100 {
		t.Errorf("len(html) = %d, want 100", len(got))
	}
}

// requiresRenderingのサイトでRendererが使用されることを検証
func TestFetcher_Fetch_RenderedPath(t *testing.T) {
	cfg := testSiteConfig()
	cfg.RequiresRendering = true

	renderer := &mockRenderer{html: "<html>rendered</html>"}
	f := NewFetcher(&mockSSRFGuard{}, renderer, nil, testLogger(), 5*time.Second, 1<<20)

	got, err := f.Fetch(context.Background(), "https://store.example.com/p/1", cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "<html>rendered</html>" {
		t.Errorf("html = %q, want rendered output", got)
	}
}

// レンダリング失敗がRenderErrorとなることを検証
func TestFetcher_Fetch_RenderError(t *testing.T) {
	cfg := testSiteConfig()
	cfg.RequiresRendering = true

	renderer := &mockRenderer{err: errors.New("browser crashed")}
	f := NewFetcher(&mockSSRFGuard{}, renderer, nil, testLogger(), 5*time.Second, 1<<20)

	_, err := f.Fetch(context.Background(), "https://store.example.com/p/1", cfg)
	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError, got %T: %v", err, err)
	}
}

// Rendererが未設定の場合はrequiresRenderingでも静的取得となることを検証
func TestFetcher_Fetch_NoRenderer_FallsBackToStatic(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("static"))
	}))
	defer ts.Close()

	cfg := testSiteConfig()
	cfg.RequiresRendering = true

	f := NewFetcher(&mockSSRFGuard{}, nil, nil, testLogger(), 5*time.Second, 1<<20)

	got, err := f.Fetch(context.Background(), ts.URL, cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "static" {
		t.Errorf("html = %q, want %q", got, "static")
	}
}
