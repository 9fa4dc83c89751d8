package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/zaiko/internal/site"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Renderer はJavaScript必須サイト向けのレンダリング取得のインターフェース。
type Renderer interface {
	// Render はヘッドレスブラウザでページを開き、描画後のHTMLを返す。
	Render(ctx context.Context, url string) (string, error)
}

// defaultHeaders は全リクエストに付与するブラウザ相当のヘッダ。
// サイト設定のrequestHeadersが同名ヘッダを上書きする。
var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (compatible; StockTracker/1.0)",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "he-IL,he;q=0.9,en;q=0.8",
	"Accept-Encoding": "gzip, deflate",
}

// Fetcher は商品ページのHTML取得を行う。
// 静的サイトはSSRF防止付きHTTPクライアントで、requiresRenderingの
// サイトはRendererで取得する。内部でのリトライは行わない。
type Fetcher struct {
	ssrfGuard   SSRFValidator
	renderer    Renderer
	pacer       *HostPacer
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// rendererはnilでもよく、その場合requiresRenderingのサイトも静的取得となる。
func NewFetcher(
	ssrfGuard SSRFValidator,
	renderer Renderer,
	pacer *HostPacer,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	return &Fetcher{
		ssrfGuard:   ssrfGuard,
		renderer:    renderer,
		pacer:       pacer,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Fetch は商品ページのHTMLを取得する。
// 失敗はNetworkError / HTTPStatusError / TimeoutError / RenderErrorのいずれかで返す。
func (f *Fetcher) Fetch(ctx context.Context, pageURL string, cfg *site.Config) (string, error) {
	if err := f.ssrfGuard.ValidateURL(pageURL); err != nil {
		return "", &NetworkError{URL: pageURL, Err: err}
	}

	// ホスト単位の律速
	if f.pacer != nil {
		parsed, err := url.Parse(pageURL)
		if err != nil {
			return "", &NetworkError{URL: pageURL, Err: err}
		}
		if err := f.pacer.Wait(ctx, parsed.Hostname()); err != nil {
			return "", &TimeoutError{URL: pageURL, Err: err}
		}
	}

	if cfg != nil && cfg.RequiresRendering && f.renderer != nil {
		return f.fetchRendered(ctx, pageURL)
	}
	return f.fetchStatic(ctx, pageURL, cfg)
}

// fetchStatic はSSRF防止付きクライアントでHTMLを取得する。
func (f *Fetcher) fetchStatic(ctx context.Context, pageURL string, cfg *site.Config) (string, error) {
	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxBodySize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &NetworkError{URL: pageURL, Err: err}
	}

	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	if cfg != nil {
		for k, v := range cfg.RequestHeaders {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", &TimeoutError{URL: pageURL, Err: err}
		}
		return "", &NetworkError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPStatusError{URL: pageURL, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		if isTimeout(err) {
			return "", &TimeoutError{URL: pageURL, Err: err}
		}
		return "", &NetworkError{URL: pageURL, Err: fmt.Errorf("レスポンスの読み取りに失敗: %w", err)}
	}

	return string(body), nil
}

// fetchRendered はRendererで描画後のHTMLを取得する。
func (f *Fetcher) fetchRendered(ctx context.Context, pageURL string) (string, error) {
	html, err := f.renderer.Render(ctx, pageURL)
	if err != nil {
		if isTimeout(err) {
			return "", &TimeoutError{URL: pageURL, Err: err}
		}
		return "", &RenderError{URL: pageURL, Err: err}
	}
	return html, nil
}

// isTimeout はタイムアウト起因のエラーかを判定する。
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
