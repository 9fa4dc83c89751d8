package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeRenderer はchromedpを使用したJavaScript必須サイト向けのレンダラー。
// リクエストごとにブラウザコンテキストを生成し、描画完了後のHTMLを返す。
type ChromeRenderer struct {
	logger   *slog.Logger
	timeout  time.Duration
	headless bool
}

// NewChromeRenderer はChromeRendererを生成する。
func NewChromeRenderer(logger *slog.Logger, timeout time.Duration, headless bool) *ChromeRenderer {
	return &ChromeRenderer{
		logger:   logger,
		timeout:  timeout,
		headless: headless,
	}
}

// allocatorOptions はコンテナ環境向けのChromium起動フラグを返す。
func (r *ChromeRenderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{},
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-zygote", true),
	)
	opts = append(opts, chromedp.Flag("headless", r.headless))
	return opts
}

// Render はページを開き、DOM構築完了後のHTMLを返す。
// 取得したブラウザコンテキストはdeferで必ず解放される。
func (r *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	start := time.Now()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		// 動的コンテンツの描画を短時間待つ
		chromedp.Sleep(1*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("ページのレンダリングに失敗しました: %w", err)
	}

	r.logger.Info("ページをレンダリングしました",
		slog.String("url", url),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return html, nil
}

// RendererインターフェースをChromeRendererが満たすことのコンパイル時チェック
var _ Renderer = (*ChromeRenderer)(nil)
