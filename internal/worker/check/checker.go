package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/zaiko/internal/fetch"
	"github.com/hitoshi/zaiko/internal/metrics"
	"github.com/hitoshi/zaiko/internal/model"
	"github.com/hitoshi/zaiko/internal/notify"
	"github.com/hitoshi/zaiko/internal/repository"
	"github.com/hitoshi/zaiko/internal/site"
)

// PageFetcher は商品ページ取得のインターフェース。
type PageFetcher interface {
	Fetch(ctx context.Context, url string, cfg *site.Config) (string, error)
}

// TextSanitizer は抽出テキストのサニタイズのインターフェース。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// Checker は個別アイテムの在庫チェックパイプラインを実行する。
// 取得（一時的失敗は短時間リトライ）→ 抽出 → 状態機械の適用 → 永続化 → 通知。
type Checker struct {
	itemRepo   repository.ItemRepository
	stateRepo  repository.StateRepository
	registry   *site.Registry
	fetcher    PageFetcher
	notifier   notify.Notifier
	sanitizer  TextSanitizer
	collector  metrics.MetricsCollector
	logger     *slog.Logger
	maxRetries int
}

// NewChecker はCheckerの新しいインスタンスを生成する。
// maxRetriesが負の場合は0（リトライなし）として扱う。
func NewChecker(
	itemRepo repository.ItemRepository,
	stateRepo repository.StateRepository,
	registry *site.Registry,
	fetcher PageFetcher,
	notifier notify.Notifier,
	sanitizer TextSanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxRetries int,
) *Checker {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Checker{
		itemRepo:   itemRepo,
		stateRepo:  stateRepo,
		registry:   registry,
		fetcher:    fetcher,
		notifier:   notifier,
		sanitizer:  sanitizer,
		collector:  collector,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Check は1アイテム分のチェックを実行する。
// チェック中のpanicはここで回収され、FetchErrorの観測として記録される。
// 状態の永続化とlastCheckedAtの更新は観測結果にかかわらず必ず行われる。
func (c *Checker) Check(ctx context.Context, item *model.TrackedItem) (err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("チェック中にpanicが発生しました",
				slog.String("item_id", item.ID),
				slog.Any("panic", r),
			)
			c.recordObservation(ctx, item, model.SignalFetchError, "")
			err = fmt.Errorf("チェック中にpanicが発生しました: %v", r)
		}
	}()

	cfg := c.registry.Get(item.SiteKey)
	if cfg == nil {
		// サイトマップから消えたsiteKey: 取得不能としてエラー観測を記録する
		c.logger.Warn("未知のsiteKeyです",
			slog.String("item_id", item.ID),
			slog.String("site_key", item.SiteKey),
		)
		c.recordObservation(ctx, item, model.SignalFetchError, "")
		return fmt.Errorf("未知のsiteKey: %s", item.SiteKey)
	}

	html, fetchErr := c.fetchWithRetry(ctx, item.URL, cfg)
	if fetchErr != nil {
		c.logger.Warn("商品ページの取得に失敗しました",
			slog.String("item_id", item.ID),
			slog.String("url", item.URL),
			slog.String("error", fetchErr.Error()),
		)
		var statusErr *fetch.HTTPStatusError
		if errors.As(fetchErr, &statusErr) {
			c.collector.RecordHTTPStatus(statusErr.Code)
		}
		c.collector.RecordCheckFailure(FailureReason(fetchErr))
		c.recordObservation(ctx, item, model.SignalFetchError, "")
		return fetchErr
	}

	adapter := site.NewAdapter(cfg)
	ext, extractErr := adapter.Extract(html)
	if extractErr != nil {
		c.collector.RecordCheckFailure("extract")
		c.recordObservation(ctx, item, model.SignalIndeterminate, "")
		return extractErr
	}

	productName := c.sanitizer.Sanitize(ext.ProductName)
	c.collector.RecordCheckSuccess(string(ext.Signal))
	c.collector.RecordCheckLatency(time.Since(start))

	c.recordObservation(ctx, item, ext.Signal, productName)

	c.logger.Info("在庫チェックが完了しました",
		slog.String("item_id", item.ID),
		slog.String("url", item.URL),
		slog.String("signal", string(ext.Signal)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// fetchWithRetry は一時的な取得失敗を短い指数バックオフでリトライする。
// リトライはmaxRetries回まで。恒久的な失敗は即座に返す。
func (c *Checker) fetchWithRetry(ctx context.Context, url string, cfg *site.Config) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", &fetch.TimeoutError{URL: url, Err: ctx.Err()}
			case <-time.After(RetryDelay(attempt - 1)):
			}
		}

		html, err := c.fetcher.Fetch(ctx, url, cfg)
		if err == nil {
			return html, nil
		}
		lastErr = err
		if !IsTransientFetchError(err) {
			return "", err
		}
	}
	return "", lastErr
}

// recordObservation は観測シグナルを状態機械へ適用し、結果を永続化する。
// 通知が必要な遷移が発生した場合はNotifierへ渡す。通知の失敗はログに残し、
// 状態はロールバックしない。
func (c *Checker) recordObservation(ctx context.Context, item *model.TrackedItem, signal model.Signal, productName string) {
	now := time.Now()

	state, err := c.stateRepo.FindByItemID(ctx, item.ID)
	if err != nil {
		c.logger.Error("在庫状態の取得に失敗しました",
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if state == nil {
		state = model.NewAvailabilityState(item.ID)
	}

	event := Apply(state, signal, now)

	if err := c.stateRepo.Save(ctx, state); err != nil {
		c.logger.Error("在庫状態の保存に失敗しました",
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := c.itemRepo.MarkChecked(ctx, item.ID, now); err != nil {
		c.logger.Error("チェック時刻の記録に失敗しました",
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()),
		)
	}

	// 抽出した商品名が変わっていればアイテムに反映する
	if productName != "" && productName != item.ProductName {
		item.ProductName = productName
		if err := c.itemRepo.Update(ctx, item); err != nil {
			c.logger.Error("商品名の更新に失敗しました",
				slog.String("item_id", item.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if event == nil {
		return
	}

	event.OwnerID = item.OwnerID
	event.URL = item.URL
	event.ProductName = item.ProductName

	if err := c.notifier.Notify(ctx, event); err != nil {
		c.collector.RecordNotificationFailed()
		c.logger.Error("在庫復活通知の送信に失敗しました",
			slog.String("item_id", item.ID),
			slog.String("owner_id", item.OwnerID),
			slog.String("error", err.Error()),
		)
		return
	}
	c.collector.RecordNotificationSent()
}
