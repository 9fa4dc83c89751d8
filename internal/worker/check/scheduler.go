package check

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/zaiko/internal/model"
	"github.com/hitoshi/zaiko/internal/repository"
)

// ItemCheckerService は在庫チェックの実行インターフェース。
type ItemCheckerService interface {
	// Check は指定アイテムをチェックし、結果に応じて在庫状態を更新する。
	Check(ctx context.Context, item *model.TrackedItem) error
}

// Scheduler は在庫チェックのスケジューリングと並列制御を行う。
// ティッカーでチェック期限を迎えたアイテムを取得し、
// semaphoreパターンで最大並列数を制御しながらチェックを実行する。
// 同一アイテムのチェックが重なった場合は後発をスキップする。
type Scheduler struct {
	itemRepo       repository.ItemRepository
	checker        ItemCheckerService
	logger         *slog.Logger
	maxConcurrency int

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewScheduler(
	itemRepo repository.ItemRepository,
	checker ItemCheckerService,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Scheduler{
		itemRepo:       itemRepo,
		checker:        checker,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		inFlight:       make(map[string]struct{}),
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("チェックスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("チェックサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("チェックスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("チェックサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はチェック期限を迎えたアイテムを1回取得し、並列でチェックを実行する。
// semaphoreパターンで最大並列数を制御する。サイクル内の1アイテムの失敗は
// 他のアイテムのチェックに影響しない。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	// チェック対象アイテムを取得（FOR UPDATE SKIP LOCKED）
	items, err := s.itemRepo.ListDueForCheck(ctx)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		s.logger.Info("チェック対象のアイテムはありません")
		return nil
	}

	s.logger.Info("チェックサイクルを開始します",
		slog.Int("item_count", len(items)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, item := range items {
		// 前サイクルのチェックがまだ進行中のアイテムはスキップする
		if !s.markInFlight(item.ID) {
			s.logger.Info("チェックが進行中のためスキップします",
				slog.String("item_id", item.ID),
			)
			continue
		}

		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(it *model.TrackedItem) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放
			defer s.clearInFlight(it.ID)

			if err := s.checker.Check(ctx, it); err != nil {
				s.logger.Error("在庫チェックに失敗しました",
					slog.String("item_id", it.ID),
					slog.String("url", it.URL),
					slog.String("error", err.Error()),
				)
			}
		}(item)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("チェックサイクルが完了しました",
		slog.Int("item_count", len(items)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// markInFlight はアイテムを進行中として記録する。
// 既に進行中の場合はfalseを返す。
func (s *Scheduler) markInFlight(itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.inFlight[itemID]; exists {
		return false
	}
	s.inFlight[itemID] = struct{}{}
	return true
}

// clearInFlight はアイテムの進行中マークを解除する。
func (s *Scheduler) clearInFlight(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, itemID)
}
