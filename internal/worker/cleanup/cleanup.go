// Package cleanup は削除済みアイテムの物理削除ジョブを提供する。
// removedステータスのまま保持期間（デフォルト24時間）を超過したアイテムを
// 定期バッチで削除する。availability_statesはCASCADE削除で自動的に処理される。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ItemPurger は保持期間を超過した削除済みアイテムの物理削除を抽象化する。
type ItemPurger interface {
	DeleteRemovedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob は削除済みアイテムの物理削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	purger    ItemPurger
	logger    *slog.Logger
	Retention time.Duration // removedのまま保持する期間（デフォルト: 24時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持期間は24時間。
func NewCleanupJob(purger ItemPurger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		purger:    purger,
		logger:    logger,
		Retention: 24 * time.Hour,
	}
}

// Run は保持期間を超過した削除済みアイテムを物理削除する。
// updated_atがRetention前より古いremovedアイテムをDELETEする。
// availability_statesはCASCADE削除により自動的に削除される。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := start.Add(-j.Retention)

	deletedCount, err := j.purger.DeleteRemovedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("アイテムクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("retention", j.Retention),
		)
		return fmt.Errorf("アイテムクリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("アイテムクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("retention", j.Retention),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでクリーンアップジョブを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("retention", j.Retention),
	)

	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
