// Package notify は在庫復活イベントの通知ゲートウェイを提供する。
// 通知の配送自体は外部のチャットレイヤーが担い、本パッケージは
// イベントの受け渡し境界のみを定義する。
package notify

import (
	"context"
	"log/slog"

	"github.com/hitoshi/zaiko/internal/model"
)

// Notifier は在庫復活イベントの通知インターフェース。
// 呼び出し側（スケジューラ）は成否にかかわらず結果を最終として扱い、
// 再送は行わない。
type Notifier interface {
	Notify(ctx context.Context, event *model.TransitionEvent) error
}

// LogNotifier はイベントを構造化ログに出力するNotifier実装。
// 外部配送先が未設定の環境での既定実装となる。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier はLogNotifierを生成する。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify はイベントをINFOログとして記録する。失敗しない。
func (n *LogNotifier) Notify(_ context.Context, event *model.TransitionEvent) error {
	n.logger.Info("在庫復活を検知しました",
		slog.String("item_id", event.ItemID),
		slog.String("owner_id", event.OwnerID),
		slog.String("url", event.URL),
		slog.String("product_name", event.ProductName),
		slog.String("from", string(event.From)),
		slog.String("to", string(event.To)),
		slog.Time("observed_at", event.ObservedAt),
	)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
