// Package governor は登録系操作のユーザー単位固定ウィンドウレート制限を提供する。
// HTTPミドルウェアのトークンバケット制限とは独立したドメインレベルの制限で、
// ウィンドウあたりの許可数が設定上限を決して超えないことを保証する。
package governor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// window は1ユーザー分の固定ウィンドウの状態。
type window struct {
	start time.Time
	count int
}

// Governor はユーザーごとの固定ウィンドウカウンタを保持する。
// ウィンドウはリクエスト到達時に遅延リセットされる（バックグラウンドの
// タイマーは持たない）。ユーザー間は互いに影響しない。
type Governor struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	size    time.Duration
	now     func() time.Time
}

// New はGovernorを生成する。
// limitはウィンドウあたりの許可数、sizeはウィンドウ長を指定する。
func New(limit int, size time.Duration) *Governor {
	return &Governor{
		windows: make(map[string]*window),
		limit:   limit,
		size:    size,
		now:     time.Now,
	}
}

// TryAdmit は指定ユーザーの操作を許可するかを判定する。
// 現在のウィンドウの残り枠があればカウントを進めてtrueを返す。
// ウィンドウが期限切れの場合はその場でリセットしてから判定する。
// 同一ユーザーへの並行呼び出しは直列化され、上限を超える許可は発生しない。
func (g *Governor) TryAdmit(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()

	w, ok := g.windows[userID]
	if !ok || now.Sub(w.start) >= g.size {
		w = &window{start: now}
		g.windows[userID] = w
	}

	if w.count >= g.limit {
		return false
	}
	w.count++
	return true
}

// StartCleanup は期限切れウィンドウを定期的に破棄するループを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (g *Governor) StartCleanup(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := g.cleanup()
			if removed > 0 {
				logger.Info("期限切れのレートウィンドウを破棄しました",
					slog.Int("removed", removed),
				)
			}
		}
	}
}

// cleanup は期限切れウィンドウを削除し、削除件数を返す。
func (g *Governor) cleanup() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for userID, w := range g.windows {
		if now.Sub(w.start) >= g.size {
			delete(g.windows, userID)
			removed++
		}
	}
	return removed
}
