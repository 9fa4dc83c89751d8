// Package check は在庫チェックのバックグラウンド処理を提供する。
// スケジューラ、チェックパイプライン、在庫状態機械を含む。
package check

import (
	"time"

	"github.com/hitoshi/zaiko/internal/model"
)

// errorEscalationThreshold は連続エラーでFetchError状態へ遷移する閾値。
const errorEscalationThreshold = 3

// Apply は観測シグナルを在庫状態機械に適用する。
// stateを書き換え、通知が必要な遷移の場合のみTransitionEventを返す。
// 通知が発生するのはlastKnownがInStock以外からInStockへ入る遷移のみ。
//
// InStock / OutOfStockの観測は連続エラー回数を0にリセットする。
// Indeterminate / FetchErrorの観測は連続エラー回数をインクリメントし、
// 閾値に達した時点でlastKnownをFetchErrorへ遷移させる（通知なし）。
// 閾値未満の間はlastKnownを変更しない。
func Apply(state *model.AvailabilityState, signal model.Signal, now time.Time) *model.TransitionEvent {
	state.LastCheckedAt = &now

	switch signal {
	case model.SignalInStock:
		state.ConsecutiveErrorCount = 0
		if state.LastKnown != model.AvailabilityInStock {
			from := state.LastKnown
			state.LastKnown = model.AvailabilityInStock
			state.LastTransitionAt = &now
			return &model.TransitionEvent{
				ItemID:     state.ItemID,
				From:       from,
				To:         model.AvailabilityInStock,
				ObservedAt: now,
			}
		}
		return nil

	case model.SignalOutOfStock:
		state.ConsecutiveErrorCount = 0
		if state.LastKnown != model.AvailabilityOutOfStock {
			state.LastKnown = model.AvailabilityOutOfStock
			state.LastTransitionAt = &now
		}
		return nil

	default:
		// Indeterminate / FetchError
		state.ConsecutiveErrorCount++
		if state.ConsecutiveErrorCount >= errorEscalationThreshold &&
			state.LastKnown != model.AvailabilityFetchError {
			state.LastKnown = model.AvailabilityFetchError
			state.LastTransitionAt = &now
		}
		return nil
	}
}
