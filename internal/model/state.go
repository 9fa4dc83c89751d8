package model

import "time"

// Availability は商品ページから観測された在庫状態を表す。
type Availability string

const (
	// AvailabilityUnknown は一度も観測に成功していない初期状態。
	AvailabilityUnknown Availability = "unknown"
	// AvailabilityInStock は在庫ありと判定された状態。
	AvailabilityInStock Availability = "in_stock"
	// AvailabilityOutOfStock は在庫なしと判定された状態。
	AvailabilityOutOfStock Availability = "out_of_stock"
	// AvailabilityFetchError は連続エラーによりエラー状態へ遷移した状態。
	AvailabilityFetchError Availability = "fetch_error"
)

// Signal は1回のチェックが生み出す観測結果を表す。
type Signal string

const (
	// SignalInStock は在庫ありの観測。
	SignalInStock Signal = "in_stock"
	// SignalOutOfStock は在庫なしの観測。
	SignalOutOfStock Signal = "out_of_stock"
	// SignalIndeterminate は抽出に成功したが判定不能だった観測。
	SignalIndeterminate Signal = "indeterminate"
	// SignalFetchError は取得自体に失敗した観測。
	SignalFetchError Signal = "fetch_error"
)

// AvailabilityState は監視アイテムごとの在庫状態機械の現在値を保持する。
type AvailabilityState struct {
	ItemID                string
	LastKnown             Availability
	ConsecutiveErrorCount int
	LastCheckedAt         *time.Time
	LastTransitionAt      *time.Time
}

// NewAvailabilityState は初期状態（Unknown、エラーカウント0）を生成する。
func NewAvailabilityState(itemID string) *AvailabilityState {
	return &AvailabilityState{
		ItemID:    itemID,
		LastKnown: AvailabilityUnknown,
	}
}

// TransitionEvent は状態機械が通知を要求したことを表すイベント。
// Notifier Gatewayへ渡される。
type TransitionEvent struct {
	ItemID      string
	OwnerID     string
	URL         string
	ProductName string
	From        Availability
	To          Availability
	ObservedAt  time.Time
}
