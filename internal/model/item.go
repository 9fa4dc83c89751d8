// Package model はドメインモデルを定義する。
package model

import "time"

// TrackedItem はユーザーが在庫復活を監視する商品ページを表す。
type TrackedItem struct {
	ID                   string
	OwnerID              string
	SiteKey              string
	URL                  string
	ProductName          string
	CheckIntervalSeconds int
	Status               ItemStatus
	LastCheckedAt        *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ItemStatus は監視アイテムのライフサイクル状態を表す。
type ItemStatus string

const (
	// ItemStatusActive はスケジューラのチェック対象であることを示す。
	ItemStatusActive ItemStatus = "active"
	// ItemStatusPaused は一時停止中（チェック対象外）であることを示す。
	ItemStatusPaused ItemStatus = "paused"
	// ItemStatusRemoved は削除済み（クリーンアップ対象）であることを示す。
	ItemStatusRemoved ItemStatus = "removed"
)

// IsDue はアイテムがチェック期限を迎えているかを判定する。
// 一度もチェックされていないアクティブなアイテムは常にdueとなる。
func (i *TrackedItem) IsDue(now time.Time) bool {
	if i.Status != ItemStatusActive {
		return false
	}
	if i.LastCheckedAt == nil {
		return true
	}
	next := i.LastCheckedAt.Add(time.Duration(i.CheckIntervalSeconds) * time.Second)
	return !now.Before(next)
}
