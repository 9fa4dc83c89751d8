// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/zaiko/internal/model"
)

// ItemRepository は監視アイテムの永続化インターフェース。
type ItemRepository interface {
	// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.TrackedItem, error)

	// FindByOwnerAndURL は所有者とURLの組でアイテムを検索する。見つからない場合はnilを返す。
	FindByOwnerAndURL(ctx context.Context, ownerID, url string) (*model.TrackedItem, error)

	// ListByOwner は指定所有者のアイテムを作成日時順で取得する（removedを除く）。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.TrackedItem, error)

	// ListDueForCheck はチェック期限を迎えたアクティブなアイテムを
	// FOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListDueForCheck(ctx context.Context) ([]*model.TrackedItem, error)

	// Create はアイテムを作成する。
	Create(ctx context.Context, item *model.TrackedItem) error

	// Update はアイテム情報を更新する。
	Update(ctx context.Context, item *model.TrackedItem) error

	// UpdateStatus はアイテムの状態のみを更新する。
	UpdateStatus(ctx context.Context, id string, status model.ItemStatus) error

	// MarkChecked はチェック完了時刻を記録する。
	MarkChecked(ctx context.Context, id string, checkedAt time.Time) error

	// MarkDueNow はlast_checked_atをクリアし、次回サイクルで即チェック対象にする。
	MarkDueNow(ctx context.Context, id string) error

	// DeleteRemovedBefore は指定時刻より前に更新されたremovedアイテムを物理削除する。
	// 削除件数を返す。
	DeleteRemovedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// CountCreatedSince は指定所有者が指定時刻以降に作成したアイテム数を返す。
	CountCreatedSince(ctx context.Context, ownerID string, since time.Time) (int, error)

	// CountByStatus は状態ごとのアイテム数を返す。
	CountByStatus(ctx context.Context) (map[model.ItemStatus]int, error)
}

// StateRepository は在庫状態機械の永続化インターフェース。
type StateRepository interface {
	// FindByItemID は指定アイテムの在庫状態を取得する。見つからない場合はnilを返す。
	FindByItemID(ctx context.Context, itemID string) (*model.AvailabilityState, error)

	// Save は在庫状態をupsertする。
	Save(ctx context.Context, state *model.AvailabilityState) error

	// DeleteByItemID は指定アイテムの在庫状態を破棄する。
	DeleteByItemID(ctx context.Context, itemID string) error

	// CountByAvailability は在庫状態ごとのアイテム数を返す。
	CountByAvailability(ctx context.Context) (map[model.Availability]int, error)
}
