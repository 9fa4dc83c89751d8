package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/zaiko/internal/model"
)

// PostgresStateRepo はPostgreSQLを使用した在庫状態リポジトリ。
type PostgresStateRepo struct {
	db *sql.DB
}

// NewPostgresStateRepo はPostgresStateRepoを生成する。
func NewPostgresStateRepo(db *sql.DB) *PostgresStateRepo {
	return &PostgresStateRepo{db: db}
}

// FindByItemID は指定アイテムの在庫状態を取得する。見つからない場合はnilを返す。
func (r *PostgresStateRepo) FindByItemID(ctx context.Context, itemID string) (*model.AvailabilityState, error) {
	state := &model.AvailabilityState{}
	var lastCheckedAt, lastTransitionAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT item_id, last_known, consecutive_error_count,
		        last_checked_at, last_transition_at
		 FROM availability_states WHERE item_id = $1`,
		itemID,
	).Scan(
		&state.ItemID, &state.LastKnown, &state.ConsecutiveErrorCount,
		&lastCheckedAt, &lastTransitionAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("在庫状態の取得に失敗しました: %w", err)
	}

	if lastCheckedAt.Valid {
		t := lastCheckedAt.Time
		state.LastCheckedAt = &t
	}
	if lastTransitionAt.Valid {
		t := lastTransitionAt.Time
		state.LastTransitionAt = &t
	}
	return state, nil
}

// Save は在庫状態をupsertする。
func (r *PostgresStateRepo) Save(ctx context.Context, state *model.AvailabilityState) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO availability_states
		    (item_id, last_known, consecutive_error_count, last_checked_at, last_transition_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (item_id) DO UPDATE SET
		    last_known = EXCLUDED.last_known,
		    consecutive_error_count = EXCLUDED.consecutive_error_count,
		    last_checked_at = EXCLUDED.last_checked_at,
		    last_transition_at = EXCLUDED.last_transition_at`,
		state.ItemID, state.LastKnown, state.ConsecutiveErrorCount,
		nullTime(state.LastCheckedAt), nullTime(state.LastTransitionAt),
	)
	if err != nil {
		return fmt.Errorf("在庫状態の保存に失敗しました: %w", err)
	}
	return nil
}

// DeleteByItemID は指定アイテムの在庫状態を破棄する。
// 状態が存在しない場合もエラーにはならない。
func (r *PostgresStateRepo) DeleteByItemID(ctx context.Context, itemID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM availability_states WHERE item_id = $1`,
		itemID,
	)
	if err != nil {
		return fmt.Errorf("在庫状態の破棄に失敗しました: %w", err)
	}
	return nil
}

// CountByAvailability は在庫状態ごとのアイテム数を返す。
func (r *PostgresStateRepo) CountByAvailability(ctx context.Context) (map[model.Availability]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.last_known, COUNT(*)
		 FROM availability_states s
		 INNER JOIN tracked_items i ON s.item_id = i.id
		 WHERE i.status != 'removed'
		 GROUP BY s.last_known`,
	)
	if err != nil {
		return nil, fmt.Errorf("在庫状態の集計に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Availability]int)
	for rows.Next() {
		var avail model.Availability
		var count int
		if err := rows.Scan(&avail, &count); err != nil {
			return nil, fmt.Errorf("在庫状態集計の読み取りに失敗しました: %w", err)
		}
		counts[avail] = count
	}
	return counts, rows.Err()
}

// コンパイル時のインターフェース実装チェック
var (
	_ ItemRepository  = (*PostgresItemRepo)(nil)
	_ StateRepository = (*PostgresStateRepo)(nil)
)
