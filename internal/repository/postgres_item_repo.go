package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/zaiko/internal/model"
)

// PostgresItemRepo はPostgreSQLを使用した監視アイテムリポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

const itemColumns = `id, owner_id, site_key, url, product_name,
	        check_interval_seconds, status, last_checked_at, created_at, updated_at`

func scanItem(scan func(dest ...any) error) (*model.TrackedItem, error) {
	item := &model.TrackedItem{}
	var lastCheckedAt sql.NullTime

	if err := scan(
		&item.ID, &item.OwnerID, &item.SiteKey, &item.URL, &item.ProductName,
		&item.CheckIntervalSeconds, &item.Status, &lastCheckedAt,
		&item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if lastCheckedAt.Valid {
		t := lastCheckedAt.Time
		item.LastCheckedAt = &t
	}
	return item, nil
}

// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindByID(ctx context.Context, id string) (*model.TrackedItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM tracked_items WHERE id = $1`,
		id,
	)

	item, err := scanItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("監視アイテムの取得に失敗しました: %w", err)
	}
	return item, nil
}

// FindByOwnerAndURL は所有者とURLの組でアイテムを検索する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindByOwnerAndURL(ctx context.Context, ownerID, url string) (*model.TrackedItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM tracked_items WHERE owner_id = $1 AND url = $2`,
		ownerID, url,
	)

	item, err := scanItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("監視アイテムの検索に失敗しました: %w", err)
	}
	return item, nil
}

// ListByOwner は指定所有者のアイテムを作成日時順で取得する（removedを除く）。
func (r *PostgresItemRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.TrackedItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+`
		 FROM tracked_items
		 WHERE owner_id = $1 AND status != 'removed'
		 ORDER BY created_at ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("監視アイテム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []*model.TrackedItem
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("監視アイテム一覧の読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListDueForCheck はチェック期限を迎えたアクティブなアイテムを
// FOR UPDATE SKIP LOCKEDで排他的に取得する。
// last_checked_atがNULL（未チェック）のアイテムは常に対象となる。
func (r *PostgresItemRepo) ListDueForCheck(ctx context.Context) ([]*model.TrackedItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+`
		 FROM tracked_items
		 WHERE status = 'active'
		   AND (last_checked_at IS NULL
		        OR last_checked_at + make_interval(secs => check_interval_seconds) <= now())
		 ORDER BY last_checked_at ASC NULLS FIRST
		 FOR UPDATE SKIP LOCKED`,
	)
	if err != nil {
		return nil, fmt.Errorf("チェック対象アイテムの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []*model.TrackedItem
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("チェック対象アイテムの読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Create はアイテムを作成する。
func (r *PostgresItemRepo) Create(ctx context.Context, item *model.TrackedItem) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tracked_items (id, owner_id, site_key, url, product_name,
		                            check_interval_seconds, status, last_checked_at,
		                            created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.OwnerID, item.SiteKey, item.URL, item.ProductName,
		item.CheckIntervalSeconds, item.Status, nullTime(item.LastCheckedAt),
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("監視アイテムの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はアイテム情報を更新する。
func (r *PostgresItemRepo) Update(ctx context.Context, item *model.TrackedItem) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tracked_items SET
		    site_key = $2, url = $3, product_name = $4,
		    check_interval_seconds = $5, status = $6,
		    last_checked_at = $7, updated_at = now()
		 WHERE id = $1`,
		item.ID, item.SiteKey, item.URL, item.ProductName,
		item.CheckIntervalSeconds, item.Status, nullTime(item.LastCheckedAt),
	)
	if err != nil {
		return fmt.Errorf("監視アイテムの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateStatus はアイテムの状態のみを更新する。
func (r *PostgresItemRepo) UpdateStatus(ctx context.Context, id string, status model.ItemStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tracked_items SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("監視アイテムの状態更新に失敗しました: %w", err)
	}
	return nil
}

// MarkChecked はチェック完了時刻を記録する。
func (r *PostgresItemRepo) MarkChecked(ctx context.Context, id string, checkedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tracked_items SET last_checked_at = $2, updated_at = now() WHERE id = $1`,
		id, checkedAt,
	)
	if err != nil {
		return fmt.Errorf("チェック時刻の記録に失敗しました: %w", err)
	}
	return nil
}

// MarkDueNow はlast_checked_atをクリアし、次回サイクルで即チェック対象にする。
func (r *PostgresItemRepo) MarkDueNow(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tracked_items SET last_checked_at = NULL, updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("即時チェック指定に失敗しました: %w", err)
	}
	return nil
}

// DeleteRemovedBefore は指定時刻より前に更新されたremovedアイテムを物理削除する。
func (r *PostgresItemRepo) DeleteRemovedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tracked_items WHERE status = 'removed' AND updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("削除済みアイテムのクリーンアップに失敗しました: %w", err)
	}
	return result.RowsAffected()
}

// CountCreatedSince は指定所有者が指定時刻以降に作成したアイテム数を返す。
func (r *PostgresItemRepo) CountCreatedSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracked_items WHERE owner_id = $1 AND created_at >= $2`,
		ownerID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("登録数の集計に失敗しました: %w", err)
	}
	return count, nil
}

// CountByStatus は状態ごとのアイテム数を返す。
func (r *PostgresItemRepo) CountByStatus(ctx context.Context) (map[model.ItemStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tracked_items GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("アイテム数の集計に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.ItemStatus]int)
	for rows.Next() {
		var status model.ItemStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("アイテム数の読み取りに失敗しました: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// nullTime は*time.Timeをsql.NullTimeへ変換する。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
