// Package tracking は監視アイテムの登録・ライフサイクル・照会のサービス層を提供する。
package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/zaiko/internal/model"
	"github.com/hitoshi/zaiko/internal/repository"
	"github.com/hitoshi/zaiko/internal/site"
)

// URLValidator は登録URLの事前検証のインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Admitter は登録系操作のレート制限のインターフェース。
type Admitter interface {
	TryAdmit(userID string) bool
}

// Snapshot は監視アイテムとその在庫状態の読み取り用スナップショット。
type Snapshot struct {
	Item  *model.TrackedItem
	State *model.AvailabilityState
}

// Service は監視アイテムの登録・操作・照会を行う。
type Service struct {
	itemRepo        repository.ItemRepository
	stateRepo       repository.StateRepository
	registry        *site.Registry
	governor        Admitter
	urlValidator    URLValidator
	logger          *slog.Logger
	minInterval     int
	maxInterval     int
	defaultInterval int
}

// NewService はServiceを生成する。
func NewService(
	itemRepo repository.ItemRepository,
	stateRepo repository.StateRepository,
	registry *site.Registry,
	governor Admitter,
	urlValidator URLValidator,
	logger *slog.Logger,
	minInterval, maxInterval, defaultInterval int,
) *Service {
	return &Service{
		itemRepo:        itemRepo,
		stateRepo:       stateRepo,
		registry:        registry,
		governor:        governor,
		urlValidator:    urlValidator,
		logger:          logger,
		minInterval:     minInterval,
		maxInterval:     maxInterval,
		defaultInterval: defaultInterval,
	}
}

// AddTracking は商品ページの監視を登録する。
// siteKeyが空の場合はURLのホストからサイトを解決する。
// 同一所有者・同一URLの登録が既に存在する場合は既存アイテムを返す
// （重複登録はレート枠を消費しない）。
// チェック間隔は[min, max]に丸められ、0以下の場合は既定値となる。
func (s *Service) AddTracking(ctx context.Context, ownerID, rawURL, siteKey string, intervalSeconds int) (*model.TrackedItem, error) {
	if err := s.urlValidator.ValidateURL(rawURL); err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}

	cfg, err := s.resolveSite(rawURL, siteKey)
	if err != nil {
		return nil, err
	}

	// 重複登録: 既存アイテムをそのまま返す
	existing, err := s.itemRepo.FindByOwnerAndURL(ctx, ownerID, rawURL)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != model.ItemStatusRemoved {
		s.logger.Info("既存の監視アイテムを返します",
			slog.String("item_id", existing.ID),
			slog.String("owner_id", ownerID),
		)
		return existing, nil
	}

	if !s.governor.TryAdmit(ownerID) {
		return nil, model.NewRateLimitedError()
	}

	now := time.Now()
	item := &model.TrackedItem{
		ID:                   uuid.NewString(),
		OwnerID:              ownerID,
		SiteKey:              cfg.SiteKey,
		URL:                  rawURL,
		CheckIntervalSeconds: s.clampInterval(intervalSeconds),
		Status:               model.ItemStatusActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	// 削除済みの同一URL登録が残っている場合は再利用する
	if existing != nil {
		item.ID = existing.ID
		item.CreatedAt = now
		if err := s.itemRepo.Update(ctx, item); err != nil {
			return nil, err
		}
	} else {
		if err := s.itemRepo.Create(ctx, item); err != nil {
			return nil, err
		}
	}

	if err := s.stateRepo.Save(ctx, model.NewAvailabilityState(item.ID)); err != nil {
		return nil, err
	}

	s.logger.Info("監視アイテムを登録しました",
		slog.String("item_id", item.ID),
		slog.String("owner_id", ownerID),
		slog.String("site_key", item.SiteKey),
		slog.Int("check_interval_seconds", item.CheckIntervalSeconds),
	)
	return item, nil
}

// resolveSite はsiteKeyまたはURLのホストからサイト設定を解決する。
func (s *Service) resolveSite(rawURL, siteKey string) (*site.Config, error) {
	if siteKey != "" {
		cfg := s.registry.Get(siteKey)
		if cfg == nil {
			return nil, model.NewInvalidSiteError(siteKey)
		}
		return cfg, nil
	}
	cfg := s.registry.ResolveURL(rawURL)
	if cfg == nil {
		return nil, model.NewInvalidSiteError(rawURL)
	}
	return cfg, nil
}

// clampInterval はチェック間隔を[min, max]に丸める。0以下は既定値となる。
func (s *Service) clampInterval(seconds int) int {
	if seconds <= 0 {
		return s.defaultInterval
	}
	if seconds < s.minInterval {
		return s.minInterval
	}
	if seconds > s.maxInterval {
		return s.maxInterval
	}
	return seconds
}

// Pause は監視を一時停止する。既に停止中の場合も成功する（冪等）。
func (s *Service) Pause(ctx context.Context, id string) error {
	item, err := s.findExisting(ctx, id)
	if err != nil {
		return err
	}
	if item.Status == model.ItemStatusPaused {
		return nil
	}
	return s.itemRepo.UpdateStatus(ctx, id, model.ItemStatusPaused)
}

// Resume は監視を再開する。既にアクティブな場合も成功する（冪等）。
// 在庫状態はリセットされず、停止前のlastKnownから継続する。
func (s *Service) Resume(ctx context.Context, id string) error {
	item, err := s.findExisting(ctx, id)
	if err != nil {
		return err
	}
	if item.Status == model.ItemStatusActive {
		return nil
	}
	return s.itemRepo.UpdateStatus(ctx, id, model.ItemStatusActive)
}

// Remove は監視を解除する（ソフト削除）。在庫状態は破棄される。
// 既に削除済みの場合も成功する（冪等）。
func (s *Service) Remove(ctx context.Context, id string) error {
	item, err := s.itemRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if item == nil || item.Status == model.ItemStatusRemoved {
		return nil
	}
	if err := s.itemRepo.UpdateStatus(ctx, id, model.ItemStatusRemoved); err != nil {
		return err
	}
	if err := s.stateRepo.DeleteByItemID(ctx, id); err != nil {
		return err
	}
	s.logger.Info("監視アイテムを解除しました", slog.String("item_id", id))
	return nil
}

// Recheck は指定アイテムを次回サイクルで即チェック対象にする。
// 手動再チェックは登録と同じレート枠を消費する。
func (s *Service) Recheck(ctx context.Context, id string) error {
	item, err := s.findExisting(ctx, id)
	if err != nil {
		return err
	}
	if !s.governor.TryAdmit(item.OwnerID) {
		return model.NewRateLimitedError()
	}
	return s.itemRepo.MarkDueNow(ctx, id)
}

// ListTracked は指定所有者の監視アイテムと在庫状態のスナップショットを返す。
func (s *Service) ListTracked(ctx context.Context, ownerID string) ([]*Snapshot, error) {
	items, err := s.itemRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	snapshots := make([]*Snapshot, 0, len(items))
	for _, item := range items {
		state, err := s.stateRepo.FindByItemID(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		if state == nil {
			state = model.NewAvailabilityState(item.ID)
		}
		snapshots = append(snapshots, &Snapshot{Item: item, State: state})
	}
	return snapshots, nil
}

// Get は指定アイテムのスナップショットを返す。
func (s *Service) Get(ctx context.Context, id string) (*Snapshot, error) {
	item, err := s.findExisting(ctx, id)
	if err != nil {
		return nil, err
	}
	state, err := s.stateRepo.FindByItemID(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = model.NewAvailabilityState(item.ID)
	}
	return &Snapshot{Item: item, State: state}, nil
}

// findExisting は削除済みを除く既存アイテムを取得する。
func (s *Service) findExisting(ctx context.Context, id string) (*model.TrackedItem, error) {
	item, err := s.itemRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("監視アイテムの取得に失敗しました: %w", err)
	}
	if item == nil || item.Status == model.ItemStatusRemoved {
		return nil, model.NewItemNotFoundError(id)
	}
	return item, nil
}
