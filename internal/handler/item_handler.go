package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/zaiko/internal/model"
	"github.com/hitoshi/zaiko/internal/tracking"
)

// TrackingServiceInterface はアイテムハンドラーが必要とするサービスインターフェース。
type TrackingServiceInterface interface {
	// AddTracking は商品ページの監視を登録する。
	AddTracking(ctx context.Context, ownerID, rawURL, siteKey string, intervalSeconds int) (*model.TrackedItem, error)
	// ListTracked は所有者の監視アイテム一覧をスナップショットで返す。
	ListTracked(ctx context.Context, ownerID string) ([]*tracking.Snapshot, error)
	// Get はアイテムのスナップショットを返す。
	Get(ctx context.Context, id string) (*tracking.Snapshot, error)
	// Pause はアイテムの監視を一時停止する。
	Pause(ctx context.Context, id string) error
	// Resume は一時停止中のアイテムの監視を再開する。
	Resume(ctx context.Context, id string) error
	// Remove はアイテムを論理削除する。
	Remove(ctx context.Context, id string) error
	// Recheck はアイテムの即時再チェックを要求する。
	Recheck(ctx context.Context, id string) error
}

// ItemHandler は監視アイテム管理のHTTPハンドラー。
type ItemHandler struct {
	service TrackingServiceInterface
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service TrackingServiceInterface) *ItemHandler {
	return &ItemHandler{service: service}
}

// addItemRequest はアイテム登録リクエストのボディ。
type addItemRequest struct {
	OwnerID              string `json:"owner_id"`
	URL                  string `json:"url"`
	SiteKey              string `json:"site_key"`
	CheckIntervalSeconds int    `json:"check_interval_seconds"`
}

// availabilityResponse は在庫状態のAPIレスポンス。
type availabilityResponse struct {
	LastKnown             string     `json:"last_known"`
	ConsecutiveErrorCount int        `json:"consecutive_error_count"`
	LastCheckedAt         *time.Time `json:"last_checked_at,omitempty"`
	LastTransitionAt      *time.Time `json:"last_transition_at,omitempty"`
}

// itemResponse は監視アイテムのAPIレスポンス。
type itemResponse struct {
	ID                   string                `json:"id"`
	OwnerID              string                `json:"owner_id"`
	SiteKey              string                `json:"site_key"`
	URL                  string                `json:"url"`
	ProductName          string                `json:"product_name,omitempty"`
	CheckIntervalSeconds int                   `json:"check_interval_seconds"`
	Status               string                `json:"status"`
	LastCheckedAt        *time.Time            `json:"last_checked_at,omitempty"`
	Availability         *availabilityResponse `json:"availability,omitempty"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// AddItem は監視アイテムの登録を処理する。
// POST /api/items
func (h *ItemHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.OwnerID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "owner_idが空です。",
			Category: "validation",
			Action:   "owner_idを指定してください。",
		})
		return
	}
	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	item, err := h.service.AddTracking(r.Context(), req.OwnerID, req.URL, req.SiteKey, req.CheckIntervalSeconds)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toItemResponse(item, nil))
}

// ListItems は所有者の監視アイテム一覧を取得する。
// GET /api/items?owner_id=xxx
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "owner_idが空です。",
			Category: "validation",
			Action:   "owner_idクエリパラメータを指定してください。",
		})
		return
	}

	snapshots, err := h.service.ListTracked(r.Context(), ownerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]itemResponse, 0, len(snapshots))
	for _, snap := range snapshots {
		items = append(items, toItemResponse(snap.Item, snap.State))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]itemResponse{"items": items})
}

// GetItem はアイテム詳細を取得する。
// GET /api/items/:id
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toItemResponse(snap.Item, snap.State))
}

// PauseItem はアイテムの監視を一時停止する。
// POST /api/items/:id/pause
func (h *ItemHandler) PauseItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Pause(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResumeItem は一時停止中のアイテムの監視を再開する。
// POST /api/items/:id/resume
func (h *ItemHandler) ResumeItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Resume(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecheckItem はアイテムの即時再チェックを要求する。
// POST /api/items/:id/recheck
func (h *ItemHandler) RecheckItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Recheck(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// RemoveItem はアイテムを削除する。
// DELETE /api/items/:id
func (h *ItemHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toItemResponse はmodel.TrackedItemからAPIレスポンスに変換する。
func toItemResponse(item *model.TrackedItem, state *model.AvailabilityState) itemResponse {
	resp := itemResponse{
		ID:                   item.ID,
		OwnerID:              item.OwnerID,
		SiteKey:              item.SiteKey,
		URL:                  item.URL,
		ProductName:          item.ProductName,
		CheckIntervalSeconds: item.CheckIntervalSeconds,
		Status:               string(item.Status),
		LastCheckedAt:        item.LastCheckedAt,
	}
	if state != nil {
		resp.Availability = &availabilityResponse{
			LastKnown:             string(state.LastKnown),
			ConsecutiveErrorCount: state.ConsecutiveErrorCount,
			LastCheckedAt:         state.LastCheckedAt,
			LastTransitionAt:      state.LastTransitionAt,
		}
	}
	return resp
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeInvalidSite:
		return http.StatusUnprocessableEntity
	case model.ErrCodeInvalidCheckInterval:
		return http.StatusBadRequest
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeItemNotFound:
		return http.StatusNotFound
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
