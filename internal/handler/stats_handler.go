package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/zaiko/internal/model"
)

// StatusCounter はステータス別のアイテム件数を集計するインターフェース。
// repository.ItemRepositoryを直接要求せず、最小限のインターフェースとして定義する。
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[model.ItemStatus]int, error)
}

// AvailabilityCounter は在庫状態別のアイテム件数を集計するインターフェース。
type AvailabilityCounter interface {
	CountByAvailability(ctx context.Context) (map[model.Availability]int, error)
}

// StatsHandler は運用統計のHTTPハンドラー。
type StatsHandler struct {
	statusCounter       StatusCounter
	availabilityCounter AvailabilityCounter
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(statusCounter StatusCounter, availabilityCounter AvailabilityCounter) *StatsHandler {
	return &StatsHandler{
		statusCounter:       statusCounter,
		availabilityCounter: availabilityCounter,
	}
}

// statsResponse は運用統計のAPIレスポンス。
type statsResponse struct {
	ItemsByStatus       map[string]int `json:"items_by_status"`
	ItemsByAvailability map[string]int `json:"items_by_availability"`
}

// GetStats はステータス別・在庫状態別のアイテム件数を取得する。
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	byStatus, err := h.statusCounter.CountByStatus(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	byAvailability, err := h.availabilityCounter.CountByAvailability(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := statsResponse{
		ItemsByStatus:       make(map[string]int, len(byStatus)),
		ItemsByAvailability: make(map[string]int, len(byAvailability)),
	}
	for status, count := range byStatus {
		resp.ItemsByStatus[string(status)] = count
	}
	for availability, count := range byAvailability {
		resp.ItemsByAvailability[string(availability)] = count
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
