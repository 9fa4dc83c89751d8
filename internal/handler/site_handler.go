package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/zaiko/internal/site"
)

// SiteHandler は対応サイト一覧のHTTPハンドラー。
type SiteHandler struct {
	registry *site.Registry
}

// NewSiteHandler はSiteHandlerを生成する。
func NewSiteHandler(registry *site.Registry) *SiteHandler {
	return &SiteHandler{registry: registry}
}

// siteResponse は対応サイトのAPIレスポンス。
// セレクタや在庫判定語などの抽出設定は公開しない。
type siteResponse struct {
	SiteKey           string `json:"site_key"`
	Name              string `json:"name"`
	BaseURL           string `json:"base_url"`
	RequiresRendering bool   `json:"requires_rendering"`
}

// ListSites は対応サイトの一覧を取得する。
// GET /api/sites
func (h *SiteHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	configs := h.registry.All()

	sites := make([]siteResponse, 0, len(configs))
	for _, cfg := range configs {
		sites = append(sites, siteResponse{
			SiteKey:           cfg.SiteKey,
			Name:              cfg.Name,
			BaseURL:           cfg.BaseURL,
			RequiresRendering: cfg.RequiresRendering,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]siteResponse{"sites": sites})
}
