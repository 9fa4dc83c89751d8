package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/zaiko/internal/metrics"
	"github.com/hitoshi/zaiko/internal/middleware"
	"github.com/hitoshi/zaiko/internal/site"
)

// Pinger はヘルスチェックでのDB疎通確認のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter

	// 監視アイテム
	TrackingService TrackingServiceInterface

	// 対応サイト
	Registry *site.Registry

	// 統計
	StatusCounter       StatusCounter
	AvailabilityCounter AvailabilityCounter

	// 運用
	Gatherer prometheus.Gatherer
	DB       Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → SecurityHeadersMiddleware → RateLimitMiddleware
//
// ヘルスチェックとメトリクスはレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	itemHandler := NewItemHandler(deps.TrackingService)
	siteHandler := NewSiteHandler(deps.Registry)
	statsHandler := NewStatsHandler(deps.StatusCounter, deps.AvailabilityCounter)

	// --- レート制限の外のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if deps.DB != nil {
			if err := deps.DB.PingContext(r.Context()); err != nil {
				status = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- APIルート ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		// 監視アイテム管理
		r.Route("/api/items", func(r chi.Router) {
			r.Post("/", itemHandler.AddItem)
			r.Get("/", itemHandler.ListItems)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", itemHandler.GetItem)
				r.Delete("/", itemHandler.RemoveItem)
				r.Post("/pause", itemHandler.PauseItem)
				r.Post("/resume", itemHandler.ResumeItem)
				r.Post("/recheck", itemHandler.RecheckItem)
			})
		})

		// 対応サイト一覧
		r.Get("/api/sites", siteHandler.ListSites)

		// 運用統計
		r.Get("/api/stats", statsHandler.GetStats)
	})

	return r
}
