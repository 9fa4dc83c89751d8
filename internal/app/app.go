// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/zaiko/internal/config"
	"github.com/hitoshi/zaiko/internal/database"
	"github.com/hitoshi/zaiko/internal/fetch"
	"github.com/hitoshi/zaiko/internal/governor"
	"github.com/hitoshi/zaiko/internal/handler"
	"github.com/hitoshi/zaiko/internal/logger"
	"github.com/hitoshi/zaiko/internal/metrics"
	"github.com/hitoshi/zaiko/internal/middleware"
	"github.com/hitoshi/zaiko/internal/notify"
	"github.com/hitoshi/zaiko/internal/repository"
	"github.com/hitoshi/zaiko/internal/security"
	"github.com/hitoshi/zaiko/internal/site"
	"github.com/hitoshi/zaiko/internal/tracking"
	"github.com/hitoshi/zaiko/internal/worker/check"
	"github.com/hitoshi/zaiko/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	itemRepo := repository.NewPostgresItemRepo(db)
	stateRepo := repository.NewPostgresStateRepo(db)

	// 3. サイト設定の読み込み
	registry, err := site.LoadRegistry(cfg.SitesConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load site registry: %w", err)
	}

	// 4. ドメインサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	gov := governor.New(cfg.RateLimitPerUser, cfg.RateLimitWindow)
	trackingService := tracking.NewService(
		itemRepo, stateRepo, registry, gov, ssrfGuard, slog.Default(),
		cfg.MinCheckInterval, cfg.MaxCheckInterval, cfg.DefaultCheckInterval,
	)

	// governorの期限切れウィンドウ掃除をバックグラウンドで回す
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gov.StartCleanup(ctx, cfg.RateLimitWindow, slog.Default())

	// 5. ルーターの構築
	rateLimiterCfg := middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		CleanupInterval: 5 * time.Minute,
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:      slog.Default(),
		RateLimiter: rateLimiter,

		TrackingService: trackingService,
		Registry:        registry,

		StatusCounter:       itemRepo,
		AvailabilityCounter: stateRepo,

		Gatherer: prometheus.NewRegistry(),
		DB:       db,
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はチェックワーカーモードで起動する。
// DB接続を開き、チェックスケジューラとクリーンアップジョブを起動する。
// メトリクスは同一プロセス内の軽量HTTPサーバーで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリとサイト設定の初期化
	itemRepo := repository.NewPostgresItemRepo(db)
	stateRepo := repository.NewPostgresStateRepo(db)

	registry, err := site.LoadRegistry(cfg.SitesConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load site registry: %w", err)
	}

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// 4. フェッチャーの初期化
	pacer := fetch.NewHostPacer(cfg.FetchHostRate)
	var renderer fetch.Renderer
	if cfg.RendererEnabled {
		renderer = fetch.NewChromeRenderer(slog.Default(), cfg.RendererTimeout, cfg.RendererHeadless)
	}
	fetcher := fetch.NewFetcher(
		ssrfGuard, renderer, pacer,
		slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize,
	)

	// 5. 通知先の初期化
	var notifier notify.Notifier
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookTimeout, slog.Default())
	} else {
		notifier = notify.NewLogNotifier(slog.Default())
	}

	// 6. メトリクスの初期化
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 7. チェッカーとスケジューラの初期化
	checker := check.NewChecker(
		itemRepo, stateRepo, registry, fetcher, notifier,
		sanitizer, collector, slog.Default(), cfg.CheckMaxRetries,
	)
	scheduler := check.NewScheduler(itemRepo, checker, slog.Default(), cfg.CheckMaxConcurrent)

	// 8. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(itemRepo, slog.Default())
	cleanupJob.Retention = cfg.RemovedRetention

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("pass_interval", cfg.CheckPassInterval),
		slog.Int("max_concurrent", cfg.CheckMaxConcurrent),
		slog.Bool("renderer_enabled", cfg.RendererEnabled),
	)

	// メトリクスとヘルスチェックの軽量HTTPサーバーをバックグラウンドで起動
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: mux,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer metricsServer.Close()

	// クリーンアップジョブをバックグラウンドで起動
	go cleanupJob.Start(ctx, cfg.CleanupInterval)

	// チェックスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.CheckPassInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
