// Package config は環境変数ベースのアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Fetch
	FetchTimeout     time.Duration
	FetchMaxSize     int64
	FetchHostRate    float64 // ホストあたりのリクエストレート（req/sec）
	RendererEnabled  bool
	RendererTimeout  time.Duration
	RendererHeadless bool

	// Check scheduler
	CheckMaxConcurrent int
	CheckPassInterval  time.Duration
	CheckMaxRetries    int

	// Check interval bounds (seconds)
	MinCheckInterval     int
	MaxCheckInterval     int
	DefaultCheckInterval int

	// Rate Governor（登録操作の固定ウィンドウ制限）
	RateLimitPerUser int
	RateLimitWindow  time.Duration

	// HTTP API rate limit (req/min per client)
	RateLimitGeneral int

	// Notify
	WebhookURL     string
	WebhookTimeout time.Duration

	// Cleanup
	CleanupInterval  time.Duration
	RemovedRetention time.Duration

	// Site registry（空の場合は埋め込み設定を使う）
	SitesConfigPath string

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 15*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchHostRate = getEnvFloat("FETCH_HOST_RATE", 1.0)
	cfg.RendererEnabled = getEnvBool("RENDERER_ENABLED", false)
	cfg.RendererTimeout = getEnvDuration("RENDERER_TIMEOUT", 30*time.Second)
	cfg.RendererHeadless = getEnvBool("RENDERER_HEADLESS", true)
	cfg.CheckMaxConcurrent = getEnvInt("CHECK_MAX_CONCURRENT", 10)
	cfg.CheckPassInterval = getEnvDuration("CHECK_PASS_INTERVAL", 1*time.Minute)
	cfg.CheckMaxRetries = getEnvInt("CHECK_MAX_RETRIES", 2)
	cfg.MinCheckInterval = getEnvInt("MIN_CHECK_INTERVAL", 60)
	cfg.MaxCheckInterval = getEnvInt("MAX_CHECK_INTERVAL", 86400)
	cfg.DefaultCheckInterval = getEnvInt("DEFAULT_CHECK_INTERVAL", 300)
	cfg.RateLimitPerUser = getEnvInt("RATE_LIMIT_PER_USER", 10)
	cfg.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", 24*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.WebhookURL = getEnvString("WEBHOOK_URL", "")
	cfg.WebhookTimeout = getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 1*time.Hour)
	cfg.RemovedRetention = getEnvDuration("REMOVED_RETENTION", 24*time.Hour)
	cfg.SitesConfigPath = getEnvString("SITES_CONFIG_PATH", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	if cfg.MinCheckInterval <= 0 || cfg.MaxCheckInterval < cfg.MinCheckInterval {
		return nil, fmt.Errorf("invalid check interval bounds: min=%d max=%d", cfg.MinCheckInterval, cfg.MaxCheckInterval)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
