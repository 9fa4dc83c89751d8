// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordCheckSuccess(signal string)
	RecordCheckFailure(reason string)
	RecordHTTPStatus(statusCode int)
	RecordCheckLatency(duration time.Duration)
	RecordNotificationSent()
	RecordNotificationFailed()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	checkSuccess *prometheus.CounterVec
	checkFail    *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
	checkLatency prometheus.Histogram
	notifySent   prometheus.Counter
	notifyFailed prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checkSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zaiko_check_success_total",
			Help: "在庫チェック成功のシグナル別合計数",
		}, []string{"signal"}),
		checkFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zaiko_check_fail_total",
			Help: "在庫チェック失敗の理由別合計数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zaiko_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		checkLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zaiko_check_latency_seconds",
			Help:    "在庫チェックのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		notifySent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zaiko_notifications_sent_total",
			Help: "送信された在庫復活通知の合計数",
		}),
		notifyFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zaiko_notifications_failed_total",
			Help: "送信に失敗した在庫復活通知の合計数",
		}),
	}

	reg.MustRegister(
		c.checkSuccess,
		c.checkFail,
		c.httpStatus,
		c.checkLatency,
		c.notifySent,
		c.notifyFailed,
	)

	return c
}

// RecordCheckSuccess はチェック成功をシグナル別に記録する。
func (c *Collector) RecordCheckSuccess(signal string) {
	c.checkSuccess.WithLabelValues(signal).Inc()
}

// RecordCheckFailure はチェック失敗を理由別に記録する。
func (c *Collector) RecordCheckFailure(reason string) {
	c.checkFail.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCheckLatency はチェックのレイテンシを記録する。
func (c *Collector) RecordCheckLatency(duration time.Duration) {
	c.checkLatency.Observe(duration.Seconds())
}

// RecordNotificationSent は通知送信成功を記録する。
func (c *Collector) RecordNotificationSent() {
	c.notifySent.Inc()
}

// RecordNotificationFailed は通知送信失敗を記録する。
func (c *Collector) RecordNotificationFailed() {
	c.notifyFailed.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
