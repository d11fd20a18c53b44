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
// ハンドラーや通知層から利用する。
type MetricsCollector interface {
	RecordCreated(kind string)
	RecordDeleted(kind string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	TaskDispatchSucceeded()
	TaskDispatchFailed()
	SchedulerCallSucceeded()
	SchedulerCallFailed()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	recordsCreated *prometheus.CounterVec
	recordsDeleted *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	dispatchOK     prometheus.Counter
	dispatchFail   prometheus.Counter
	schedulerOK    prometheus.Counter
	schedulerFail  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		recordsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskhub_records_created_total",
			Help: "作成されたレコードの種別ごとの合計数",
		}, []string{"kind"}),
		recordsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskhub_records_deleted_total",
			Help: "削除されたレコードの種別ごとの合計数",
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskhub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskhub_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		dispatchOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskhub_task_dispatch_success_total",
			Help: "タスク作成イベント送出成功の合計数",
		}),
		dispatchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskhub_task_dispatch_fail_total",
			Help: "タスク作成イベント送出失敗の合計数",
		}),
		schedulerOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskhub_scheduler_call_success_total",
			Help: "リマインダー予約API呼び出し成功の合計数",
		}),
		schedulerFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskhub_scheduler_call_fail_total",
			Help: "リマインダー予約API呼び出し失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.recordsCreated,
		c.recordsDeleted,
		c.httpStatus,
		c.requestLatency,
		c.dispatchOK,
		c.dispatchFail,
		c.schedulerOK,
		c.schedulerFail,
	)

	return c
}

// RecordCreated はレコード作成を種別付きで記録する。
func (c *Collector) RecordCreated(kind string) {
	c.recordsCreated.WithLabelValues(kind).Inc()
}

// RecordDeleted はレコード削除を種別付きで記録する。
func (c *Collector) RecordDeleted(kind string) {
	c.recordsDeleted.WithLabelValues(kind).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// TaskDispatchSucceeded はイベント送出成功を記録する。
func (c *Collector) TaskDispatchSucceeded() {
	c.dispatchOK.Inc()
}

// TaskDispatchFailed はイベント送出失敗を記録する。
func (c *Collector) TaskDispatchFailed() {
	c.dispatchFail.Inc()
}

// SchedulerCallSucceeded はリマインダー予約の成功を記録する。
func (c *Collector) SchedulerCallSucceeded() {
	c.schedulerOK.Inc()
}

// SchedulerCallFailed はリマインダー予約の失敗を記録する。
func (c *Collector) SchedulerCallFailed() {
	c.schedulerFail.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
