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
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordSignIn(result string)
	RecordUpload(budgetMet bool)
	RecordCompressionIterations(iterations int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordWorkerCycle(job string, success bool)
}

// サインイン結果のラベル値。
const (
	SignInSuccess            = "success"
	SignInInvalidCredentials = "invalid_credentials"
	SignInNotAuthorized      = "not_authorized"
	SignInProviderError      = "provider_error"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signIns               *prometheus.CounterVec
	uploads               *prometheus.CounterVec
	compressionIterations prometheus.Histogram
	httpStatus            *prometheus.CounterVec
	requestLatency        prometheus.Histogram
	workerCycles          *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_signin_total",
			Help: "結果別の管理者サインイン試行数",
		}, []string{"result"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_upload_total",
			Help: "サイズ予算の達成状況別の画像アップロード数",
		}, []string{"budget_met"}),
		compressionIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "folio_compression_iterations",
			Help:    "画像圧縮の再エンコード反復回数",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 12},
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "folio_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		workerCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_worker_cycles_total",
			Help: "ジョブ種別・成否別のワーカーサイクル実行数",
		}, []string{"job", "success"}),
	}

	reg.MustRegister(
		c.signIns,
		c.uploads,
		c.compressionIterations,
		c.httpStatus,
		c.requestLatency,
		c.workerCycles,
	)

	return c
}

// RecordSignIn はサインイン試行の結果を記録する。
func (c *Collector) RecordSignIn(result string) {
	c.signIns.WithLabelValues(result).Inc()
}

// RecordUpload は画像アップロードを記録する。
func (c *Collector) RecordUpload(budgetMet bool) {
	c.uploads.WithLabelValues(strconv.FormatBool(budgetMet)).Inc()
}

// RecordCompressionIterations は圧縮の反復回数を記録する。
func (c *Collector) RecordCompressionIterations(iterations int) {
	c.compressionIterations.Observe(float64(iterations))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordWorkerCycle はワーカーサイクルの実行を記録する。
func (c *Collector) RecordWorkerCycle(job string, success bool) {
	c.workerCycles.WithLabelValues(job, strconv.FormatBool(success)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
