// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "notionauth"

// Collector はPrometheusメトリクスを収集する実装。
// gateway.MetricsRecorderとcleanup.PurgeRecorderを満たす。
type Collector struct {
	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	limiterWait  prometheus.Histogram
	inFlight     prometheus.Gauge
	purged       *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notion_calls_total",
			Help:      "Notion API呼び出しの合計数（操作・結果別）",
		}, []string{"operation", "outcome"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notion_call_duration_seconds",
			Help:      "Notion API呼び出しのレイテンシ（秒）",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		limiterWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notion_limiter_wait_seconds",
			Help:      "レートリミッターの待ち時間（秒）",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notion_calls_in_flight",
			Help:      "実行中のNotion API呼び出し数",
		}),
		purged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purged_records_total",
			Help:      "クリーンアップでアーカイブされたレコード数",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTPリクエスト数（メソッド・ステータスコード別）",
		}, []string{"code", "method"}),
	}

	reg.MustRegister(
		c.calls,
		c.callDuration,
		c.limiterWait,
		c.inFlight,
		c.purged,
		c.httpRequests,
	)

	return c
}

// RecordCall はNotion API呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordCall(op, outcome string, duration time.Duration) {
	c.calls.WithLabelValues(op, outcome).Inc()
	c.callDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordLimiterWait はレートリミッターの待ち時間を記録する。
func (c *Collector) RecordLimiterWait(duration time.Duration) {
	c.limiterWait.Observe(duration.Seconds())
}

// IncInFlight は実行中の呼び出し数を増やす。
func (c *Collector) IncInFlight() { c.inFlight.Inc() }

// DecInFlight は実行中の呼び出し数を減らす。
func (c *Collector) DecInFlight() { c.inFlight.Dec() }

// RecordPurged はクリーンアップでアーカイブしたレコード数を記録する。
func (c *Collector) RecordPurged(kind string, count int) {
	c.purged.WithLabelValues(kind).Add(float64(count))
}

// InstrumentHandler はHTTPハンドラーのリクエスト数をステータスコード別に記録する。
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(c.httpRequests, next)
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
