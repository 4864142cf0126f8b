// Package metrics exposes Prometheus collectors for the proxy. Collectors are
// registered against an explicit Registerer so tests can use a private
// registry, and are served from a dedicated listener rather than the proxied
// path space.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plex_offload"

// Label values.
const (
	RouteCapture  = "capture"
	RouteFallback = "fallback"

	TargetOrigin  = "origin"
	TargetGateway = "gateway"

	OutcomeOK    = "ok"
	OutcomeError = "error"

	ReasonTooLarge = "body_too_large"
	ReasonParse    = "parse"
)

// Sizer is satisfied by the token cache and the media index.
type Sizer interface {
	Len() int
}

// Metrics 聚合代理层使用的全部指标，nil 接收者上的方法均为空操作。
type Metrics struct {
	requests      *prometheus.CounterVec
	capturedParts prometheus.Counter
	captureErrors *prometheus.CounterVec
	factory       promauto.Factory
}

// New 在 reg 上注册请求/捕获相关指标。
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		factory: factory,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Proxied requests by inbound route, upstream target and outcome",
		}, []string{"route", "target", "outcome"}),
		capturedParts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captured_parts_total",
			Help:      "Media parts recorded from metadata responses",
		}),
		captureErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Metadata captures that could not be buffered or parsed",
		}, []string{"reason"}),
	}
}

// ObserveCaches registers gauges reporting the current size of the token
// cache and the media index.
func (m *Metrics) ObserveCaches(tokens, media Sizer) {
	if m == nil {
		return
	}
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tokens",
		Help:      "Access tokens currently retained",
	}, func() float64 { return float64(tokens.Len()) })
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "media_entries",
		Help:      "Media parts known to the index",
	}, func() float64 { return float64(media.Len()) })
}

// Request counts one proxied request.
func (m *Metrics) Request(route, target, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, target, outcome).Inc()
}

// CapturedParts adds n parts recorded from a metadata response.
func (m *Metrics) CapturedParts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.capturedParts.Add(float64(n))
}

// CaptureError counts a metadata capture that failed for reason.
func (m *Metrics) CaptureError(reason string) {
	if m == nil {
		return
	}
	m.captureErrors.WithLabelValues(reason).Inc()
}

// Handler 返回暴露 gatherer 中指标的 HTTP handler。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
