package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voice"

// Metrics holds every collector the service exports.
// Collectors are registered on the registry passed to New, so tests can use a fresh one.
type Metrics struct {
	gatherer prometheus.Gatherer

	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	webhooks         *prometheus.CounterVec
	webhookDuration  *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		providerRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total telephony provider requests.",
			},
			[]string{"provider", "op", "outcome"}, // outcome: ok, not_found, error
		),
		providerDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Duration of telephony provider requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "op"},
		),
		webhooks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhooks_total",
				Help:      "Total provider callbacks received.",
			},
			[]string{"kind", "outcome"},
		),
		webhookDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "webhook_duration_seconds",
				Help:      "Time to answer a provider callback.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status_code"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// ObserveWebhook implements webhook.Observer.
func (m *Metrics) ObserveWebhook(kind, outcome string, elapsed time.Duration) {
	m.webhooks.WithLabelValues(kind, outcome).Inc()
	m.webhookDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) observeProvider(provider, op, outcome string, elapsed time.Duration) {
	m.providerRequests.WithLabelValues(provider, op, outcome).Inc()
	m.providerDuration.WithLabelValues(provider, op).Observe(elapsed.Seconds())
}

// Middleware records request counts and latency per route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		method := c.Request.Method
		m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
