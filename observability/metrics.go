package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics aggregates the counters and histograms recorded around every
// vault RPC operation.
type VaultMetrics struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	breaches     *prometheus.CounterVec
	liquidations prometheus.Counter
}

var (
	vaultMetricsOnce sync.Once
	vaultRegistry    *VaultMetrics
)

// Vault returns the lazily-initialised vault metrics registry.
func Vault() *VaultMetrics {
	vaultMetricsOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "synthvault",
				Subsystem: "vault",
				Name:      "requests_total",
				Help:      "Total vault operations segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "synthvault",
				Subsystem: "vault",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for vault operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			breaches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "synthvault",
				Subsystem: "vault",
				Name:      "health_breach_rejections_total",
				Help:      "Operations rejected because they would break the minimum health factor.",
			}, []string{"method"}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "synthvault",
				Subsystem: "vault",
				Name:      "liquidations_total",
				Help:      "Completed liquidations.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.requests,
			vaultRegistry.latency,
			vaultRegistry.breaches,
			vaultRegistry.liquidations,
		)
	})
	return vaultRegistry
}

// Observe records one vault operation outcome.
func (m *VaultMetrics) Observe(method string, failed bool, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if failed {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// BreachRejected counts a solvency rejection for the method.
func (m *VaultMetrics) BreachRejected(method string) {
	if m == nil {
		return
	}
	m.breaches.WithLabelValues(method).Inc()
}

// LiquidationCompleted counts a successful liquidation.
func (m *VaultMetrics) LiquidationCompleted() {
	if m == nil {
		return
	}
	m.liquidations.Inc()
}
