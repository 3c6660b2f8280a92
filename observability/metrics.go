package observability

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pcnerrors "pcnchain/core/errors"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	networkMetricsOnce sync.Once
	networkRegistry    *NetworkMetrics
)

// ModuleMetrics returns the lazily-initialised registry recording query API
// activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pcn",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total query API requests segmented by route and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pcn",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total query API errors segmented by route and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "pcn",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for query API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pcn",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of query API requests rejected by rate limiting.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a query request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// NetworkMetrics tracks channel, HTLC and routing activity of the engines.
type NetworkMetrics struct {
	operations   *prometheus.CounterVec
	failures     *prometheus.CounterVec
	openChannels prometheus.Gauge
	pendingHTLCs prometheus.Gauge
	payouts      *prometheus.CounterVec
}

// Network returns the singleton registry for engine metrics.
func Network() *NetworkMetrics {
	networkMetricsOnce.Do(func() {
		networkRegistry = &NetworkMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pcn",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Engine operations segmented by module, operation and outcome.",
			}, []string{"module", "operation", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pcn",
				Subsystem: "engine",
				Name:      "failures_total",
				Help:      "Rejected engine operations segmented by error kind.",
			}, []string{"module", "operation", "kind"}),
			openChannels: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "pcn",
				Subsystem: "channels",
				Name:      "open",
				Help:      "Number of channels currently open.",
			}),
			pendingHTLCs: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "pcn",
				Subsystem: "htlc",
				Name:      "pending",
				Help:      "Number of HTLCs neither claimed nor refunded.",
			}),
			payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pcn",
				Subsystem: "channels",
				Name:      "payout_total",
				Help:      "Amount paid out of custody at channel close, by close path.",
			}, []string{"path"}),
		}
		prometheus.MustRegister(
			networkRegistry.operations,
			networkRegistry.failures,
			networkRegistry.openChannels,
			networkRegistry.pendingHTLCs,
			networkRegistry.payouts,
		)
	})
	return networkRegistry
}

// ObserveOperation records the outcome of an engine operation.
func (m *NetworkMetrics) ObserveOperation(module, operation string, err error) {
	if m == nil {
		return
	}
	module = strings.TrimSpace(module)
	if module == "" {
		module = "unknown"
	}
	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = "unknown"
	}
	if err == nil {
		m.operations.WithLabelValues(module, operation, "success").Inc()
		return
	}
	m.operations.WithLabelValues(module, operation, "error").Inc()
	kind := "internal"
	if k, ok := pcnerrors.KindOf(err); ok {
		kind = k.String()
	}
	m.failures.WithLabelValues(module, operation, kind).Inc()
}

// SetOpenChannels publishes the number of open channels.
func (m *NetworkMetrics) SetOpenChannels(n uint64) {
	if m == nil {
		return
	}
	m.openChannels.Set(float64(n))
}

// SetPendingHTLCs publishes the number of unresolved HTLCs.
func (m *NetworkMetrics) SetPendingHTLCs(n int) {
	if m == nil {
		return
	}
	m.pendingHTLCs.Set(float64(n))
}

// RecordPayout adds amount to the payout counter for the close path
// ("cooperative" or "settle").
func (m *NetworkMetrics) RecordPayout(path string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	m.payouts.WithLabelValues(path).Add(value)
}
