// Package metrics provides Prometheus instrumentation for auditsmart.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string
	register    sync.Once

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Workflow metrics
	stageTransitionTotal *prometheus.CounterVec
	stageFailureTotal    *prometheus.CounterVec

	// Remote audit API metrics
	auditAPIRequestTotal *prometheus.CounterVec
	auditAPIDuration     *prometheus.HistogramVec

	// Wallet metrics
	walletTransactionTotal *prometheus.CounterVec
)

// Init initializes the metrics system. Collectors are registered once per
// process.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	register.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		)

		httpDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		)

		stageTransitionTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_stage_transition_total",
				Help: "Total number of workflow stage transitions",
			},
			[]string{"from", "to"},
		)

		stageFailureTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_stage_failure_total",
				Help: "Total number of failed workflow operations",
			},
			[]string{"operation"},
		)

		auditAPIRequestTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_api_request_total",
				Help: "Total number of requests sent to the audit API",
			},
			[]string{"endpoint", "status"},
		)

		auditAPIDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "audit_api_request_duration_seconds",
				Help:    "Audit API request latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"endpoint"},
		)

		walletTransactionTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_transaction_total",
				Help: "Total number of wallet transactions by kind and outcome",
			},
			[]string{"kind", "status"},
		)
	})
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
