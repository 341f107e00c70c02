package services

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_api_request_total",
			Help: "Total API requests",
		},
		[]string{"path"},
	)

	requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_api_request_errors_total",
			Help: "Total API requests answered with status >= 400",
		},
		[]string{"path"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	componentUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleet_component_up",
			Help: "1 if the component process is supervised, 0 otherwise",
		},
		[]string{"component"},
	)

	componentHealthy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleet_component_healthy",
			Help: "Result of the last health probe (1 healthy, 0 unhealthy)",
		},
		[]string{"component"},
	)

	componentRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_component_restarts_total",
			Help: "Restarts performed by the supervisor",
		},
		[]string{"component"},
	)

	probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_probe_duration_seconds",
			Help:    "Duration of component health probes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"component"},
	)

	monitorIterations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_monitor_iterations_total",
			Help: "Completed monitor loop iterations",
		},
	)

	criticalAlerts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_critical_alerts_total",
			Help: "Critical alerts raised by the monitor loop",
		},
	)
)

// 本地计数器，供健康检查接口直接读取
var (
	totalRequests atomic.Int64
	totalErrors   atomic.Int64
)

func init() {
	prometheus.MustRegister(requestCount)
	prometheus.MustRegister(requestErrors)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(componentUp)
	prometheus.MustRegister(componentHealthy)
	prometheus.MustRegister(componentRestarts)
	prometheus.MustRegister(probeDuration)
	prometheus.MustRegister(monitorIterations)
	prometheus.MustRegister(criticalAlerts)
}

func IncrementRequestCount(path string) {
	requestCount.WithLabelValues(path).Inc()
	totalRequests.Add(1)
}

func IncrementErrorCount(path string) {
	requestErrors.WithLabelValues(path).Inc()
	totalErrors.Add(1)
}

func RecordRequestDuration(path string, seconds float64) {
	requestDuration.WithLabelValues(path).Observe(seconds)
}

func GetTotalRequestCount() int64 {
	return totalRequests.Load()
}

func GetTotalErrorCount() int64 {
	return totalErrors.Load()
}

func recordUp(name string, up bool) {
	componentUp.WithLabelValues(name).Set(boolValue(up))
}

func recordProbe(name string, healthy bool, seconds float64) {
	componentHealthy.WithLabelValues(name).Set(boolValue(healthy))
	probeDuration.WithLabelValues(name).Observe(seconds)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
