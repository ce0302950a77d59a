package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poll cycle metrics
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aquaria_poll_cycles_total",
			Help: "Total number of poll cycles",
		},
		[]string{"result"}, // result: completed, aborted, source_unavailable, skipped_in_progress
	)

	PollCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aquaria_poll_cycle_duration_seconds",
			Help:    "Time taken by one poll cycle",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	PollDevicesFetched = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aquaria_poll_devices_fetched",
			Help: "Number of device readings in the last fetched batch",
		},
	)

	// Engine metrics
	DevicesEvaluatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aquaria_devices_evaluated_total",
			Help: "Total number of device evaluations by outcome",
		},
		[]string{"status"},
	)

	StateStoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aquaria_state_store_errors_total",
			Help: "Total number of device state store errors",
		},
		[]string{"op"},
	)

	// Dispatch metrics
	AlertsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aquaria_alerts_dispatched_total",
			Help: "Total number of alert dispatch attempts",
		},
		[]string{"rule", "status"}, // status: sent, no_target, failed
	)

	AlertRecordFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aquaria_alert_record_failures_total",
			Help: "Total number of delivered alerts that could not be recorded",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aquaria_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aquaria_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)
