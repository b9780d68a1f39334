package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamcast_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamcast_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Provisioning Metrics
	ProvisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamcast_provisions_total",
			Help: "Total number of stream provisioning attempts",
		},
		[]string{"outcome"},
	)

	LifecycleTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamcast_lifecycle_transitions_total",
			Help: "Total number of stream lifecycle transitions",
		},
		[]string{"transition"},
	)

	// Port Pool Metrics
	PortsAllocated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamcast_ports_allocated",
			Help: "Number of ports currently allocated",
		},
	)

	PortsAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamcast_ports_available",
			Help: "Number of ports currently free",
		},
	)

	PortAllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamcast_port_allocations_total",
			Help: "Total number of port pool operations",
		},
		[]string{"operation", "outcome"},
	)

	// Shoutcast Client Metrics
	ShoutcastRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamcast_shoutcast_requests_total",
			Help: "Total number of streaming-server admin requests",
		},
		[]string{"operation", "outcome"},
	)

	ShoutcastRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamcast_shoutcast_request_duration_seconds",
			Help:    "Streaming-server admin request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Monitoring Aggregator Metrics
	MonitorSamplesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamcast_monitor_samples_total",
			Help: "Total number of monitoring samples written",
		},
	)

	MonitorPollErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamcast_monitor_poll_errors_total",
			Help: "Total number of failed monitoring polls",
		},
	)

	SessionsOpenedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamcast_sessions_opened_total",
			Help: "Total number of source sessions opened",
		},
	)

	SessionsClosedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamcast_sessions_closed_total",
			Help: "Total number of source sessions closed",
		},
	)

	// Reconcile Queue Metrics
	ReconcileTasksPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamcast_reconcile_tasks_published_total",
			Help: "Total number of reconcile tasks published",
		},
	)

	ReconcileTasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamcast_reconcile_tasks_processed_total",
			Help: "Total number of reconcile tasks processed",
		},
		[]string{"outcome"},
	)
)
