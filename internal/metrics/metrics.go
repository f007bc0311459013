package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "curriculab"

var (
	// AttendanceWrites counts successful attendance upserts by status.
	AttendanceWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "attendance_writes_total",
		Help:      "Attendance records written, by status.",
	}, []string{"status"})

	// ReadFailures counts collaborator reads that failed and were served as empty.
	ReadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "read_failures_total",
		Help:      "Failed reads replaced by an empty collection, by source.",
	}, []string{"source"})

	// MissingRecords observes how many missing records each scan finds.
	MissingRecords = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "missing_records",
		Help:      "Missing attendance records found per scan.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})

	// HTTPRequests observes request latency by method, route and status.
	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// ChangelogEntries counts entries written by the worker.
	ChangelogEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "changelog_entries_total",
		Help:      "Change-log entries processed by the worker, by result.",
	}, []string{"result"})
)
