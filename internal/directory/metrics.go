package directory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	directoryRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ciam",
			Name:      "directory_requests_total",
			Help:      "Total number of directory operations",
		},
		[]string{"operation", "outcome"}, // outcome: success, not_found, error, timeout
	)

	directoryRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ciam",
			Name:      "directory_request_duration_seconds",
			Help:      "Directory operation latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)
)
