package client

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_api_requests_total",
		Help: "Requests sent to the studio service, by operation and outcome.",
	}, []string{"operation", "outcome"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "studio_api_request_duration_seconds",
		Help:    "Latency of requests sent to the studio service.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"operation"})
)

func observe(operation string, start time.Time, err error) {
	apiRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	apiRequestsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

func outcome(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &apiErr):
		return "http_error"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	default:
		return "transport_error"
	}
}
