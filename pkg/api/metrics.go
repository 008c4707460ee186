package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portability_http_requests_total",
		Help: "Front door requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portability_http_request_duration_seconds",
		Help:    "Front door request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
