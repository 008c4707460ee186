package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	acceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portability_authorizations_accepted_total",
		Help: "Authorization codes handed to the pipeline.",
	})

	exchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portability_token_exchanges_total",
		Help: "Token exchanges by outcome.",
	}, []string{"outcome"})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portability_downloads_total",
		Help: "Archive completions handled by the download coordinator, by outcome.",
	}, []string{"outcome"})

	retiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portability_authorizations_retired_total",
		Help: "Authorizations whose every resource has been downloaded.",
	})

	resetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portability_resets_total",
		Help: "Provider authorization resets by outcome.",
	}, []string{"outcome"})
)
