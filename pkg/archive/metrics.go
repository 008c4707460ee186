package archive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portability_archive_tasks_in_flight",
		Help: "Archive tasks currently initiating or polling.",
	})

	taskOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portability_archive_tasks_total",
		Help: "Finished archive tasks by outcome.",
	}, []string{"outcome"})

	pollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portability_archive_polls_total",
		Help: "Archive job state polls sent to the provider.",
	})
)
