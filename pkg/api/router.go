package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tdeslauriers/portability/pkg/diagnostics"
)

// NewRouter mounts the front door and the diagnostics endpoints.
func NewRouter(auth AuthHandler, tasks diagnostics.TaskLister) http.Handler {

	r := chi.NewRouter()
	r.Use(Observe)

	r.Get("/health", diagnostics.HealthCheckHandler)
	r.Get("/tasks", diagnostics.NewTasksHandler(tasks))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/auth", auth.HandleConsent)
	r.Post("/auth", auth.HandleCallback)

	return r
}
