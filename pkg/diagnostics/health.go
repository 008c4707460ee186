package diagnostics

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tdeslauriers/portability/pkg/archive"
)

type HealthCheck struct {
	Status string `json:"status"`
}

func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {

	hc := HealthCheck{"UP"}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(hc); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code": 500,"message":"Internal Server Error"}`))
		return
	}
}

// TaskLister reports archive tasks still initiating or polling.
type TaskLister interface {
	InFlight() []archive.TaskStatus
}

// TaskReport is the body of the in-flight tasks endpoint.
type TaskReport struct {
	Count int                  `json:"count"`
	Tasks []archive.TaskStatus `json:"tasks"`
}

// NewTasksHandler lists in-flight archive tasks.
func NewTasksHandler(tasks TaskLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		inFlight := tasks.InFlight()
		if inFlight == nil {
			inFlight = []archive.TaskStatus{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(TaskReport{Count: len(inFlight), Tasks: inFlight}); err != nil {
			slog.Error("failed to encode in-flight tasks", slog.String("err", err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"code": 500,"message":"Internal Server Error"}`))
			return
		}
	}
}
