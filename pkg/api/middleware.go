package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tdeslauriers/portability/internal/util"
	"github.com/tdeslauriers/portability/pkg/connect"
	"github.com/tdeslauriers/portability/pkg/validate"
)

// Observe logs and measures every request.  Routes are labelled by their chi
// pattern so path values never become metric labels.
func Observe(next http.Handler) http.Handler {

	logger := slog.Default().
		With(slog.String(util.ComponentKey, util.ComponentServer)).
		With(slog.String(util.PackageKey, util.PackageApi)).
		With(slog.String(util.ServiceKey, util.ServicePortability))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		start := time.Now()
		rw := connect.NewResponseWriter(w)

		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		method := validate.SanitizeMethod(r.Method)
		elapsed := time.Since(start)

		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(rw.StatusCode())).Inc()
		httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())

		// metrics scrapes and health checks are too noisy to log
		if route == "/metrics" || route == "/health" {
			return
		}

		logger.Info("request handled",
			slog.String("method", method),
			slog.String("path", validate.SanitizePath(r.URL.Path)),
			slog.Int("status", rw.StatusCode()),
			slog.Duration("duration", elapsed),
			slog.String("remote_addr", validate.SanitizeIp(r.RemoteAddr)),
			slog.String("user_agent", validate.SanitizeUserAgent(r.UserAgent())))
	})
}
