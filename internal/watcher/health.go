package watcher

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler answers liveness probes and exposes the watcher metrics.
func HealthHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	ok := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
	r.Get("/", ok)
	r.Get("/healthz", ok)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}
