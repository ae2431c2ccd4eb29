package probeapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatewayprobe/pkg/middleware"
)

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(a.log))
	r.Use(middleware.DebugWriteHeader(a.log))
	r.Use(middleware.Tracing(a.cfg))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))

	r.Get("/openapi.json", apiDescription().ServeHandler("gatewayprobe", apiVersion))

	r.Get("/config", a.getConfig)
	r.Put("/config", a.putConfig)

	r.Get("/scenarios", a.listScenarios)
	r.Post("/scenarios/{kind}", a.runScenario)

	r.Get("/results", a.listResults)
	r.Delete("/results", a.clearResults)
	return r
}
