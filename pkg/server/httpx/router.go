// Package httpx assembles the HTTP router and middleware chain.
package httpx

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fluxgate/fluxgate/pkg/config"
	"github.com/fluxgate/fluxgate/pkg/server/api"
	v1 "github.com/fluxgate/fluxgate/pkg/server/api/v1"
)

// ServiceName and ServiceVersion identify the service on the root endpoint.
const (
	ServiceName    = "fluxgate image generation service"
	ServiceVersion = "1.0.0"
)

// NewRouter builds the HTTP handler tree for the server.
//
// Always mounted: /healthz, /readyz, and the root service-info endpoint.
// The /api/v1 surface is mounted only when the API is enabled and a task
// service is wired in.
func NewRouter(cfg config.ServerConfig, deps *api.Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", HealthzHandler)
	mux.Handle("GET /readyz", v1.ReadyzHandler(deps.Ready))
	mux.HandleFunc("GET /{$}", RootInfoHandler)

	if !cfg.APIEnabled {
		log.Info().
			Str("component", "httpx.router").
			Msg("API disabled - skipping API routes")
		return withMiddleware(mux)
	}

	if deps.Tasks == nil {
		log.Warn().
			Str("component", "httpx.router").
			Msg("Task service not provided - skipping task API routes")
		return withMiddleware(mux)
	}

	log.Info().
		Str("component", "httpx.router").
		Msg("Mounting task API routes")

	mux.Handle("POST /api/v1/tasks", v1.CreateTaskHandler(deps))
	mux.Handle("GET /api/v1/tasks", v1.ListTasksHandler(deps))
	mux.Handle("GET /api/v1/tasks/{id}", v1.GetTaskHandler(deps))
	mux.Handle("GET /api/v1/tasks/{id}/result", v1.GetTaskResultHandler(deps))
	mux.Handle("POST /api/v1/generate", v1.GenerateHandler(deps))
	mux.Handle("GET /api/v1/health", v1.HealthHandler(deps))

	return withMiddleware(mux)
}

// HealthzHandler is the liveness probe. Always 200.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// RootInfoHandler serves basic service identification on "/".
func RootInfoHandler(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"service": ServiceName,
		"version": ServiceVersion,
		"status":  "running",
	})
}

func withMiddleware(next http.Handler) http.Handler {
	return requestLogger(corsMiddleware(processTimeHeader(next)))
}

// requestLogger emits one structured log line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("component", "httpx").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// corsMiddleware allows cross-origin polling from browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// processTimeHeader reports server-side handling time to the client.
// The trailer form is used because the duration is unknown until the
// handler returns.
func processTimeHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("Trailer", "X-Process-Time")
		next.ServeHTTP(w, r)
		w.Header().Set("X-Process-Time", fmt.Sprintf("%.6f", time.Since(start).Seconds()))
	})
}
