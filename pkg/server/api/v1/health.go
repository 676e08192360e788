package v1

import (
	"net/http"
	"sync/atomic"

	"github.com/fluxgate/fluxgate/pkg/server/api"
)

// HealthResponse reports service and model state.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// HealthHandler handles GET /api/v1/health
//
// Always returns 200 with {"status": "ok"}; model_loaded flips to true once
// the engine has finished loading. Load balancers that should wait for the
// model belong on /readyz instead.
func HealthHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loaded := false
		if deps.Engine != nil {
			loaded = deps.Engine.Ready()
		}
		api.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:      "ok",
			ModelLoaded: loaded,
		})
	}
}

// ReadyzHandler returns a readiness probe handler backed by the given flag.
func ReadyzHandler(ready *atomic.Bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && ready.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Not Ready"))
	}
}
