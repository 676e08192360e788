package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluxgate/fluxgate/pkg/server/api"
)

type stubEngineStatus struct{ ready bool }

func (s stubEngineStatus) Ready() bool { return s.ready }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		engine     api.EngineStatus
		wantLoaded bool
	}{
		{"model loaded", stubEngineStatus{ready: true}, true},
		{"model not loaded", stubEngineStatus{ready: false}, false},
		{"no engine wired", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := HealthHandler(&api.Deps{Engine: tt.engine})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			rec := httptest.NewRecorder()
			handler(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)

			var health HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
			require.Equal(t, "ok", health.Status)
			require.Equal(t, tt.wantLoaded, health.ModelLoaded)
		})
	}
}

func TestReadyzHandler(t *testing.T) {
	var ready atomic.Bool
	handler := ReadyzHandler(&ready)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "Not Ready", rec.Body.String())

	ready.Store(true)
	rec = httptest.NewRecorder()
	handler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Ready", rec.Body.String())
}

func TestReadyzHandlerNilFlag(t *testing.T) {
	handler := ReadyzHandler(nil)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
