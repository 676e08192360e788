package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluxgate/fluxgate/pkg/config"
	"github.com/fluxgate/fluxgate/pkg/server/api"
	"github.com/fluxgate/fluxgate/pkg/tasks"
)

// noopTaskService satisfies api.TaskService for routing tests.
type noopTaskService struct{}

func (noopTaskService) Submit(ctx context.Context, prompt string, seed int64) (string, error) {
	return "id", nil
}
func (noopTaskService) Status(id string) (tasks.Snapshot, error) {
	return tasks.Snapshot{}, tasks.NewNotFoundError(id)
}
func (noopTaskService) Result(id string) (*tasks.Artifact, error) {
	return nil, tasks.NewNotFoundError(id)
}
func (noopTaskService) List(limit int) []tasks.Snapshot { return nil }
func (noopTaskService) GenerateSync(ctx context.Context, prompt string, seed int64) (*tasks.Artifact, error) {
	return nil, nil
}

func newTestRouter(apiEnabled bool, svc api.TaskService) http.Handler {
	ready := &atomic.Bool{}
	ready.Store(true)
	deps := &api.Deps{
		Tasks:  svc,
		Config: api.DefaultConfig(),
		Ready:  ready,
	}
	return NewRouter(config.ServerConfig{APIEnabled: apiEnabled}, deps)
}

func TestRouterHealthEndpoints(t *testing.T) {
	router := newTestRouter(true, noopTaskService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterRootInfo(t *testing.T) {
	router := newTestRouter(true, noopTaskService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal(t, ServiceName, info["service"])
	require.Equal(t, "running", info["status"])
}

func TestRouterUnknownPath(t *testing.T) {
	router := newTestRouter(true, noopTaskService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterAPIDisabled(t *testing.T) {
	router := newTestRouter(false, noopTaskService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Probes stay mounted regardless.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterNoTaskService(t *testing.T) {
	router := newTestRouter(true, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterTaskRoutesMounted(t *testing.T) {
	router := newTestRouter(true, noopTaskService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/some-id", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "TASK_NOT_FOUND", resp.Code, "route dispatched to the task handler")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterCORSHeaders(t *testing.T) {
	router := newTestRouter(true, noopTaskService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	// Preflight short-circuits before routing.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/tasks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestRouterProcessTimeTrailer(t *testing.T) {
	router := newTestRouter(true, noopTaskService{})

	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	// Trailers become readable only after the body is drained.
	_, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Trailer.Get("X-Process-Time"))
}
