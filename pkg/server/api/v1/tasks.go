package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/fluxgate/fluxgate/pkg/server/api"
)

// GenerateRequest is the task submission payload.
// Seed is optional; absent seeds default to 42 for reproducible output.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Seed   *int64 `json:"seed,omitempty"`
}

// DefaultSeed applies when a request names no seed.
const DefaultSeed int64 = 42

// CreateTaskHandler handles POST /api/v1/tasks
//
// Accepts a generation request, registers an asynchronous task and returns
// its id immediately. The actual generation is queued behind the single
// engine slot; callers poll GetTaskHandler for progress.
//
// Response format (202 Accepted):
//
//	{"task_id": "6f6c0b2e-...", "status": "pending"}
func CreateTaskHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeGenerateRequest(r)
		if err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "INVALID_INPUT", err.Error())
			return
		}

		seed := DefaultSeed
		if req.Seed != nil {
			seed = *req.Seed
		}

		taskID, err := deps.Tasks.Submit(r.Context(), req.Prompt, seed)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		api.WriteJSON(w, http.StatusAccepted, api.TaskCreated{
			TaskID: taskID,
			Status: "pending",
		})
	}
}

// GetTaskHandler handles GET /api/v1/tasks/{id}
//
// Returns the task's status snapshot: lifecycle state, progress counters,
// echoed inputs and timestamps. A failed task carries its error message here;
// the result endpoint never exposes failures.
//
// Returns 404 if the task id is unknown.
func GetTaskHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "TASK_ID_REQUIRED", "task id is required")
			return
		}

		snap, err := deps.Tasks.Status(id)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		api.WriteJSON(w, http.StatusOK, api.NewTaskStatus(snap))
	}
}

// GetTaskResultHandler handles GET /api/v1/tasks/{id}/result
//
// Returns the generated artifact once the task has completed.
// A known but unfinished task (including a failed one) yields 409 with code
// TASK_NOT_READY and the current status, so pollers can tell "try again"
// apart from a terminal failure. An unknown id yields 404.
func GetTaskResultHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "TASK_ID_REQUIRED", "task id is required")
			return
		}

		artifact, err := deps.Tasks.Result(id)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		api.WriteJSON(w, http.StatusOK, api.NewGenerationResult(artifact))
	}
}

// ListTasksHandler handles GET /api/v1/tasks
//
// Returns recent tasks, newest first.
//
// Query parameters:
//   - limit: Number of results (1-100, default 50)
//
// Response format:
//
//	{
//	  "tasks": [
//	    {"id": "...", "status": "completed", "progress": 23, ...},
//	    {"id": "...", "status": "running", "progress": 7, ...}
//	  ],
//	  "total": 2
//	}
func ListTasksHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := ParseListTasksLimit(r, deps.Config)
		if err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", "INVALID_QUERY", err.Error())
			return
		}

		snaps := deps.Tasks.List(limit)

		statuses := make([]api.TaskStatus, 0, len(snaps))
		for _, snap := range snaps {
			statuses = append(statuses, api.NewTaskStatus(snap))
		}

		response := map[string]any{
			"tasks": statuses,
			"total": len(statuses),
		}
		api.WriteJSON(w, http.StatusOK, response)
	}
}

// ParseListTasksLimit validates the limit query parameter against the
// configured bounds.
func ParseListTasksLimit(r *http.Request, cfg api.Config) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return cfg.DefaultListLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer: %q", raw)
	}
	if limit < 0 {
		return 0, fmt.Errorf("limit must not be negative: %d", limit)
	}
	if limit > cfg.MaxListLimit {
		return 0, fmt.Errorf("limit must be at most %d: %d", cfg.MaxListLimit, limit)
	}
	return limit, nil
}

func decodeGenerateRequest(r *http.Request) (GenerateRequest, error) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	if req.Prompt == "" {
		return req, fmt.Errorf("prompt must not be empty")
	}
	return req, nil
}
