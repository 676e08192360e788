package v1

import (
	"net/http"

	"github.com/fluxgate/fluxgate/pkg/server/api"
)

// GenerateHandler handles POST /api/v1/generate
//
// Runs a blocking generation and returns the artifact in one round trip.
// The request waits its turn behind the same single engine slot the
// asynchronous tasks use, so a long queue means a long request; clients with
// latency budgets should prefer the task endpoints.
func GenerateHandler(deps *api.Deps) http.HandlerFunc {
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

		artifact, err := deps.Tasks.GenerateSync(r.Context(), req.Prompt, seed)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		api.WriteJSON(w, http.StatusOK, api.NewGenerationResult(artifact))
	}
}
