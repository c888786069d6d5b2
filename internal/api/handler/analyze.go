// Package handler contains the HTTP handlers. Each handler depends on a
// narrow interface so tests can stub collaborators without spinning up the
// full pipeline.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/plancheckhq/plancheck/internal/api/response"
	"github.com/plancheckhq/plancheck/internal/pipeline"
)

// BatchSubmitter fans a set of checks out into queued analysis jobs.
type BatchSubmitter interface {
	SubmitBatch(ctx context.Context, req pipeline.SubmitRequest) (*pipeline.Submission, error)
}

const maxBatchSize = 50

// NewAnalyzeHandler returns the handler for POST /api/v1/checks/analyze.
// It enqueues work and returns immediately; results arrive via processing
// triggers and are read back through the progress endpoint.
func NewAnalyzeHandler(svc BatchSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CheckIDs         []string `json:"check_ids"`
			Prompt           string   `json:"prompt"`
			Provider         string   `json:"provider"`
			FetchScreenshots bool     `json:"fetch_screenshots"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if len(req.CheckIDs) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "check_ids is required", nil)
			return
		}
		if len(req.CheckIDs) > maxBatchSize {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"too many checks in one batch", map[string]any{"max": maxBatchSize})
			return
		}
		if req.Prompt == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "prompt is required", nil)
			return
		}

		checkIDs := make([]uuid.UUID, 0, len(req.CheckIDs))
		for _, raw := range req.CheckIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"check_ids must be valid UUIDs", map[string]any{"invalid": raw})
				return
			}
			checkIDs = append(checkIDs, id)
		}

		sub, err := svc.SubmitBatch(r.Context(), pipeline.SubmitRequest{
			CheckIDs:         checkIDs,
			Prompt:           req.Prompt,
			Provider:         req.Provider,
			FetchScreenshots: req.FetchScreenshots,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to enqueue analysis batch", nil)
			return
		}

		response.Accepted(w, sub)
	}
}
