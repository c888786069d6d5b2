package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/plancheckhq/plancheck/internal/api/response"
	"github.com/plancheckhq/plancheck/internal/pipeline"
)

// ProgressReader answers batch progress queries.
type ProgressReader interface {
	Progress(ctx context.Context, checkID uuid.UUID) (*pipeline.Progress, error)
}

// NewProgressHandler returns the handler for
// GET /api/v1/checks/{checkID}/progress. Unknown checks produce an empty
// progress body, not a 404; status pages must render regardless.
func NewProgressHandler(svc ProgressReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := uuid.Parse(chi.URLParam(r, "checkID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"checkID must be a valid UUID", nil)
			return
		}

		progress, err := svc.Progress(r.Context(), checkID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to read progress", nil)
			return
		}

		response.JSON(w, progress)
	}
}
