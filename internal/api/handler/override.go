package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/plancheckhq/plancheck/internal/api/response"
	"github.com/plancheckhq/plancheck/internal/pipeline"
	"github.com/plancheckhq/plancheck/pkg/models"
)

// Overrider applies and clears manual statuses, cancelling queued analysis.
type Overrider interface {
	OverrideAndCancel(ctx context.Context, checkID uuid.UUID, status string, note *string) (*pipeline.CancelResult, error)
	ClearOverride(ctx context.Context, checkID uuid.UUID) error
}

var validManualStatuses = map[string]bool{
	models.ComplianceCompliant:    true,
	models.ComplianceNonCompliant: true,
	models.ComplianceNeedsReview:  true,
}

// NewSetOverrideHandler returns the handler for
// PUT /api/v1/checks/{checkID}/override. Once this returns, no queued or
// in-flight analysis can overwrite the check.
func NewSetOverrideHandler(svc Overrider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := uuid.Parse(chi.URLParam(r, "checkID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"checkID must be a valid UUID", nil)
			return
		}

		var req struct {
			Status string  `json:"status"`
			Note   *string `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if !validManualStatuses[req.Status] {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"status must be one of compliant, non_compliant, needs_review", nil)
			return
		}

		result, err := svc.OverrideAndCancel(r.Context(), checkID, req.Status, req.Note)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to apply override", nil)
			return
		}

		response.JSON(w, result)
	}
}

// NewClearOverrideHandler returns the handler for
// DELETE /api/v1/checks/{checkID}/override.
func NewClearOverrideHandler(svc Overrider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := uuid.Parse(chi.URLParam(r, "checkID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"checkID must be a valid UUID", nil)
			return
		}

		if err := svc.ClearOverride(r.Context(), checkID); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to clear override", nil)
			return
		}

		response.NoContent(w)
	}
}
