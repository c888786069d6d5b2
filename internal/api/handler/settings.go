package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/plancheckhq/plancheck/internal/api/response"
	"github.com/plancheckhq/plancheck/internal/store"
	"github.com/plancheckhq/plancheck/pkg/models"
)

// NewUpsertCalibrationHandler returns the handler for
// PUT /api/v1/projects/{projectID}/calibrations. One calibration per
// (project, page); repeated writes replace the previous scale.
func NewUpsertCalibrationHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"projectID must be a valid UUID", nil)
			return
		}

		var req struct {
			PageNumber int     `json:"page_number"`
			Scale      float64 `json:"scale"`
			Unit       string  `json:"unit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.PageNumber < 1 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"page_number must be at least 1", nil)
			return
		}
		if req.Scale <= 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"scale must be positive", nil)
			return
		}

		cal, err := st.UpsertCalibration(r.Context(), &models.Calibration{
			ProjectID:  projectID,
			PageNumber: req.PageNumber,
			Scale:      req.Scale,
			Unit:       req.Unit,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to save calibration", nil)
			return
		}

		response.JSON(w, cal)
	}
}

// NewUpsertSectionOverrideHandler returns the handler for
// PUT /api/v1/assessments/{assessmentID}/section-overrides.
func NewUpsertSectionOverrideHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assessmentID, err := uuid.Parse(chi.URLParam(r, "assessmentID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"assessmentID must be a valid UUID", nil)
			return
		}

		var req struct {
			SectionKey string `json:"section_key"`
			Included   bool   `json:"included"`
			Note       string `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.SectionKey == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"section_key is required", nil)
			return
		}

		ov, err := st.UpsertSectionOverride(r.Context(), &models.SectionOverride{
			AssessmentID: assessmentID,
			SectionKey:   req.SectionKey,
			Included:     req.Included,
			Note:         req.Note,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to save section override", nil)
			return
		}

		response.JSON(w, ov)
	}
}
