package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/plancheckhq/plancheck/internal/api/response"
	"github.com/plancheckhq/plancheck/internal/store"
	"github.com/plancheckhq/plancheck/pkg/models"
)

// NewCreateCheckHandler returns the handler for POST /api/v1/checks.
func NewCreateCheckHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AssessmentID   string  `json:"assessment_id"`
			ProjectID      string  `json:"project_id"`
			SectionKey     string  `json:"section_key"`
			SectionTitle   string  `json:"section_title"`
			ElementGroupID *string `json:"element_group_id"`
			InstanceLabel  *string `json:"instance_label"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		assessmentID, err := uuid.Parse(req.AssessmentID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"assessment_id must be a valid UUID", nil)
			return
		}
		projectID, err := uuid.Parse(req.ProjectID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"project_id must be a valid UUID", nil)
			return
		}
		if req.SectionKey == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"section_key is required", nil)
			return
		}

		check := &models.Check{
			ID:           uuid.New(),
			AssessmentID: assessmentID,
			ProjectID:    projectID,
			SectionKey:   req.SectionKey,
			SectionTitle: req.SectionTitle,
			Status:       models.CheckStatusPending,
		}
		if req.ElementGroupID != nil {
			groupID, err := uuid.Parse(*req.ElementGroupID)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"element_group_id must be a valid UUID", nil)
				return
			}
			check.ElementGroupID = &groupID
			check.InstanceLabel = req.InstanceLabel
		}

		if err := st.CreateCheck(r.Context(), check); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to create check", nil)
			return
		}

		response.Created(w, check)
	}
}

// NewGetCheckHandler returns the handler for GET /api/v1/checks/{checkID}.
func NewGetCheckHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := uuid.Parse(chi.URLParam(r, "checkID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"checkID must be a valid UUID", nil)
			return
		}

		check, err := st.GetCheck(r.Context(), checkID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Check not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load check", nil)
			return
		}

		response.JSON(w, check)
	}
}

// NewListChecksHandler returns the handler for
// GET /api/v1/assessments/{assessmentID}/checks.
func NewListChecksHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assessmentID, err := uuid.Parse(chi.URLParam(r, "assessmentID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"assessmentID must be a valid UUID", nil)
			return
		}

		checks, err := st.ListChecksByAssessment(r.Context(), assessmentID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list checks", nil)
			return
		}
		if checks == nil {
			checks = []*models.Check{}
		}

		response.JSON(w, checks)
	}
}

// NewListRunsHandler returns the handler for
// GET /api/v1/checks/{checkID}/runs, newest first.
func NewListRunsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := uuid.Parse(chi.URLParam(r, "checkID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"checkID must be a valid UUID", nil)
			return
		}

		runs, err := st.ListAnalysisRuns(r.Context(), checkID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list analysis runs", nil)
			return
		}
		if runs == nil {
			runs = []*models.AnalysisRun{}
		}

		response.JSON(w, runs)
	}
}
