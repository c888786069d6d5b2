package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/plancheckhq/plancheck/internal/api/response"
	"github.com/plancheckhq/plancheck/internal/blob"
	"github.com/plancheckhq/plancheck/internal/store"
	"github.com/plancheckhq/plancheck/pkg/models"
)

// NewCreateScreenshotHandler returns the handler for
// POST /api/v1/checks/{checkID}/screenshots. It records the metadata row and
// hands back presigned upload URLs; the client PUTs the image bytes itself.
func NewCreateScreenshotHandler(st store.Store, blobs blob.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := uuid.Parse(chi.URLParam(r, "checkID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"checkID must be a valid UUID", nil)
			return
		}

		var req struct {
			PageNumber int    `json:"page_number"`
			Caption    string `json:"caption"`
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

		shot := &models.Screenshot{
			ID:         uuid.New(),
			CheckID:    check.ID,
			ProjectID:  check.ProjectID,
			PageNumber: req.PageNumber,
			Caption:    req.Caption,
		}
		shot.StorageKey = blob.ScreenshotKey(shot.ProjectID, shot.CheckID, shot.ID)
		shot.ThumbnailKey = blob.ThumbnailKey(shot.ProjectID, shot.CheckID, shot.ID)

		uploadURL, err := blobs.PresignUpload(r.Context(), shot.StorageKey)
		if err != nil {
			response.Error(w, http.StatusBadGateway, "STORAGE_UNAVAILABLE",
				"Failed to presign screenshot upload", nil)
			return
		}
		thumbURL, err := blobs.PresignUpload(r.Context(), shot.ThumbnailKey)
		if err != nil {
			response.Error(w, http.StatusBadGateway, "STORAGE_UNAVAILABLE",
				"Failed to presign thumbnail upload", nil)
			return
		}

		if err := st.CreateScreenshot(r.Context(), shot); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to save screenshot", nil)
			return
		}

		response.Created(w, map[string]any{
			"screenshot":           shot,
			"upload_url":           uploadURL,
			"thumbnail_upload_url": thumbURL,
		})
	}
}

// NewListScreenshotsHandler returns the handler for
// GET /api/v1/checks/{checkID}/screenshots.
func NewListScreenshotsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := uuid.Parse(chi.URLParam(r, "checkID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"checkID must be a valid UUID", nil)
			return
		}

		shots, err := st.ListScreenshotsByCheck(r.Context(), checkID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list screenshots", nil)
			return
		}
		if shots == nil {
			shots = []*models.Screenshot{}
		}

		response.JSON(w, shots)
	}
}

// NewDeleteScreenshotHandler returns the handler for
// DELETE /api/v1/screenshots/{screenshotID}. The metadata row goes first;
// orphaned blobs are tolerable, dangling rows are not.
func NewDeleteScreenshotHandler(st store.Store, blobs blob.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shotID, err := uuid.Parse(chi.URLParam(r, "screenshotID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"screenshotID must be a valid UUID", nil)
			return
		}

		shot, err := st.GetScreenshot(r.Context(), shotID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Screenshot not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load screenshot", nil)
			return
		}

		if err := st.DeleteScreenshot(r.Context(), shotID); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to delete screenshot", nil)
			return
		}

		for _, key := range []string{shot.StorageKey, shot.ThumbnailKey} {
			if key == "" {
				continue
			}
			if err := blobs.Delete(r.Context(), key); err != nil {
				slog.Warn("deleting blob failed", "key", key, "error", err)
			}
		}

		response.NoContent(w)
	}
}
