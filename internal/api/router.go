// Package api assembles the HTTP surface: router, middleware stack, and
// response envelope.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/plancheckhq/plancheck/internal/api/middleware"
	"github.com/plancheckhq/plancheck/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	AnalyzeHandler      http.HandlerFunc
	ProcessQueueHandler http.HandlerFunc
	ProgressHandler     http.HandlerFunc

	CreateCheckHandler http.HandlerFunc
	GetCheckHandler    http.HandlerFunc
	ListChecksHandler  http.HandlerFunc
	ListRunsHandler    http.HandlerFunc

	SetOverrideHandler   http.HandlerFunc
	ClearOverrideHandler http.HandlerFunc

	CreateScreenshotHandler http.HandlerFunc
	ListScreenshotsHandler  http.HandlerFunc
	DeleteScreenshotHandler http.HandlerFunc

	UpsertCalibrationHandler     http.HandlerFunc
	UpsertSectionOverrideHandler http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc

	DebugQueueHandler http.HandlerFunc
	DebugJobsHandler  http.HandlerFunc
	DebugStuckHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/checks/analyze", orNotImplemented(deps.AnalyzeHandler))
		r.Post("/api/v1/queue/process", orNotImplemented(deps.ProcessQueueHandler))

		r.Post("/api/v1/checks", orNotImplemented(deps.CreateCheckHandler))
		r.Get("/api/v1/checks/{checkID}", orNotImplemented(deps.GetCheckHandler))
		r.Get("/api/v1/checks/{checkID}/progress", orNotImplemented(deps.ProgressHandler))
		r.Get("/api/v1/checks/{checkID}/runs", orNotImplemented(deps.ListRunsHandler))
		r.Get("/api/v1/assessments/{assessmentID}/checks", orNotImplemented(deps.ListChecksHandler))

		r.Put("/api/v1/checks/{checkID}/override", orNotImplemented(deps.SetOverrideHandler))
		r.Delete("/api/v1/checks/{checkID}/override", orNotImplemented(deps.ClearOverrideHandler))

		r.Post("/api/v1/checks/{checkID}/screenshots", orNotImplemented(deps.CreateScreenshotHandler))
		r.Get("/api/v1/checks/{checkID}/screenshots", orNotImplemented(deps.ListScreenshotsHandler))
		r.Delete("/api/v1/screenshots/{screenshotID}", orNotImplemented(deps.DeleteScreenshotHandler))

		r.Put("/api/v1/projects/{projectID}/calibrations", orNotImplemented(deps.UpsertCalibrationHandler))
		r.Put("/api/v1/assessments/{assessmentID}/section-overrides", orNotImplemented(deps.UpsertSectionOverrideHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))

			r.Get("/api/v1/debug/queue", orNotImplemented(deps.DebugQueueHandler))
			r.Get("/api/v1/debug/jobs", orNotImplemented(deps.DebugJobsHandler))
			r.Get("/api/v1/debug/stuck", orNotImplemented(deps.DebugStuckHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
