package handler

import (
	"context"
	"net/http"

	"github.com/plancheckhq/plancheck/internal/api/response"
	"github.com/plancheckhq/plancheck/internal/jobstore"
	"github.com/plancheckhq/plancheck/internal/pipeline"
)

// QueueInspector exposes the operational view of the job store.
type QueueInspector interface {
	QueueStats(ctx context.Context) (*pipeline.QueueStats, error)
	JobCounts(ctx context.Context) (map[string]int, error)
	StuckJobs(ctx context.Context) ([]*jobstore.Job, error)
}

// NewDebugQueueHandler returns the handler for GET /api/v1/debug/queue.
func NewDebugQueueHandler(svc QueueInspector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.QueueStats(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to read queue", nil)
			return
		}
		response.JSON(w, stats)
	}
}

// NewDebugJobsHandler returns the handler for GET /api/v1/debug/jobs:
// per-status counts across every job ever created.
func NewDebugJobsHandler(svc QueueInspector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := svc.JobCounts(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to count jobs", nil)
			return
		}
		response.JSON(w, map[string]any{"counts": counts})
	}
}

// NewDebugStuckHandler returns the handler for GET /api/v1/debug/stuck:
// jobs sitting in processing past the threshold, usually from a trigger
// invocation that died mid-job.
func NewDebugStuckHandler(svc QueueInspector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stuck, err := svc.StuckJobs(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to scan for stuck jobs", nil)
			return
		}
		if stuck == nil {
			stuck = []*jobstore.Job{}
		}
		response.JSON(w, map[string]any{"stuck": stuck, "count": len(stuck)})
	}
}
