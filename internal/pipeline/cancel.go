package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/plancheckhq/plancheck/internal/jobstore"
	"github.com/plancheckhq/plancheck/internal/store"
	"github.com/plancheckhq/plancheck/pkg/models"
)

// Canceller guarantees that once a reviewer sets a manual override on a
// check, no stale queued or in-flight AI analysis can later overwrite it.
// Queue cleanup here is best-effort; the processor's commit guard is the
// correctness backstop.
type Canceller struct {
	jobs  jobstore.Store
	store store.Store
}

// NewCanceller creates a Canceller.
func NewCanceller(jobs jobstore.Store, st store.Store) *Canceller {
	return &Canceller{jobs: jobs, store: st}
}

// CancelResult reports which queued jobs were cancelled for the check.
type CancelResult struct {
	CancelledJobIDs []string `json:"cancelled_job_ids"`
}

// OverrideAndCancel applies a manual status to the check and purges its
// pending jobs from the queue. The check leaves "processing" immediately,
// before queue cleanup, so pollers stop reporting in-progress at once. The
// override write is the only fatal step; partial queue cleanup is logged and
// tolerated.
func (c *Canceller) OverrideAndCancel(ctx context.Context, checkID uuid.UUID, status string, note *string) (*CancelResult, error) {
	if err := c.store.UpdateCheckStatus(ctx, checkID, models.CheckStatusCancelled); err != nil {
		return nil, fmt.Errorf("cancel check %s: %w", checkID, err)
	}

	cancelled := c.purgeQueuedJobs(ctx, checkID)

	if err := c.store.SetManualOverride(ctx, checkID, status, note); err != nil {
		return nil, fmt.Errorf("set override on check %s: %w", checkID, err)
	}

	slog.Info("override applied", "check_id", checkID, "manual_status", status,
		"cancelled_jobs", len(cancelled))
	return &CancelResult{CancelledJobIDs: cancelled}, nil
}

// ClearOverride removes the manual status. The check returns to completed if
// analysis runs exist, otherwise to pending.
func (c *Canceller) ClearOverride(ctx context.Context, checkID uuid.UUID) error {
	runs, err := c.store.CountAnalysisRuns(ctx, checkID)
	if err != nil {
		return fmt.Errorf("count runs for check %s: %w", checkID, err)
	}

	status := models.CheckStatusPending
	if runs > 0 {
		status = models.CheckStatusCompleted
	}

	if err := c.store.ClearManualOverride(ctx, checkID, status); err != nil {
		return fmt.Errorf("clear override on check %s: %w", checkID, err)
	}
	return nil
}

// purgeQueuedJobs scans the pending queue and cancels every job referencing
// the check. Each removal uses exact-value removal: other jobs may be popped
// concurrently, so positions shift. A job the processor grabs in the gap is
// caught by the commit guard instead.
func (c *Canceller) purgeQueuedJobs(ctx context.Context, checkID uuid.UUID) []string {
	length, err := c.jobs.QueueLength(ctx, jobstore.JobTypeAnalysis)
	if err != nil {
		slog.Error("reading queue length failed", "check_id", checkID, "error", err)
		return nil
	}
	if length == 0 {
		return nil
	}

	ids, err := c.jobs.ListQueueRange(ctx, jobstore.JobTypeAnalysis, 0, length-1)
	if err != nil {
		slog.Error("reading queue contents failed", "check_id", checkID, "error", err)
		return nil
	}

	var cancelled []string
	for _, jobID := range ids {
		job, err := c.jobs.GetJob(ctx, jobID)
		if err != nil {
			slog.Warn("fetching queued job failed", "job_id", jobID, "error", err)
			continue
		}
		if job == nil || job.Type != jobstore.JobTypeAnalysis {
			continue
		}

		payload, err := job.AnalysisPayload()
		if err != nil {
			slog.Warn("decoding queued job payload failed", "job_id", jobID, "error", err)
			continue
		}
		if payload.CheckID != checkID {
			continue
		}

		if err := c.jobs.UpdateJob(ctx, jobID, map[string]any{
			jobstore.FieldStatus:      jobstore.StatusCancelled,
			jobstore.FieldCancelledAt: time.Now().UTC(),
		}); err != nil {
			slog.Warn("cancelling queued job failed", "job_id", jobID, "error", err)
			continue
		}
		if _, err := c.jobs.RemoveFromQueue(ctx, jobstore.JobTypeAnalysis, jobID, 0); err != nil {
			slog.Warn("removing cancelled job from queue failed", "job_id", jobID, "error", err)
		}
		cancelled = append(cancelled, jobID)
	}
	return cancelled
}
