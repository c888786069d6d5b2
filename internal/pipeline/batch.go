package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/plancheckhq/plancheck/internal/jobstore"
	"github.com/plancheckhq/plancheck/internal/store"
	"github.com/plancheckhq/plancheck/pkg/models"
)

// Coordinator fans one "analyze all these checks" request out into one job
// per check, all sharing a batch group, and answers aggregate progress
// queries by recounting persisted analysis runs (never a cached counter).
type Coordinator struct {
	jobs        jobstore.Store
	store       store.Store
	maxAttempts int
}

// NewCoordinator creates a Coordinator. maxAttempts is the per-job retry
// ceiling stamped onto every created job.
func NewCoordinator(jobs jobstore.Store, st store.Store, maxAttempts int) *Coordinator {
	return &Coordinator{jobs: jobs, store: st, maxAttempts: maxAttempts}
}

// SubmitRequest is one batch analysis submission.
type SubmitRequest struct {
	CheckIDs         []uuid.UUID
	Prompt           string
	Provider         string
	FetchScreenshots bool
}

// Submission reports what was enqueued: the batch group handle plus one job
// ID per check, in submission order, for caller-side traceability.
type Submission struct {
	BatchGroupID uuid.UUID `json:"batch_group_id"`
	JobIDs       []string  `json:"job_ids"`
	TotalBatches int       `json:"total_batches"`
}

// SubmitBatch creates and enqueues one analysis job per check. Batch size
// and total-batch count are fixed here and never renegotiated.
func (c *Coordinator) SubmitBatch(ctx context.Context, req SubmitRequest) (*Submission, error) {
	if len(req.CheckIDs) == 0 {
		return nil, fmt.Errorf("no check IDs submitted")
	}
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	groupID := uuid.New()
	total := len(req.CheckIDs)
	jobIDs := make([]string, 0, total)

	for i, checkID := range req.CheckIDs {
		job, err := jobstore.NewAnalysisJob(jobstore.AnalysisPayload{
			CheckID:          checkID,
			Prompt:           req.Prompt,
			Provider:         req.Provider,
			FetchScreenshots: req.FetchScreenshots,
			BatchGroupID:     groupID,
			BatchNumber:      i + 1,
			TotalBatches:     total,
		}, c.maxAttempts)
		if err != nil {
			return nil, fmt.Errorf("build job for check %s: %w", checkID, err)
		}

		if err := c.jobs.CreateJob(ctx, job); err != nil {
			return nil, fmt.Errorf("create job for check %s: %w", checkID, err)
		}
		if err := c.jobs.Enqueue(ctx, jobstore.JobTypeAnalysis, job.ID); err != nil {
			return nil, fmt.Errorf("enqueue job for check %s: %w", checkID, err)
		}

		if err := c.store.UpdateCheckStatus(ctx, checkID, models.CheckStatusProcessing); err != nil {
			slog.Error("marking check processing failed", "check_id", checkID, "error", err)
		}

		jobIDs = append(jobIDs, job.ID)
	}

	slog.Info("batch submitted", "batch_group_id", groupID, "total_batches", total)
	return &Submission{BatchGroupID: groupID, JobIDs: jobIDs, TotalBatches: total}, nil
}

// Progress is the aggregate state of the batch group a check belongs to.
// Total is zero when jobs are queued but no run has landed yet ("queued, not
// yet started").
type Progress struct {
	InProgress   bool       `json:"in_progress"`
	Completed    int        `json:"completed"`
	Total        int        `json:"total"`
	BatchGroupID *uuid.UUID `json:"batch_group_id,omitempty"`
}

// Progress reports batch progress for a check. For element-grouped checks it
// aggregates runs across all sibling checks sharing the physical instance,
// not just the one queried. An unknown check yields empty progress, never an
// error.
func (c *Coordinator) Progress(ctx context.Context, checkID uuid.UUID) (*Progress, error) {
	check, err := c.store.GetCheck(ctx, checkID)
	if errors.Is(err, store.ErrNotFound) {
		return &Progress{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get check %s: %w", checkID, err)
	}

	ids, err := c.siblingIDs(ctx, check)
	if err != nil {
		return nil, err
	}

	latest, err := c.store.LatestAnalysisRun(ctx, ids)
	if errors.Is(err, store.ErrNotFound) {
		// No run has landed yet. A check already marked processing means
		// jobs are waiting in queue; report in-progress with unknown total
		// instead of a misleading "done".
		if check.Status == models.CheckStatusProcessing {
			return &Progress{InProgress: true}, nil
		}
		return &Progress{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run for check %s: %w", checkID, err)
	}

	if latest.BatchGroupID == nil {
		done := check.Status == models.CheckStatusCompleted
		return &Progress{InProgress: !done, Completed: 1, Total: 1}, nil
	}

	completed, err := c.store.CountRunsInBatchGroup(ctx, *latest.BatchGroupID)
	if err != nil {
		return nil, fmt.Errorf("count batch group runs: %w", err)
	}

	inProgress := completed < latest.TotalBatches &&
		check.Status != models.CheckStatusCompleted
	return &Progress{
		InProgress:   inProgress,
		Completed:    completed,
		Total:        latest.TotalBatches,
		BatchGroupID: latest.BatchGroupID,
	}, nil
}

// siblingIDs returns the check's own ID plus every sibling sharing its
// element instance, when it has one.
func (c *Coordinator) siblingIDs(ctx context.Context, check *models.Check) ([]uuid.UUID, error) {
	if check.ElementGroupID == nil || check.InstanceLabel == nil {
		return []uuid.UUID{check.ID}, nil
	}

	siblings, err := c.store.GetSiblingChecks(ctx, check.AssessmentID, *check.ElementGroupID, *check.InstanceLabel)
	if err != nil {
		return nil, fmt.Errorf("get sibling checks: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(siblings)+1)
	seen := false
	for _, sib := range siblings {
		if sib.ID == check.ID {
			seen = true
		}
		ids = append(ids, sib.ID)
	}
	if !seen {
		ids = append(ids, check.ID)
	}
	return ids, nil
}
