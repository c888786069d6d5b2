// Package pipeline implements the asynchronous analysis job pipeline: batch
// fan-out, the trigger-driven queue processor, cancellation, and queue
// inspection. There is no resident worker loop; every unit of work happens
// inside one externally-triggered invocation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/plancheckhq/plancheck/internal/jobstore"
	"github.com/plancheckhq/plancheck/internal/store"
	"github.com/plancheckhq/plancheck/pkg/models"
)

// Tick outcomes reported by ProcessNext.
const (
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeDiscarded = "discarded"
	OutcomeMissing   = "missing"
)

// TickResult describes what one processor invocation did with one job.
type TickResult struct {
	JobID   string `json:"job_id"`
	Outcome string `json:"outcome"`
}

// Processor executes queued analysis jobs one at a time when invoked. It is
// stateless between invocations: an external trigger (the HTTP queue-process
// endpoint, poked by the client's poller) drives every tick.
type Processor struct {
	jobs     jobstore.Store
	store    store.Store
	analyzer models.ComplianceAnalyzer
	timeout  time.Duration
}

// NewProcessor creates a Processor. timeout bounds one analyzer invocation.
func NewProcessor(jobs jobstore.Store, st store.Store, analyzer models.ComplianceAnalyzer, timeout time.Duration) *Processor {
	return &Processor{jobs: jobs, store: st, analyzer: analyzer, timeout: timeout}
}

// ProcessNext dequeues and fully processes at most one job. An empty queue
// returns (nil, nil) with no state mutated.
func (p *Processor) ProcessNext(ctx context.Context) (*TickResult, error) {
	jobID, err := p.jobs.Dequeue(ctx, jobstore.JobTypeAnalysis)
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	if jobID == "" {
		return nil, nil
	}

	job, err := p.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetch job %s: %w", jobID, err)
	}
	if job == nil {
		slog.Warn("dequeued job has no record", "job_id", jobID)
		return &TickResult{JobID: jobID, Outcome: OutcomeMissing}, nil
	}

	// A job cancelled (or otherwise finished) between enqueue and dequeue is
	// skipped without invoking the analyzer or touching the check.
	if job.Terminal() {
		slog.Info("skipping terminal job", "job_id", jobID, "status", job.Status)
		return &TickResult{JobID: jobID, Outcome: OutcomeSkipped}, nil
	}

	payload, err := job.AnalysisPayload()
	if err != nil {
		// Unparseable payloads can never succeed; fail permanently.
		slog.Error("invalid job payload", "job_id", jobID, "error", err)
		_ = p.jobs.UpdateJob(ctx, jobID, map[string]any{jobstore.FieldStatus: jobstore.StatusFailed})
		return &TickResult{JobID: jobID, Outcome: OutcomeFailed}, nil
	}

	attempts := job.Attempts + 1
	now := time.Now().UTC()
	if err := p.jobs.UpdateJob(ctx, jobID, map[string]any{
		jobstore.FieldStatus:    jobstore.StatusProcessing,
		jobstore.FieldAttempts:  attempts,
		jobstore.FieldStartedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("mark job %s processing: %w", jobID, err)
	}

	evidence, err := p.resolveEvidence(ctx, payload)
	if err != nil {
		slog.Error("resolving evidence failed", "job_id", jobID, "check_id", payload.CheckID, "error", err)
		return p.handleFailure(ctx, job, payload, attempts)
	}

	analysisCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	result, err := p.analyzer.Analyze(analysisCtx, models.AnalysisRequest{
		Prompt:   payload.Prompt,
		Evidence: evidence,
		Provider: payload.Provider,
	})
	elapsed := time.Since(started)

	if err != nil {
		slog.Warn("analysis failed", "job_id", jobID, "check_id", payload.CheckID,
			"attempt", attempts, "error", err)
		return p.handleFailure(ctx, job, payload, attempts)
	}

	return p.commit(ctx, job, payload, result, elapsed)
}

// ProcessBatch runs up to n ticks, stopping early when the queue drains.
func (p *Processor) ProcessBatch(ctx context.Context, n int) ([]*TickResult, error) {
	var results []*TickResult
	for i := 0; i < n; i++ {
		res, err := p.ProcessNext(ctx)
		if err != nil {
			return results, err
		}
		if res == nil {
			break
		}
		results = append(results, res)
	}
	return results, nil
}

// resolveEvidence loads screenshot evidence for the check. Payloads never
// carry inline screenshots for batch jobs; fetching by check ID keeps queue
// entries bounded in size.
func (p *Processor) resolveEvidence(ctx context.Context, payload *jobstore.AnalysisPayload) ([]models.Evidence, error) {
	if !payload.FetchScreenshots {
		return nil, nil
	}

	shots, err := p.store.ListScreenshotsByCheck(ctx, payload.CheckID)
	if err != nil {
		return nil, fmt.Errorf("list screenshots for check %s: %w", payload.CheckID, err)
	}

	evidence := make([]models.Evidence, 0, len(shots))
	for _, shot := range shots {
		evidence = append(evidence, models.Evidence{
			ScreenshotID: shot.ID.String(),
			PageNumber:   shot.PageNumber,
			Caption:      shot.Caption,
			ImageBase64:  shot.ImageBase64,
		})
	}
	return evidence, nil
}

// commit persists a successful analysis. Cancellation is cooperative: a job
// already inside the analyzer cannot be interrupted, so the commit path
// re-checks both the job and the check immediately before writing. The
// cancellation controller's queue cleanup is an optimization; this guard is
// the correctness backstop.
func (p *Processor) commit(ctx context.Context, job *jobstore.Job, payload *jobstore.AnalysisPayload,
	result models.AnalysisResult, elapsed time.Duration) (*TickResult, error) {

	fresh, err := p.jobs.GetJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("re-fetch job %s: %w", job.ID, err)
	}
	if fresh != nil && fresh.Terminal() {
		slog.Info("discarding result for terminal job", "job_id", job.ID, "status", fresh.Status)
		return &TickResult{JobID: job.ID, Outcome: OutcomeDiscarded}, nil
	}

	check, err := p.store.GetCheck(ctx, payload.CheckID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("re-fetch check %s: %w", payload.CheckID, err)
	}
	if check != nil && (check.Overridden() || check.Status == models.CheckStatusCancelled) {
		slog.Info("discarding result for overridden check",
			"job_id", job.ID, "check_id", payload.CheckID)
		_ = p.jobs.UpdateJob(ctx, job.ID, map[string]any{
			jobstore.FieldStatus:      jobstore.StatusCancelled,
			jobstore.FieldCancelledAt: time.Now().UTC(),
		})
		return &TickResult{JobID: job.ID, Outcome: OutcomeDiscarded}, nil
	}

	groupID := payload.BatchGroupID
	run := &models.AnalysisRun{
		CheckID:          payload.CheckID,
		ComplianceStatus: result.ComplianceStatus,
		Confidence:       result.Confidence,
		AIProvider:       p.analyzer.Name(),
		AIModel:          result.Model,
		AIReasoning:      result.Reasoning,
		Violations:       result.Violations,
		CompliantAspects: result.CompliantAspects,
		Recommendations:  result.Recommendations,
		ExecutionTimeMS:  elapsed.Milliseconds(),
		BatchGroupID:     &groupID,
		BatchNumber:      payload.BatchNumber,
		TotalBatches:     payload.TotalBatches,
	}
	if err := p.store.CreateAnalysisRun(ctx, run); err != nil {
		return nil, fmt.Errorf("persist analysis run: %w", err)
	}

	if err := p.store.UpdateCheckStatus(ctx, payload.CheckID, models.CheckStatusCompleted); err != nil {
		slog.Error("updating check status failed", "check_id", payload.CheckID, "error", err)
	}
	if err := p.jobs.UpdateJob(ctx, job.ID, map[string]any{
		jobstore.FieldStatus: jobstore.StatusCompleted,
	}); err != nil {
		return nil, fmt.Errorf("mark job %s completed: %w", job.ID, err)
	}

	slog.Info("analysis completed", "job_id", job.ID, "check_id", payload.CheckID,
		"run_number", run.RunNumber, "status", run.ComplianceStatus,
		"duration_ms", run.ExecutionTimeMS)
	return &TickResult{JobID: job.ID, Outcome: OutcomeCompleted}, nil
}

// handleFailure marks the check failed and either re-enqueues the job for
// another attempt or fails it permanently.
func (p *Processor) handleFailure(ctx context.Context, job *jobstore.Job, payload *jobstore.AnalysisPayload, attempts int) (*TickResult, error) {
	if err := p.store.UpdateCheckStatus(ctx, payload.CheckID, models.CheckStatusFailed); err != nil {
		slog.Error("updating check status failed", "check_id", payload.CheckID, "error", err)
	}

	if attempts < job.MaxAttempts {
		if err := p.jobs.UpdateJob(ctx, job.ID, map[string]any{
			jobstore.FieldStatus: jobstore.StatusPending,
		}); err != nil {
			return nil, fmt.Errorf("mark job %s pending: %w", job.ID, err)
		}
		if err := p.jobs.Enqueue(ctx, jobstore.JobTypeAnalysis, job.ID); err != nil {
			return nil, fmt.Errorf("re-enqueue job %s: %w", job.ID, err)
		}
		return &TickResult{JobID: job.ID, Outcome: OutcomeRetried}, nil
	}

	if err := p.jobs.UpdateJob(ctx, job.ID, map[string]any{
		jobstore.FieldStatus: jobstore.StatusFailed,
	}); err != nil {
		return nil, fmt.Errorf("mark job %s failed: %w", job.ID, err)
	}
	slog.Warn("job failed permanently", "job_id", job.ID, "check_id", payload.CheckID,
		"attempts", attempts)
	return &TickResult{JobID: job.ID, Outcome: OutcomeFailed}, nil
}
