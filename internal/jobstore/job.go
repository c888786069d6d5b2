package jobstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job statuses. A job is never deleted once created; terminal statuses are
// completed, failed, and cancelled.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// JobTypeAnalysis is the discriminator for AI compliance analysis jobs.
const JobTypeAnalysis = "analysis"

// Job is one unit of queued work. The payload shape is determined by Type.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty"`
}

// Terminal reports whether the job has reached a status that must never be
// overwritten by a later processor run.
func (j *Job) Terminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// AnalysisPayload carries the parameters of one queued compliance analysis.
// Screenshot evidence is never inlined for batch jobs; FetchScreenshots tells
// the processor to load it from the persistent store by check ID, which keeps
// queue entries small.
type AnalysisPayload struct {
	CheckID          uuid.UUID `json:"check_id"`
	Prompt           string    `json:"prompt"`
	Provider         string    `json:"provider"`
	FetchScreenshots bool      `json:"fetch_screenshots"`
	BatchGroupID     uuid.UUID `json:"batch_group_id"`
	BatchNumber      int       `json:"batch_number"`
	TotalBatches     int       `json:"total_batches"`
}

func (p *AnalysisPayload) validate() error {
	if p.CheckID == uuid.Nil {
		return fmt.Errorf("check_id is required")
	}
	if p.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if p.BatchNumber < 1 {
		return fmt.Errorf("batch_number must be at least 1, got %d", p.BatchNumber)
	}
	if p.TotalBatches < p.BatchNumber {
		return fmt.Errorf("total_batches %d is less than batch_number %d", p.TotalBatches, p.BatchNumber)
	}
	return nil
}

// NewAnalysisJob builds a pending analysis job with a validated payload.
func NewAnalysisJob(payload AnalysisPayload, maxAttempts int) (*Job, error) {
	if maxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1, got %d", maxAttempts)
	}
	if err := payload.validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis payload: %w", err)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	return &Job{
		ID:          uuid.NewString(),
		Type:        JobTypeAnalysis,
		Payload:     raw,
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// AnalysisPayload decodes the job's payload. Fails for non-analysis jobs.
func (j *Job) AnalysisPayload() (*AnalysisPayload, error) {
	if j.Type != JobTypeAnalysis {
		return nil, fmt.Errorf("job %s has type %q, not %q", j.ID, j.Type, JobTypeAnalysis)
	}
	var p AnalysisPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return nil, fmt.Errorf("decoding analysis payload: %w", err)
	}
	return &p, nil
}
