package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/plancheckhq/plancheck/internal/jobstore"
)

// Inspector exposes the debug surface over the job store: queue depth and
// contents, per-status job counts, and stuck-job detection.
type Inspector struct {
	jobs           jobstore.Store
	stuckThreshold time.Duration
}

// NewInspector creates an Inspector. Jobs processing longer than
// stuckThreshold with no completion are reported stuck.
func NewInspector(jobs jobstore.Store, stuckThreshold time.Duration) *Inspector {
	return &Inspector{jobs: jobs, stuckThreshold: stuckThreshold}
}

// QueueStats is a snapshot of the pending queue.
type QueueStats struct {
	Length int64    `json:"length"`
	JobIDs []string `json:"job_ids"`
}

func (i *Inspector) QueueStats(ctx context.Context) (*QueueStats, error) {
	length, err := i.jobs.QueueLength(ctx, jobstore.JobTypeAnalysis)
	if err != nil {
		return nil, fmt.Errorf("queue length: %w", err)
	}

	var ids []string
	if length > 0 {
		ids, err = i.jobs.ListQueueRange(ctx, jobstore.JobTypeAnalysis, 0, length-1)
		if err != nil {
			return nil, fmt.Errorf("queue contents: %w", err)
		}
	}
	return &QueueStats{Length: length, JobIDs: ids}, nil
}

// JobCounts returns how many jobs are in each status, across all jobs ever
// created.
func (i *Inspector) JobCounts(ctx context.Context) (map[string]int, error) {
	jobs, err := i.jobs.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	counts := make(map[string]int)
	for _, job := range jobs {
		counts[job.Status]++
	}
	return counts, nil
}

// StuckJobs returns jobs stuck in processing beyond the threshold. These
// usually mean a trigger invocation died mid-job.
func (i *Inspector) StuckJobs(ctx context.Context) ([]*jobstore.Job, error) {
	jobs, err := i.jobs.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	cutoff := time.Now().Add(-i.stuckThreshold)
	var stuck []*jobstore.Job
	for _, job := range jobs {
		if job.Status != jobstore.StatusProcessing || job.StartedAt == nil {
			continue
		}
		if job.StartedAt.Before(cutoff) {
			stuck = append(stuck, job)
		}
	}
	return stuck, nil
}
