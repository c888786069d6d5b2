// Package jobstore provides durable-enough storage for analysis jobs: one
// hash per job record plus ordered ID lists acting as FIFO queues. Backed by
// Redis in production; survives process restarts but makes no disk-durability
// promise.
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotConfigured is returned by write operations when no backing store is
// configured. A silently-dropped enqueue leaves a job permanently invisible,
// so writes must fail loudly; reads degrade to "no jobs" instead.
var ErrNotConfigured = errors.New("job store not configured")

// Store is the job storage interface. All queue operations go through here.
// Implementations must be safe for concurrent use.
type Store interface {
	Ping(ctx context.Context) error

	// CreateJob persists a new job record and adds it to the job index.
	// It does not enqueue the job.
	CreateJob(ctx context.Context, job *Job) error
	// GetJob returns the job record, or (nil, nil) if no such job exists.
	GetJob(ctx context.Context, jobID string) (*Job, error)
	// UpdateJob overwrites the given fields on an existing job record.
	// Unknown jobs are not an error; the fields are written regardless.
	UpdateJob(ctx context.Context, jobID string, fields map[string]any) error

	// Enqueue pushes the job ID onto the named FIFO queue.
	Enqueue(ctx context.Context, queue, jobID string) error
	// Dequeue pops the oldest job ID, or "" when the queue is empty.
	Dequeue(ctx context.Context, queue string) (string, error)
	// RemoveFromQueue removes up to count occurrences of the job ID by exact
	// value and returns how many were removed. Value-based removal is
	// required: other jobs may be popped concurrently, so positional indexes
	// cannot be trusted.
	RemoveFromQueue(ctx context.Context, queue, jobID string, count int64) (int64, error)
	QueueLength(ctx context.Context, queue string) (int64, error)
	// ListQueueRange returns job IDs between start and stop inclusive,
	// newest first. stop = -1 means the end of the queue.
	ListQueueRange(ctx context.Context, queue string, start, stop int64) ([]string, error)

	// ListJobs returns every job ever created, oldest first.
	ListJobs(ctx context.Context) ([]*Job, error)

	// IncrWithExpiry atomically increments a counter and refreshes its TTL.
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// Job field names accepted by UpdateJob.
const (
	FieldStatus      = "status"
	FieldAttempts    = "attempts"
	FieldStartedAt   = "started_at"
	FieldCancelledAt = "cancelled_at"
)

// encodeField serializes one hash field value. Strings pass through as-is so
// they round-trip without double-encoded quotes; everything else is JSON.
func encodeField(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.RawMessage:
		return string(val)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// decodeString JSON-parses a hash field into a string, falling back to the
// raw value for fields that were stored as plain strings.
func decodeString(raw string) string {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return raw
	}
	return s
}

func decodeInt(raw string) int {
	var n int
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return 0
	}
	return n
}

func decodeTime(raw string) (time.Time, bool) {
	var t time.Time
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		parsed, perr := time.Parse(time.RFC3339Nano, raw)
		if perr != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return t, true
}

// jobFields flattens a job into hash fields for storage.
func jobFields(job *Job) map[string]any {
	fields := map[string]any{
		"id":           job.ID,
		"type":         job.Type,
		"payload":      job.Payload,
		FieldStatus:    job.Status,
		FieldAttempts:  job.Attempts,
		"max_attempts": job.MaxAttempts,
		"created_at":   job.CreatedAt,
	}
	if job.StartedAt != nil {
		fields[FieldStartedAt] = *job.StartedAt
	}
	if job.CancelledAt != nil {
		fields[FieldCancelledAt] = *job.CancelledAt
	}
	return fields
}

// jobFromFields rebuilds a job from stored hash fields.
func jobFromFields(fields map[string]string) *Job {
	job := &Job{
		ID:          decodeString(fields["id"]),
		Type:        decodeString(fields["type"]),
		Status:      decodeString(fields[FieldStatus]),
		Attempts:    decodeInt(fields[FieldAttempts]),
		MaxAttempts: decodeInt(fields["max_attempts"]),
	}
	if raw, ok := fields["payload"]; ok {
		job.Payload = json.RawMessage(raw)
	}
	if t, ok := decodeTime(fields["created_at"]); ok {
		job.CreatedAt = t
	}
	if raw, ok := fields[FieldStartedAt]; ok {
		if t, ok := decodeTime(raw); ok {
			job.StartedAt = &t
		}
	}
	if raw, ok := fields[FieldCancelledAt]; ok {
		if t, ok := decodeTime(raw); ok {
			job.CancelledAt = &t
		}
	}
	return job
}

func encodeFields(fields map[string]any) map[string]string {
	encoded := make(map[string]string, len(fields))
	for k, v := range fields {
		encoded[k] = encodeField(v)
	}
	return encoded
}
