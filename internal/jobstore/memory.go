package jobstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and local development. It
// mirrors the Redis semantics: queues hold newest entries at the head, and
// job fields go through the same encode/decode round trip so serialization
// bugs surface in unit tests too.
type MemoryStore struct {
	mu       sync.Mutex
	jobs     map[string]map[string]string
	queues   map[string][]string
	index    []string
	counters map[string]counterEntry
}

type counterEntry struct {
	value     int64
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:     make(map[string]map[string]string),
		queues:   make(map[string][]string),
		counters: make(map[string]counterEntry),
	}
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) CreateJob(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = encodeFields(jobFields(job))
	s.index = append(s.index, job.ID)
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, jobID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return jobFromFields(fields), nil
}

func (s *MemoryStore) UpdateJob(_ context.Context, jobID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.jobs[jobID]
	if !ok {
		stored = make(map[string]string)
		s.jobs[jobID] = stored
	}
	for k, v := range encodeFields(fields) {
		stored[k] = v
	}
	return nil
}

func (s *MemoryStore) Enqueue(_ context.Context, queue, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[queue] = append([]string{jobID}, s.queues[queue]...)
	return nil
}

func (s *MemoryStore) Dequeue(_ context.Context, queue string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[queue]
	if len(q) == 0 {
		return "", nil
	}
	jobID := q[len(q)-1]
	s.queues[queue] = q[:len(q)-1]
	return jobID, nil
}

func (s *MemoryStore) RemoveFromQueue(_ context.Context, queue, jobID string, count int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[queue]
	var kept []string
	var removed int64
	for _, id := range q {
		if id == jobID && (count == 0 || removed < count) {
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.queues[queue] = kept
	return removed, nil
}

func (s *MemoryStore) QueueLength(_ context.Context, queue string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.queues[queue])), nil
}

func (s *MemoryStore) ListQueueRange(_ context.Context, queue string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[queue]
	n := int64(len(q))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 {
		return nil, nil
	}
	out := make([]string, 0, stop-start+1)
	out = append(out, q[start:stop+1]...)
	return out, nil
}

func (s *MemoryStore) ListJobs(ctx context.Context) ([]*Job, error) {
	s.mu.Lock()
	ids := append([]string(nil), s.index...)
	s.mu.Unlock()

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (s *MemoryStore) IncrWithExpiry(_ context.Context, key string, expiry time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	entry := s.counters[key]
	if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
		entry = counterEntry{}
	}
	entry.value++
	entry.expiresAt = now.Add(expiry)
	s.counters[key] = entry
	return entry.value, nil
}

var _ Store = (*MemoryStore)(nil)
