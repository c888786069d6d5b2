package jobstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/plancheckhq/plancheck/internal/jobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(t *testing.T) *jobstore.Job {
	t.Helper()
	job, err := jobstore.NewAnalysisJob(jobstore.AnalysisPayload{
		CheckID:      uuid.New(),
		Prompt:       "Verify egress door width against section 1010.1.1",
		Provider:     "mock",
		BatchGroupID: uuid.New(),
		BatchNumber:  1,
		TotalBatches: 1,
	}, 3)
	require.NoError(t, err)
	return job
}

// --- Job record roundtrip ---

func TestMemoryStore_CreateGetRoundtrip(t *testing.T) {
	s := jobstore.NewMemoryStore()
	ctx := context.Background()
	job := newJob(t)

	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, jobstore.JobTypeAnalysis, got.Type)
	assert.Equal(t, jobstore.StatusPending, got.Status)
	assert.Equal(t, 3, got.MaxAttempts)
	assert.Equal(t, 0, got.Attempts)
	assert.Nil(t, got.StartedAt)

	payload, err := got.AnalysisPayload()
	require.NoError(t, err)
	original, err := job.AnalysisPayload()
	require.NoError(t, err)
	assert.Equal(t, original.CheckID, payload.CheckID)
	assert.Equal(t, original.Prompt, payload.Prompt)
}

func TestMemoryStore_GetJob_Missing(t *testing.T) {
	s := jobstore.NewMemoryStore()

	got, err := s.GetJob(context.Background(), "no-such-job")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_UpdateJob_PartialFields(t *testing.T) {
	s := jobstore.NewMemoryStore()
	ctx := context.Background()
	job := newJob(t)
	require.NoError(t, s.CreateJob(ctx, job))

	started := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.UpdateJob(ctx, job.ID, map[string]any{
		jobstore.FieldStatus:    jobstore.StatusProcessing,
		jobstore.FieldAttempts:  1,
		jobstore.FieldStartedAt: started,
	}))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusProcessing, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.StartedAt)
	assert.True(t, got.StartedAt.Equal(started))

	// Fields not named in the update survive.
	assert.Equal(t, 3, got.MaxAttempts)
	payload, err := got.AnalysisPayload()
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, payload.CheckID)
}

// --- Queue semantics ---

func TestMemoryStore_QueueFIFO(t *testing.T) {
	s := jobstore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Enqueue(ctx, "analysis", "a"))
	require.NoError(t, s.Enqueue(ctx, "analysis", "b"))
	require.NoError(t, s.Enqueue(ctx, "analysis", "c"))

	for _, want := range []string{"a", "b", "c"} {
		got, err := s.Dequeue(ctx, "analysis")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestMemoryStore_Dequeue_Empty(t *testing.T) {
	s := jobstore.NewMemoryStore()

	got, err := s.Dequeue(context.Background(), "analysis")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestMemoryStore_RemoveFromQueue_ByValue(t *testing.T) {
	s := jobstore.NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Enqueue(ctx, "analysis", id))
	}

	removed, err := s.RemoveFromQueue(ctx, "analysis", "b", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	length, err := s.QueueLength(ctx, "analysis")
	require.NoError(t, err)
	assert.Equal(t, int64(2), length)

	// Remaining order is untouched.
	first, _ := s.Dequeue(ctx, "analysis")
	second, _ := s.Dequeue(ctx, "analysis")
	assert.Equal(t, "a", first)
	assert.Equal(t, "c", second)
}

func TestMemoryStore_RemoveFromQueue_MissingValue(t *testing.T) {
	s := jobstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ctx, "analysis", "a"))

	removed, err := s.RemoveFromQueue(ctx, "analysis", "zzz", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}

func TestMemoryStore_ListQueueRange(t *testing.T) {
	s := jobstore.NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Enqueue(ctx, "analysis", id))
	}

	// Newest first, matching LRANGE on an LPUSH-fed list.
	ids, err := s.ListQueueRange(ctx, "analysis", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids)

	ids, err = s.ListQueueRange(ctx, "analysis", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids)
}

// --- Index and counters ---

func TestMemoryStore_ListJobs_CreationOrder(t *testing.T) {
	s := jobstore.NewMemoryStore()
	ctx := context.Background()

	first := newJob(t)
	second := newJob(t)
	require.NoError(t, s.CreateJob(ctx, first))
	require.NoError(t, s.CreateJob(ctx, second))

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, first.ID, jobs[0].ID)
	assert.Equal(t, second.ID, jobs[1].ID)
}

func TestMemoryStore_IncrWithExpiry(t *testing.T) {
	s := jobstore.NewMemoryStore()
	ctx := context.Background()
	key := jobstore.RateLimitKey("pc_abcde")

	for want := int64(1); want <= 3; want++ {
		got, err := s.IncrWithExpiry(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestMemoryStore_IncrWithExpiry_ResetsAfterTTL(t *testing.T) {
	s := jobstore.NewMemoryStore()
	ctx := context.Background()

	_, err := s.IncrWithExpiry(ctx, "ratelimit:x", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	got, err := s.IncrWithExpiry(ctx, "ratelimit:x", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}
