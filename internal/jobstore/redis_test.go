package jobstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/plancheckhq/plancheck/internal/jobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis spins up a Redis container and returns a connected RedisStore.
func setupRedis(t *testing.T) *jobstore.RedisStore {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	s, err := jobstore.NewRedisStore("redis://" + host + ":" + port.Port())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestRedisStore_Ping(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupRedis(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestRedisStore_JobRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupRedis(t)
	ctx := context.Background()
	job := newJob(t)

	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, jobstore.StatusPending, got.Status)
	assert.Equal(t, 3, got.MaxAttempts)

	payload, err := got.AnalysisPayload()
	require.NoError(t, err)
	want, err := job.AnalysisPayload()
	require.NoError(t, err)
	assert.Equal(t, want.CheckID, payload.CheckID)
	assert.Equal(t, want.BatchGroupID, payload.BatchGroupID)
}

func TestRedisStore_GetJob_Missing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupRedis(t)

	got, err := s.GetJob(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_UpdateJob_Timestamps(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupRedis(t)
	ctx := context.Background()
	job := newJob(t)
	require.NoError(t, s.CreateJob(ctx, job))

	cancelledAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.UpdateJob(ctx, job.ID, map[string]any{
		jobstore.FieldStatus:      jobstore.StatusCancelled,
		jobstore.FieldCancelledAt: cancelledAt,
	}))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)
	assert.True(t, got.CancelledAt.Equal(cancelledAt))
	assert.True(t, got.Terminal())
}

func TestRedisStore_QueueFIFO(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupRedis(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Enqueue(ctx, "analysis", id))
	}

	length, err := s.QueueLength(ctx, "analysis")
	require.NoError(t, err)
	assert.Equal(t, int64(3), length)

	for _, want := range []string{"a", "b", "c"} {
		got, err := s.Dequeue(ctx, "analysis")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := s.Dequeue(ctx, "analysis")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestRedisStore_RemoveFromQueue(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupRedis(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Enqueue(ctx, "analysis", id))
	}

	removed, err := s.RemoveFromQueue(ctx, "analysis", "b", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	ids, err := s.ListQueueRange(ctx, "analysis", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids)
}

func TestRedisStore_ListJobs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupRedis(t)
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

func TestRedisStore_IncrWithExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupRedis(t)
	ctx := context.Background()

	first, err := s.IncrWithExpiry(ctx, "ratelimit:test", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	second, err := s.IncrWithExpiry(ctx, "ratelimit:test", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second)
}

// --- Unconfigured store degradation ---

func TestUnconfiguredStore_WritesFailLoudly(t *testing.T) {
	s := jobstore.NewUnconfiguredStore()
	ctx := context.Background()

	err := s.CreateJob(ctx, newJob(t))
	assert.ErrorIs(t, err, jobstore.ErrNotConfigured)

	err = s.Enqueue(ctx, "analysis", "a")
	assert.ErrorIs(t, err, jobstore.ErrNotConfigured)

	err = s.UpdateJob(ctx, "a", map[string]any{jobstore.FieldStatus: jobstore.StatusFailed})
	assert.ErrorIs(t, err, jobstore.ErrNotConfigured)
}

func TestUnconfiguredStore_ReadsReportEmpty(t *testing.T) {
	s := jobstore.NewUnconfiguredStore()
	ctx := context.Background()

	job, err := s.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, job)

	id, err := s.Dequeue(ctx, "analysis")
	require.NoError(t, err)
	assert.Equal(t, "", id)

	length, err := s.QueueLength(ctx, "analysis")
	require.NoError(t, err)
	assert.Equal(t, int64(0), length)

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
