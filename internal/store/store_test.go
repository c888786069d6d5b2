package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plancheckhq/plancheck/internal/store"
	"github.com/plancheckhq/plancheck/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("plancheck_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func setupStore(t *testing.T) store.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	return store.NewPostgresStore(setupTestDB(t))
}

func createTestCheck(t *testing.T, s store.Store) *models.Check {
	t.Helper()
	check := &models.Check{
		AssessmentID: uuid.New(),
		ProjectID:    uuid.New(),
		SectionKey:   "1010.1.1",
		SectionTitle: "Door width",
		Status:       models.CheckStatusPending,
	}
	require.NoError(t, s.CreateCheck(context.Background(), check))
	return check
}

// --- Checks ---

func TestCreateGetCheck(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	check := createTestCheck(t, s)

	got, err := s.GetCheck(ctx, check.ID)
	require.NoError(t, err)
	assert.Equal(t, check.ID, got.ID)
	assert.Equal(t, "1010.1.1", got.SectionKey)
	assert.Equal(t, models.CheckStatusPending, got.Status)
	assert.Nil(t, got.ManualStatus)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetCheck_NotFound(t *testing.T) {
	s := setupStore(t)

	_, err := s.GetCheck(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateCheckStatus(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	check := createTestCheck(t, s)

	require.NoError(t, s.UpdateCheckStatus(ctx, check.ID, models.CheckStatusProcessing))

	got, err := s.GetCheck(ctx, check.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckStatusProcessing, got.Status)

	err = s.UpdateCheckStatus(ctx, uuid.New(), models.CheckStatusProcessing)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestManualOverride_SetAndClear(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	check := createTestCheck(t, s)

	note := "measured on site"
	require.NoError(t, s.SetManualOverride(ctx, check.ID, models.ComplianceCompliant, &note))

	got, err := s.GetCheck(ctx, check.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ManualStatus)
	assert.Equal(t, models.ComplianceCompliant, *got.ManualStatus)
	require.NotNil(t, got.ManualStatusNote)
	assert.Equal(t, note, *got.ManualStatusNote)
	assert.NotNil(t, got.ManualStatusAt)
	assert.Equal(t, models.CheckStatusCompleted, got.Status)
	assert.True(t, got.Overridden())

	require.NoError(t, s.ClearManualOverride(ctx, check.ID, models.CheckStatusPending))

	got, err = s.GetCheck(ctx, check.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ManualStatus)
	assert.Nil(t, got.ManualStatusAt)
	assert.Equal(t, models.CheckStatusPending, got.Status)
}

func TestGetSiblingChecks(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	assessmentID := uuid.New()
	projectID := uuid.New()
	groupID := uuid.New()
	label := "Door D-101"
	otherLabel := "Door D-102"

	mkCheck := func(sectionKey string, instanceLabel *string) *models.Check {
		check := &models.Check{
			AssessmentID: assessmentID,
			ProjectID:    projectID,
			SectionKey:   sectionKey,
			Status:       models.CheckStatusPending,
		}
		if instanceLabel != nil {
			check.ElementGroupID = &groupID
			check.InstanceLabel = instanceLabel
		}
		require.NoError(t, s.CreateCheck(ctx, check))
		return check
	}

	a := mkCheck("1010.1.1", &label)
	b := mkCheck("1010.1.2", &label)
	mkCheck("1010.1.1", &otherLabel)
	mkCheck("1010.1.3", nil)

	siblings, err := s.GetSiblingChecks(ctx, assessmentID, groupID, label)
	require.NoError(t, err)
	require.Len(t, siblings, 2)
	assert.Equal(t, a.ID, siblings[0].ID)
	assert.Equal(t, b.ID, siblings[1].ID)
}

// --- Analysis runs ---

func testRun(checkID uuid.UUID, groupID *uuid.UUID) *models.AnalysisRun {
	return &models.AnalysisRun{
		CheckID:          checkID,
		ComplianceStatus: models.ComplianceCompliant,
		Confidence:       0.9,
		AIProvider:       "mock",
		AIModel:          "mock-v1",
		AIReasoning:      "meets minimum clear width",
		Violations:       []string{},
		CompliantAspects: []string{"width ok"},
		Recommendations:  []string{},
		ExecutionTimeMS:  1200,
		BatchGroupID:     groupID,
		BatchNumber:      1,
		TotalBatches:     1,
	}
}

func TestCreateAnalysisRun_AssignsSequentialRunNumbers(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	check := createTestCheck(t, s)

	for want := 1; want <= 3; want++ {
		run := testRun(check.ID, nil)
		require.NoError(t, s.CreateAnalysisRun(ctx, run))
		assert.Equal(t, want, run.RunNumber)
	}

	count, err := s.CountAnalysisRuns(ctx, check.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCreateAnalysisRun_ConcurrentCompletions(t *testing.T) {
	// The unique constraint plus insert-time subquery must keep run numbers
	// unique even when completions for the same check race.
	s := setupStore(t)
	ctx := context.Background()
	check := createTestCheck(t, s)

	const workers = 3
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.CreateAnalysisRun(ctx, testRun(check.ID, nil))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	runs, err := s.ListAnalysisRuns(ctx, check.ID)
	require.NoError(t, err)
	require.Len(t, runs, workers)
	seen := make(map[int]bool)
	for _, r := range runs {
		assert.False(t, seen[r.RunNumber], "duplicate run_number %d", r.RunNumber)
		seen[r.RunNumber] = true
	}
}

func TestLatestAnalysisRun_AcrossChecks(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	first := createTestCheck(t, s)
	second := createTestCheck(t, s)

	older := testRun(first.ID, nil)
	older.ExecutedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.CreateAnalysisRun(ctx, older))

	newer := testRun(second.ID, nil)
	require.NoError(t, s.CreateAnalysisRun(ctx, newer))

	latest, err := s.LatestAnalysisRun(ctx, []uuid.UUID{first.ID, second.ID})
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.CheckID)

	_, err = s.LatestAnalysisRun(ctx, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.LatestAnalysisRun(ctx, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCountRunsInBatchGroup(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	groupID := uuid.New()
	otherGroup := uuid.New()

	for i := 0; i < 2; i++ {
		check := createTestCheck(t, s)
		require.NoError(t, s.CreateAnalysisRun(ctx, testRun(check.ID, &groupID)))
	}
	stray := createTestCheck(t, s)
	require.NoError(t, s.CreateAnalysisRun(ctx, testRun(stray.ID, &otherGroup)))

	count, err := s.CountRunsInBatchGroup(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

// --- Screenshots ---

func TestScreenshotLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	check := createTestCheck(t, s)

	shot := &models.Screenshot{
		CheckID:      check.ID,
		ProjectID:    check.ProjectID,
		PageNumber:   4,
		Caption:      "first floor plan, door D-101",
		StorageKey:   "projects/p/screenshots/c/s.png",
		ThumbnailKey: "projects/p/screenshots/c/s_thumb.png",
		ImageBase64:  "aGVsbG8=",
	}
	require.NoError(t, s.CreateScreenshot(ctx, shot))
	require.NotEqual(t, uuid.Nil, shot.ID)

	got, err := s.GetScreenshot(ctx, shot.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.PageNumber)
	assert.Equal(t, "aGVsbG8=", got.ImageBase64)

	list, err := s.ListScreenshotsByCheck(ctx, check.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteScreenshot(ctx, shot.ID))
	_, err = s.GetScreenshot(ctx, shot.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.DeleteScreenshot(ctx, shot.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Calibrations and section overrides ---

func TestUpsertCalibration(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	projectID := uuid.New()

	first, err := s.UpsertCalibration(ctx, &models.Calibration{
		ProjectID:  projectID,
		PageNumber: 2,
		Scale:      48,
		Unit:       "in",
	})
	require.NoError(t, err)

	second, err := s.UpsertCalibration(ctx, &models.Calibration{
		ProjectID:  projectID,
		PageNumber: 2,
		Scale:      96,
		Unit:       "in",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "upsert must replace, not duplicate")
	assert.Equal(t, float64(96), second.Scale)
}

func TestUpsertSectionOverride(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	assessmentID := uuid.New()

	first, err := s.UpsertSectionOverride(ctx, &models.SectionOverride{
		AssessmentID: assessmentID,
		SectionKey:   "1010.1.1",
		Included:     false,
		Note:         "not applicable, existing building",
	})
	require.NoError(t, err)
	assert.False(t, first.Included)

	second, err := s.UpsertSectionOverride(ctx, &models.SectionOverride{
		AssessmentID: assessmentID,
		SectionKey:   "1010.1.1",
		Included:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Included)
}

// --- API keys ---

func TestAPIKeyLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      "review-ui",
		KeyHash:   "$2a$10$abcdefghijklmnopqrstuv",
		KeyPrefix: "pc_abcde",
		Scopes:    []string{"read", "write"},
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	byPrefix, err := s.GetAPIKeyByPrefix(ctx, "pc_abcde")
	require.NoError(t, err)
	require.Len(t, byPrefix, 1)
	assert.Equal(t, []string{"read", "write"}, byPrefix[0].Scopes)

	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))

	keys, err := s.ListAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID))

	byPrefix, err = s.GetAPIKeyByPrefix(ctx, "pc_abcde")
	require.NoError(t, err)
	assert.Empty(t, byPrefix, "revoked keys must not authenticate")

	err = s.RevokeAPIKey(ctx, key.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
