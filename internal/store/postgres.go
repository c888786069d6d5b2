package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plancheckhq/plancheck/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	fillTimestamps(&key.CreatedAt, &key.UpdatedAt)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Checks ---

const checkColumns = `id, assessment_id, project_id, section_key, section_title, status,
	element_group_id, instance_label, manual_status, manual_status_note, manual_status_at,
	created_at, updated_at`

func scanCheck(row pgx.Row) (*models.Check, error) {
	var c models.Check
	err := row.Scan(&c.ID, &c.AssessmentID, &c.ProjectID, &c.SectionKey, &c.SectionTitle,
		&c.Status, &c.ElementGroupID, &c.InstanceLabel, &c.ManualStatus, &c.ManualStatusNote,
		&c.ManualStatusAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) CreateCheck(ctx context.Context, check *models.Check) error {
	if check.ID == uuid.Nil {
		check.ID = uuid.New()
	}
	fillTimestamps(&check.CreatedAt, &check.UpdatedAt)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO checks (id, assessment_id, project_id, section_key, section_title, status,
		   element_group_id, instance_label, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		check.ID, check.AssessmentID, check.ProjectID, check.SectionKey, check.SectionTitle,
		check.Status, check.ElementGroupID, check.InstanceLabel, check.CreatedAt, check.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create check: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCheck(ctx context.Context, id uuid.UUID) (*models.Check, error) {
	c, err := scanCheck(s.pool.QueryRow(ctx,
		`SELECT `+checkColumns+` FROM checks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get check: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListChecksByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]*models.Check, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+checkColumns+` FROM checks WHERE assessment_id = $1 ORDER BY section_key`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	var checks []*models.Check
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

func (s *PostgresStore) UpdateCheckStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE checks SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update check status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetManualOverride(ctx context.Context, id uuid.UUID, status string, note *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE checks SET manual_status = $2, manual_status_note = $3, manual_status_at = NOW(),
		   status = $4, updated_at = NOW()
		 WHERE id = $1`, id, status, note, models.CheckStatusCompleted)
	if err != nil {
		return fmt.Errorf("set manual override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ClearManualOverride(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE checks SET manual_status = NULL, manual_status_note = NULL, manual_status_at = NULL,
		   status = $2, updated_at = NOW()
		 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("clear manual override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetSiblingChecks(ctx context.Context, assessmentID, elementGroupID uuid.UUID, instanceLabel string) ([]*models.Check, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+checkColumns+` FROM checks
		 WHERE assessment_id = $1 AND element_group_id = $2 AND instance_label = $3
		 ORDER BY section_key`, assessmentID, elementGroupID, instanceLabel)
	if err != nil {
		return nil, fmt.Errorf("get sibling checks: %w", err)
	}
	defer rows.Close()

	var checks []*models.Check
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

// --- Analysis Runs ---

const runColumns = `id, check_id, run_number, compliance_status, confidence, ai_provider, ai_model,
	ai_reasoning, violations, compliant_aspects, recommendations, execution_time_ms,
	batch_group_id, batch_number, total_batches, executed_at`

func scanRun(row pgx.Row) (*models.AnalysisRun, error) {
	var r models.AnalysisRun
	err := row.Scan(&r.ID, &r.CheckID, &r.RunNumber, &r.ComplianceStatus, &r.Confidence,
		&r.AIProvider, &r.AIModel, &r.AIReasoning, &r.Violations, &r.CompliantAspects,
		&r.Recommendations, &r.ExecutionTimeMS, &r.BatchGroupID, &r.BatchNumber,
		&r.TotalBatches, &r.ExecutedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// createRunRetries bounds the retry loop on run_number collisions. Two
// concurrent completions for the same check can both compute the same next
// number; the unique constraint rejects one, and it recomputes.
const createRunRetries = 3

func (s *PostgresStore) CreateAnalysisRun(ctx context.Context, run *models.AnalysisRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.ExecutedAt.IsZero() {
		run.ExecutedAt = time.Now().UTC()
	}

	var lastErr error
	for attempt := 0; attempt < createRunRetries; attempt++ {
		err := s.pool.QueryRow(ctx,
			`INSERT INTO analysis_runs (id, check_id, run_number, compliance_status, confidence,
			   ai_provider, ai_model, ai_reasoning, violations, compliant_aspects, recommendations,
			   execution_time_ms, batch_group_id, batch_number, total_batches, executed_at)
			 VALUES ($1, $2,
			   (SELECT COALESCE(MAX(run_number), 0) + 1 FROM analysis_runs WHERE check_id = $2),
			   $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			 RETURNING run_number`,
			run.ID, run.CheckID, run.ComplianceStatus, run.Confidence, run.AIProvider,
			run.AIModel, run.AIReasoning, run.Violations, run.CompliantAspects,
			run.Recommendations, run.ExecutionTimeMS, run.BatchGroupID, run.BatchNumber,
			run.TotalBatches, run.ExecutedAt,
		).Scan(&run.RunNumber)
		if err == nil {
			return nil
		}
		if !isDuplicateKeyError(err) {
			return fmt.Errorf("create analysis run: %w", err)
		}
		lastErr = err
	}
	return fmt.Errorf("create analysis run: run_number contention: %w", lastErr)
}

func (s *PostgresStore) CountAnalysisRuns(ctx context.Context, checkID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM analysis_runs WHERE check_id = $1`, checkID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count analysis runs: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListAnalysisRuns(ctx context.Context, checkID uuid.UUID) ([]*models.AnalysisRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+runColumns+` FROM analysis_runs WHERE check_id = $1 ORDER BY run_number`, checkID)
	if err != nil {
		return nil, fmt.Errorf("list analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.AnalysisRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) LatestAnalysisRun(ctx context.Context, checkIDs []uuid.UUID) (*models.AnalysisRun, error) {
	if len(checkIDs) == 0 {
		return nil, ErrNotFound
	}
	r, err := scanRun(s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM analysis_runs WHERE check_id = ANY($1)
		 ORDER BY executed_at DESC LIMIT 1`, checkIDs))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest analysis run: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) CountRunsInBatchGroup(ctx context.Context, batchGroupID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM analysis_runs WHERE batch_group_id = $1`, batchGroupID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count batch group runs: %w", err)
	}
	return n, nil
}

// --- Screenshots ---

func (s *PostgresStore) CreateScreenshot(ctx context.Context, shot *models.Screenshot) error {
	if shot.ID == uuid.Nil {
		shot.ID = uuid.New()
	}
	if shot.CreatedAt.IsZero() {
		shot.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO screenshots (id, check_id, project_id, page_number, caption, storage_key,
		   thumbnail_key, image_base64, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		shot.ID, shot.CheckID, shot.ProjectID, shot.PageNumber, shot.Caption,
		shot.StorageKey, shot.ThumbnailKey, shot.ImageBase64, shot.CreatedAt)
	if err != nil {
		return fmt.Errorf("create screenshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetScreenshot(ctx context.Context, id uuid.UUID) (*models.Screenshot, error) {
	var sh models.Screenshot
	err := s.pool.QueryRow(ctx,
		`SELECT id, check_id, project_id, page_number, caption, storage_key, thumbnail_key,
		   image_base64, created_at
		 FROM screenshots WHERE id = $1`, id,
	).Scan(&sh.ID, &sh.CheckID, &sh.ProjectID, &sh.PageNumber, &sh.Caption,
		&sh.StorageKey, &sh.ThumbnailKey, &sh.ImageBase64, &sh.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get screenshot: %w", err)
	}
	return &sh, nil
}

func (s *PostgresStore) ListScreenshotsByCheck(ctx context.Context, checkID uuid.UUID) ([]*models.Screenshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, check_id, project_id, page_number, caption, storage_key, thumbnail_key,
		   image_base64, created_at
		 FROM screenshots WHERE check_id = $1 ORDER BY created_at`, checkID)
	if err != nil {
		return nil, fmt.Errorf("list screenshots: %w", err)
	}
	defer rows.Close()

	var shots []*models.Screenshot
	for rows.Next() {
		var sh models.Screenshot
		if err := rows.Scan(&sh.ID, &sh.CheckID, &sh.ProjectID, &sh.PageNumber, &sh.Caption,
			&sh.StorageKey, &sh.ThumbnailKey, &sh.ImageBase64, &sh.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan screenshot: %w", err)
		}
		shots = append(shots, &sh)
	}
	return shots, rows.Err()
}

func (s *PostgresStore) DeleteScreenshot(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM screenshots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete screenshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Calibrations & Section Overrides ---

func (s *PostgresStore) UpsertCalibration(ctx context.Context, cal *models.Calibration) (*models.Calibration, error) {
	if cal.ID == uuid.Nil {
		cal.ID = uuid.New()
	}
	fillTimestamps(&cal.CreatedAt, &cal.UpdatedAt)
	var result models.Calibration
	err := s.pool.QueryRow(ctx,
		`INSERT INTO calibrations (id, project_id, page_number, scale, unit, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (project_id, page_number) DO UPDATE SET
		   scale = EXCLUDED.scale,
		   unit = EXCLUDED.unit,
		   updated_at = NOW()
		 RETURNING id, project_id, page_number, scale, unit, created_at, updated_at`,
		cal.ID, cal.ProjectID, cal.PageNumber, cal.Scale, cal.Unit, cal.CreatedAt, cal.UpdatedAt,
	).Scan(&result.ID, &result.ProjectID, &result.PageNumber, &result.Scale, &result.Unit,
		&result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert calibration: %w", err)
	}
	return &result, nil
}

func (s *PostgresStore) UpsertSectionOverride(ctx context.Context, ov *models.SectionOverride) (*models.SectionOverride, error) {
	if ov.ID == uuid.Nil {
		ov.ID = uuid.New()
	}
	fillTimestamps(&ov.CreatedAt, &ov.UpdatedAt)
	var result models.SectionOverride
	err := s.pool.QueryRow(ctx,
		`INSERT INTO section_overrides (id, assessment_id, section_key, included, note, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (assessment_id, section_key) DO UPDATE SET
		   included = EXCLUDED.included,
		   note = EXCLUDED.note,
		   updated_at = NOW()
		 RETURNING id, assessment_id, section_key, included, note, created_at, updated_at`,
		ov.ID, ov.AssessmentID, ov.SectionKey, ov.Included, ov.Note, ov.CreatedAt, ov.UpdatedAt,
	).Scan(&result.ID, &result.AssessmentID, &result.SectionKey, &result.Included, &result.Note,
		&result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert section override: %w", err)
	}
	return &result, nil
}

// fillTimestamps sets zero created/updated times to now.
func fillTimestamps(createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt.IsZero() {
		*updatedAt = now
	}
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
