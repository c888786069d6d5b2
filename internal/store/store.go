package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/plancheckhq/plancheck/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error

	CreateCheck(ctx context.Context, check *models.Check) error
	GetCheck(ctx context.Context, id uuid.UUID) (*models.Check, error)
	ListChecksByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]*models.Check, error)
	UpdateCheckStatus(ctx context.Context, id uuid.UUID, status string) error
	// SetManualOverride writes the override fields and forces the check's
	// status to completed. The override always wins over analysis output.
	SetManualOverride(ctx context.Context, id uuid.UUID, status string, note *string) error
	// ClearManualOverride removes the override fields and sets the check
	// back to the given status.
	ClearManualOverride(ctx context.Context, id uuid.UUID, status string) error
	// GetSiblingChecks returns every check sharing the element instance,
	// including the one identified by the arguments.
	GetSiblingChecks(ctx context.Context, assessmentID, elementGroupID uuid.UUID, instanceLabel string) ([]*models.Check, error)

	// CreateAnalysisRun assigns the next run_number for the check and
	// persists the run. Safe under concurrent completions for the same
	// check: uniqueness is enforced by the database, not a read counter.
	CreateAnalysisRun(ctx context.Context, run *models.AnalysisRun) error
	CountAnalysisRuns(ctx context.Context, checkID uuid.UUID) (int, error)
	ListAnalysisRuns(ctx context.Context, checkID uuid.UUID) ([]*models.AnalysisRun, error)
	// LatestAnalysisRun returns the most recently executed run across the
	// given checks, or ErrNotFound when none exist.
	LatestAnalysisRun(ctx context.Context, checkIDs []uuid.UUID) (*models.AnalysisRun, error)
	CountRunsInBatchGroup(ctx context.Context, batchGroupID uuid.UUID) (int, error)

	CreateScreenshot(ctx context.Context, shot *models.Screenshot) error
	GetScreenshot(ctx context.Context, id uuid.UUID) (*models.Screenshot, error)
	ListScreenshotsByCheck(ctx context.Context, checkID uuid.UUID) ([]*models.Screenshot, error)
	DeleteScreenshot(ctx context.Context, id uuid.UUID) error

	UpsertCalibration(ctx context.Context, cal *models.Calibration) (*models.Calibration, error)
	UpsertSectionOverride(ctx context.Context, ov *models.SectionOverride) (*models.SectionOverride, error)
}
