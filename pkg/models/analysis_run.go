package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRun is an immutable record of one completed (or failed) AI analysis
// attempt for a check. RunNumber is 1-based and unique per check, enforced by
// a database constraint rather than a read-then-write counter.
type AnalysisRun struct {
	ID               uuid.UUID  `db:"id"                json:"id"`
	CheckID          uuid.UUID  `db:"check_id"          json:"check_id"`
	RunNumber        int        `db:"run_number"        json:"run_number"`
	ComplianceStatus string     `db:"compliance_status" json:"compliance_status"`
	Confidence       float64    `db:"confidence"        json:"confidence"`
	AIProvider       string     `db:"ai_provider"       json:"ai_provider"`
	AIModel          string     `db:"ai_model"          json:"ai_model"`
	AIReasoning      string     `db:"ai_reasoning"      json:"ai_reasoning"`
	Violations       []string   `db:"violations"        json:"violations"`
	CompliantAspects []string   `db:"compliant_aspects" json:"compliant_aspects"`
	Recommendations  []string   `db:"recommendations"   json:"recommendations"`
	ExecutionTimeMS  int64      `db:"execution_time_ms" json:"execution_time_ms"`
	BatchGroupID     *uuid.UUID `db:"batch_group_id"    json:"batch_group_id,omitempty"`
	BatchNumber      int        `db:"batch_number"      json:"batch_number"`
	TotalBatches     int        `db:"total_batches"     json:"total_batches"`
	ExecutedAt       time.Time  `db:"executed_at"       json:"executed_at"`
}
