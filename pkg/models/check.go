// Package models contains shared data models used across the PlanCheck codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	CheckStatusPending    = "pending"
	CheckStatusProcessing = "processing"
	CheckStatusCompleted  = "completed"
	CheckStatusFailed     = "failed"
	CheckStatusCancelled  = "cancelled"
)

// Check is one unit of compliance review: a single code section assessed
// against the uploaded drawings. The pipeline owns the Status field; the
// manual-override fields always win over any automated result.
type Check struct {
	ID               uuid.UUID  `db:"id"                 json:"id"`
	AssessmentID     uuid.UUID  `db:"assessment_id"      json:"assessment_id"`
	ProjectID        uuid.UUID  `db:"project_id"         json:"project_id"`
	SectionKey       string     `db:"section_key"        json:"section_key"`
	SectionTitle     string     `db:"section_title"      json:"section_title"`
	Status           string     `db:"status"             json:"status"`
	ElementGroupID   *uuid.UUID `db:"element_group_id"   json:"element_group_id,omitempty"`
	InstanceLabel    *string    `db:"instance_label"     json:"instance_label,omitempty"`
	ManualStatus     *string    `db:"manual_status"      json:"manual_status,omitempty"`
	ManualStatusNote *string    `db:"manual_status_note" json:"manual_status_note,omitempty"`
	ManualStatusAt   *time.Time `db:"manual_status_at"   json:"manual_status_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at"         json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"         json:"updated_at"`
}

// Overridden reports whether a human has set a manual status on the check.
func (c *Check) Overridden() bool {
	return c.ManualStatus != nil && *c.ManualStatus != ""
}
