package models

import (
	"time"

	"github.com/google/uuid"
)

// Calibration records the measured drawing scale for one page of a project.
// Upserted on (project_id, page_number).
type Calibration struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	ProjectID  uuid.UUID `db:"project_id"  json:"project_id"`
	PageNumber int       `db:"page_number" json:"page_number"`
	Scale      float64   `db:"scale"       json:"scale"`
	Unit       string    `db:"unit"        json:"unit"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updated_at"`
}

// SectionOverride marks a code section as included or excluded for one
// assessment, with an optional reviewer note. Upserted on
// (assessment_id, section_key).
type SectionOverride struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	AssessmentID uuid.UUID `db:"assessment_id" json:"assessment_id"`
	SectionKey   string    `db:"section_key"   json:"section_key"`
	Included     bool      `db:"included"      json:"included"`
	Note         string    `db:"note"          json:"note"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updated_at"`
}
