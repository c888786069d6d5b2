package models

import (
	"time"

	"github.com/google/uuid"
)

// Screenshot is a cropped region of a drawing page captured as evidence for
// a check. Image bytes live in the blob store; this is the metadata row.
type Screenshot struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	CheckID      uuid.UUID `db:"check_id"      json:"check_id"`
	ProjectID    uuid.UUID `db:"project_id"    json:"project_id"`
	PageNumber   int       `db:"page_number"   json:"page_number"`
	Caption      string    `db:"caption"       json:"caption"`
	StorageKey   string    `db:"storage_key"   json:"storage_key"`
	ThumbnailKey string    `db:"thumbnail_key" json:"thumbnail_key"`
	ImageBase64  string    `db:"image_base64"  json:"image_base64,omitempty"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
}
