// Package blob talks to the blob-storage gateway that holds screenshot
// images. The pipeline never streams image bytes itself; it issues presigned
// upload URLs and deletes objects by key.
package blob

import (
	"fmt"

	"github.com/google/uuid"
)

// ScreenshotKey is the deterministic object key for a screenshot image.
func ScreenshotKey(projectID, checkID, screenshotID uuid.UUID) string {
	return fmt.Sprintf("projects/%s/screenshots/%s/%s.png", projectID, checkID, screenshotID)
}

// ThumbnailKey is the object key for a screenshot's thumbnail variant.
func ThumbnailKey(projectID, checkID, screenshotID uuid.UUID) string {
	return fmt.Sprintf("projects/%s/screenshots/%s/%s_thumb.png", projectID, checkID, screenshotID)
}
