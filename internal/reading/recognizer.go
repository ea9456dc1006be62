package reading

import (
	"context"
	"fmt"
	"time"
)

// UploadedImage references a photograph held by the recognition provider.
type UploadedImage struct {
	URI       string
	MediaType string
}

// Recognizer extracts a meter value from a photograph.
type Recognizer interface {
	// Upload hands a scratch file to the provider.
	Upload(ctx context.Context, path, mediaType, displayName string) (UploadedImage, error)
	// Extract asks the provider for the value shown on an uploaded image and
	// returns the raw answer.
	Extract(ctx context.Context, image UploadedImage) (string, error)
}

// DisplayName labels an uploaded image at the provider.
func DisplayName(category Category, customerCode string, measuredAt time.Time) string {
	measuredAt = measuredAt.UTC()
	return fmt.Sprintf("%s measure by %s - %d/%d", category, customerCode, int(measuredAt.Month()), measuredAt.Year())
}
