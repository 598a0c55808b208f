package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Finder looks up a catalog record by external place ID.
type Finder interface {
	FindByPlaceID(ctx context.Context, placeID string) (string, bool, error)
}

// Detector checks whether a place is already in the catalog.
type Detector struct {
	finder Finder
}

// NewDetector creates a Detector over finder.
func NewDetector(finder Finder) *Detector {
	return &Detector{finder: finder}
}

// Check returns the existing record ID for placeID, or "" on a miss. Query
// failures are logged and reported as a miss.
func (d *Detector) Check(ctx context.Context, placeID string) string {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return ""
	}

	id, ok, err := d.finder.FindByPlaceID(ctx, placeID)
	if err != nil {
		zap.L().Warn("catalog: duplicate check failed, treating as new",
			zap.String("place_id", placeID),
			zap.Error(err),
		)
		return ""
	}
	if !ok {
		zap.L().Debug("catalog: no existing record", zap.String("place_id", placeID))
		return ""
	}
	return id
}
