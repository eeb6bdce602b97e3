package storage

import (
	"context"
	"time"
)

// SyncTimeStorage records when each sync unit was last reconciled, so a
// time-gated auto-sync can skip recently synced units.
type SyncTimeStorage interface {
	// SaveLastSync stamps the unit with its last successful sync time.
	SaveLastSync(ctx context.Context, siteID, component, unitID string, syncedAt time.Time) error

	// GetLastSync retrieves the unit's last sync time.
	// Returns the zero time if the unit has never synced.
	GetLastSync(ctx context.Context, siteID, component, unitID string) (time.Time, error)
}
