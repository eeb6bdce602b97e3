package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveLastSync stamps a sync unit with its last successful sync time.
func (s *Storage) SaveLastSync(ctx context.Context, siteID, component, unitID string, syncedAt time.Time) error {
	query := `
		INSERT INTO sync_times (site_id, component, unit_id, last_sync)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (site_id, component, unit_id) DO UPDATE SET
			last_sync = excluded.last_sync
	`

	_, err := s.db.ExecContext(ctx, query, siteID, component, unitID, syncedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save last sync time: %w", err)
	}

	return nil
}

// GetLastSync retrieves a unit's last sync time, zero if it never synced.
func (s *Storage) GetLastSync(ctx context.Context, siteID, component, unitID string) (time.Time, error) {
	query := `
		SELECT last_sync FROM sync_times
		WHERE site_id = ? AND component = ? AND unit_id = ?
	`

	var lastSync int64
	err := s.db.QueryRowContext(ctx, query, siteID, component, unitID).Scan(&lastSync)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get last sync time: %w", err)
	}

	return time.Unix(lastSync, 0), nil
}
