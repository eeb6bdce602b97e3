package cli

import (
	"context"
	"fmt"

	"github.com/edupath/coursesync/internal/sites"
)

// RunSync reconciles every pending change of one site against the server.
// force ignores the auto-sync interval and re-syncs recently synced units.
func RunSync(ctx context.Context, registry *sites.Registry, siteID string, force bool) error {
	h, err := registry.Open(ctx, siteID)
	if err != nil {
		return fmt.Errorf("failed to open site: %w", err)
	}

	glossaryResults, err := h.GlossarySync.SyncAll(ctx, force)
	if err != nil {
		return fmt.Errorf("glossary sync failed: %w", err)
	}
	for _, r := range glossaryResults {
		if r.Err != nil {
			fmt.Printf("glossary %d (user %d): %v\n", r.GlossaryID, r.UserID, r.Err)
			continue
		}
		for _, w := range r.Result.Warnings {
			fmt.Printf("glossary %d: %s\n", r.GlossaryID, w)
		}
		if r.Result.Updated {
			fmt.Printf("glossary %d (user %d): synced\n", r.GlossaryID, r.UserID)
		}
	}

	assignResults, err := h.AssignSync.SyncAll(ctx, force)
	if err != nil {
		return fmt.Errorf("assignment sync failed: %w", err)
	}
	for _, r := range assignResults {
		if r.Err != nil {
			fmt.Printf("assign %d (user %d): %v\n", r.AssignID, r.UserID, r.Err)
			continue
		}
		for _, w := range r.Result.Warnings {
			fmt.Printf("assign %d: %s\n", r.AssignID, w)
		}
		if r.Result.Updated {
			fmt.Printf("assign %d (user %d): synced\n", r.AssignID, r.UserID)
		}
	}

	if len(glossaryResults)+len(assignResults) == 0 {
		fmt.Println("Nothing to sync.")
	}
	return nil
}
