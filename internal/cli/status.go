package cli

import (
	"context"
	"fmt"

	"github.com/edupath/coursesync/internal/glossary"
	"github.com/edupath/coursesync/internal/sites"
	"github.com/edupath/coursesync/internal/syncer"
)

// RunStatus prints pending work per registered site.
func RunStatus(ctx context.Context, registry *sites.Registry) error {
	all, err := registry.Sites()
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}
	if len(all) == 0 {
		fmt.Println("No sites registered.")
		return nil
	}

	for _, site := range all {
		h, err := registry.Open(ctx, site.ID)
		if err != nil {
			return fmt.Errorf("failed to open site %s: %w", site.ID, err)
		}

		entries, err := h.Storage.GetAllEntries(ctx, site.ID)
		if err != nil {
			return err
		}
		subs, err := h.Storage.GetAllSubmissions(ctx, site.ID)
		if err != nil {
			return err
		}
		grades, err := h.Storage.GetAllGrades(ctx, site.ID)
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s)\n", site.Name, site.ServerURL)
		fmt.Printf("  pending: %d entries, %d submissions, %d grades\n",
			len(entries), len(subs), len(grades))

		for _, entry := range entries {
			last, err := h.Storage.GetLastSync(ctx, site.ID, glossary.Component,
				syncer.UnitID(entry.GlossaryID, entry.UserID))
			if err != nil {
				return err
			}
			if !last.IsZero() {
				fmt.Printf("  glossary %d last synced %s\n", entry.GlossaryID, last.Format("2006-01-02 15:04"))
			}
		}
	}
	return nil
}

// RunPending lists the pending offline changes of one site.
func RunPending(ctx context.Context, registry *sites.Registry, siteID string) error {
	h, err := registry.Open(ctx, siteID)
	if err != nil {
		return fmt.Errorf("failed to open site: %w", err)
	}

	entries, err := h.Storage.GetAllEntries(ctx, siteID)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Printf("glossary %d  entry %q (user %d)\n", entry.GlossaryID, entry.Concept, entry.UserID)
	}

	subs, err := h.Storage.GetAllSubmissions(ctx, siteID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		state := "draft"
		if sub.Submitted {
			state = "submit for grading"
		}
		fmt.Printf("assign %d  submission by user %d (%s)\n", sub.AssignID, sub.UserID, state)
	}

	grades, err := h.Storage.GetAllGrades(ctx, siteID)
	if err != nil {
		return err
	}
	for _, grade := range grades {
		fmt.Printf("assign %d  grade %.2f for user %d\n", grade.AssignID, grade.Grade, grade.UserID)
	}

	if len(entries)+len(subs)+len(grades) == 0 {
		fmt.Println("Nothing pending.")
	}
	return nil
}
