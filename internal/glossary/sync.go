package glossary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/edupath/coursesync/internal/cache"
	"github.com/edupath/coursesync/internal/events"
	"github.com/edupath/coursesync/internal/storage"
	"github.com/edupath/coursesync/internal/syncer"
	"github.com/edupath/coursesync/internal/wsclient"
	"github.com/edupath/coursesync/pkg/api"
)

// AutoSyncInterval gates periodic sync: units reconciled more recently are
// skipped by AutoSync.
const AutoSyncInterval = 5 * time.Minute

// Syncer reconciles pending offline entries against the server.
type Syncer struct {
	siteID  string
	service *Service
	offline storage.GlossaryOfflineStorage
	exec    *syncer.Executor
	bus     *events.Bus
	logger  *slog.Logger
}

// NewSyncer creates the glossary syncer for one site.
func NewSyncer(siteID string, service *Service, offline storage.GlossaryOfflineStorage, exec *syncer.Executor, bus *events.Bus, logger *slog.Logger) *Syncer {
	return &Syncer{
		siteID:  siteID,
		service: service,
		offline: offline,
		exec:    exec,
		bus:     bus,
		logger:  logger,
	}
}

// Sync reconciles one (glossary, user) unit now.
func (s *Syncer) Sync(ctx context.Context, glossaryID, userID int64) (*syncer.Result, error) {
	return s.run(ctx, glossaryID, userID, 0, events.ManuallySynced)
}

// AutoSync reconciles one unit unless it synced within AutoSyncInterval.
func (s *Syncer) AutoSync(ctx context.Context, glossaryID, userID int64) (*syncer.Result, error) {
	return s.run(ctx, glossaryID, userID, AutoSyncInterval, events.AutoSynced)
}

func (s *Syncer) run(ctx context.Context, glossaryID, userID int64, minInterval time.Duration, eventName string) (*syncer.Result, error) {
	unitID := syncer.UnitID(glossaryID, userID)
	result, err := s.exec.RunIfNeeded(ctx, Component, unitID, minInterval,
		func(ctx context.Context) (*syncer.Result, error) {
			return s.performSync(ctx, glossaryID, userID)
		})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.Event{
		Name:   eventName,
		SiteID: s.siteID,
		Payload: events.SyncPayload{
			Component: Component,
			UnitID:    unitID,
			Updated:   result.Updated,
			Warnings:  result.Warnings,
		},
	})
	return result, nil
}

func (s *Syncer) performSync(ctx context.Context, glossaryID, userID int64) (*syncer.Result, error) {
	result := &syncer.Result{}

	pending, err := s.offline.GetGlossaryEntries(ctx, s.siteID, glossaryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending entries: %w", err)
	}

	mine := pending[:0:0]
	for _, entry := range pending {
		if entry.UserID == userID {
			mine = append(mine, entry)
		}
	}
	if len(mine) == 0 {
		return result, nil
	}

	// Conflict detection never trusts a stale cache
	remote, err := s.service.FetchAllEntriesByLetter(ctx, glossaryID, cache.ReadOptions{Mode: cache.ForceNetwork})
	if err != nil {
		return nil, err
	}

	for _, entry := range mine {
		if conflict := findConcept(remote, entry.Concept); conflict != nil && conflict.TimeModified > entry.BaselineTimeModified {
			// The server already has a newer entry under this concept;
			// last write wins toward the server.
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: discarded, a newer entry with this concept exists on the server", entry.Concept))
			if err := s.offline.DeleteEntry(ctx, s.siteID, glossaryID, entry.Concept, entry.TimeCreated); err != nil {
				return nil, err
			}
			continue
		}

		_, err := s.service.AddEntry(ctx, api.AddEntryRequest{
			GlossaryID:       glossaryID,
			Concept:          entry.Concept,
			Definition:       entry.Definition,
			DefinitionFormat: entry.DefinitionFormat,
			Options:          entry.Options,
			AttachmentItemID: entry.AttachmentItemID,
		})
		if err != nil {
			var remoteErr *wsclient.RemoteServiceError
			if errors.As(err, &remoteErr) {
				// Terminal rejection: never retried, never retained
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("%s: %s", entry.Concept, remoteErr.Message))
				if delErr := s.offline.DeleteEntry(ctx, s.siteID, glossaryID, entry.Concept, entry.TimeCreated); delErr != nil {
					return nil, delErr
				}
				continue
			}
			// Network failure aborts the unit; remaining entries stay
			// queued for the next run
			return nil, err
		}

		if err := s.offline.DeleteEntry(ctx, s.siteID, glossaryID, entry.Concept, entry.TimeCreated); err != nil {
			return nil, err
		}
		result.Updated = true
	}

	if result.Updated {
		// Warm the entry lists so the UI refresh reads current state
		if _, err := s.service.FetchAllEntriesByLetter(ctx, glossaryID, cache.ReadOptions{Mode: cache.ForceNetwork}); err != nil {
			s.logger.Debug("failed to refresh entry lists after sync", "glossary", glossaryID, "error", err)
		}
	}

	return result, nil
}

func findConcept(entries []api.Entry, concept string) *api.Entry {
	for i := range entries {
		if strings.EqualFold(entries[i].Concept, concept) {
			return &entries[i]
		}
	}
	return nil
}

// UnitResult is the outcome of one unit inside a whole-site sweep.
type UnitResult struct {
	GlossaryID int64
	UserID     int64
	Result     *syncer.Result
	Err        error
}

// SyncAll reconciles every unit with pending entries. Units run
// concurrently and independently; one unit's failure does not block others.
// A forced sweep ignores the auto-sync interval and reports each unit as
// manually synced.
func (s *Syncer) SyncAll(ctx context.Context, force bool) ([]UnitResult, error) {
	pending, err := s.offline.GetAllEntries(ctx, s.siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate pending entries: %w", err)
	}

	type unit struct {
		glossaryID int64
		userID     int64
	}
	seen := make(map[unit]bool)
	var units []unit
	for _, entry := range pending {
		u := unit{glossaryID: entry.GlossaryID, userID: entry.UserID}
		if !seen[u] {
			seen[u] = true
			units = append(units, u)
		}
	}

	results := make([]UnitResult, len(units))
	var wg sync.WaitGroup
	for i, u := range units {
		wg.Add(1)
		go func(i int, u unit) {
			defer wg.Done()
			var res *syncer.Result
			var err error
			if force {
				res, err = s.Sync(ctx, u.glossaryID, u.userID)
			} else {
				res, err = s.AutoSync(ctx, u.glossaryID, u.userID)
			}
			results[i] = UnitResult{GlossaryID: u.glossaryID, UserID: u.userID, Result: res, Err: err}
		}(i, u)
	}
	wg.Wait()

	return results, nil
}
