package glossary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edupath/coursesync/internal/cache"
	"github.com/edupath/coursesync/internal/storage"
	"github.com/edupath/coursesync/internal/syncer"
	"github.com/edupath/coursesync/internal/wsclient"
	"github.com/edupath/coursesync/pkg/api"
)

// Draft is the editable content of an entry form.
type Draft struct {
	Concept          string
	Definition       string
	DefinitionFormat int
	Options          map[string]string
	AttachmentItemID int64
	StoredFiles      string
}

// DuplicateConceptError rejects a save whose concept collides with another
// entry, pending or published, in the same glossary.
type DuplicateConceptError struct {
	Concept string
}

func (e *DuplicateConceptError) Error() string {
	return fmt.Sprintf("an entry named %q already exists in this glossary", e.Concept)
}

// FormHandler drives one entry edit flow: load what the form shows, then
// persist the result. Save reports whether the entry went online (true) or
// was staged in the offline queue (false).
type FormHandler interface {
	LoadData(ctx context.Context) (*Draft, error)
	Save(ctx context.Context, draft *Draft) (sentOnline bool, err error)
}

// NewFormHandler selects the edit flow from the edit context:
// an entry id means editing a published entry (online only), a creation
// timestamp means editing a pending offline entry (always re-staged
// locally), otherwise the form creates a new entry.
func (s *Service) NewFormHandler(g *api.Glossary, courseID, userID, entryID, timeCreated int64) FormHandler {
	switch {
	case entryID > 0:
		return &onlineEntryHandler{service: s, glossary: g, entryID: entryID}
	case timeCreated > 0:
		return &offlineEntryHandler{service: s, glossary: g, courseID: courseID, userID: userID, timeCreated: timeCreated}
	default:
		return &newEntryHandler{service: s, glossary: g, courseID: courseID, userID: userID}
	}
}

// checkConcept enforces the duplicate-identifier guard: the concept must be
// unused both among pending offline entries (excluding the edit itself) and
// in the remote entry list as far as it is known. An unreachable server
// skips the remote half; the server re-validates during sync anyway.
func (s *Service) checkConcept(ctx context.Context, g *api.Glossary, concept string, excludeTimeCreated, excludeEntryID int64) error {
	if g.AllowDuplicateEntries {
		return nil
	}

	used, err := s.offline.IsConceptUsed(ctx, s.siteID, g.ID, concept, excludeTimeCreated)
	if err != nil {
		return fmt.Errorf("failed to check pending concepts: %w", err)
	}
	if used {
		return &DuplicateConceptError{Concept: concept}
	}

	entries, err := s.FetchAllEntriesByLetter(ctx, g.ID, cache.ReadOptions{})
	if err != nil {
		if wsclient.IsNetworkError(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.ID != excludeEntryID && strings.EqualFold(entry.Concept, concept) {
			return &DuplicateConceptError{Concept: concept}
		}
	}
	return nil
}

// newEntryHandler creates an entry: online when possible, staged offline
// when the server is unreachable.
type newEntryHandler struct {
	service  *Service
	glossary *api.Glossary
	courseID int64
	userID   int64
}

func (h *newEntryHandler) LoadData(ctx context.Context) (*Draft, error) {
	return &Draft{DefinitionFormat: 1, Options: map[string]string{}}, nil
}

func (h *newEntryHandler) Save(ctx context.Context, draft *Draft) (bool, error) {
	if err := h.service.checkConcept(ctx, h.glossary, draft.Concept, 0, 0); err != nil {
		return false, err
	}

	_, err := h.service.AddEntry(ctx, api.AddEntryRequest{
		GlossaryID:       h.glossary.ID,
		Concept:          draft.Concept,
		Definition:       draft.Definition,
		DefinitionFormat: draft.DefinitionFormat,
		Options:          draft.Options,
		AttachmentItemID: draft.AttachmentItemID,
	})
	if err == nil {
		return true, nil
	}
	if !wsclient.IsNetworkError(err) {
		// Remote rejections surface to the user, never queued
		return false, err
	}

	// Staging holds the unit lock so an in-flight sync of the same unit
	// cannot delete the queued row out from under the save.
	unitID := syncer.UnitID(h.glossary.ID, h.userID)
	if lockErr := h.service.exec.Lock(Component, unitID); lockErr != nil {
		return false, lockErr
	}
	defer h.service.exec.Unlock(Component, unitID)

	entry := &storage.OfflineEntry{
		SiteID:               h.service.siteID,
		GlossaryID:           h.glossary.ID,
		CourseID:             h.courseID,
		UserID:               h.userID,
		Concept:              draft.Concept,
		Definition:           draft.Definition,
		DefinitionFormat:     draft.DefinitionFormat,
		Options:              draft.Options,
		AttachmentItemID:     draft.AttachmentItemID,
		StoredFiles:          draft.StoredFiles,
		TimeCreated:          time.Now().Unix(),
		BaselineTimeModified: h.glossary.TimeModified,
	}
	if saveErr := h.service.offline.SaveEntry(ctx, entry); saveErr != nil {
		return false, fmt.Errorf("failed to stage entry offline: %w", saveErr)
	}
	return false, nil
}

// offlineEntryHandler edits an entry that only exists in the offline queue.
// Edits always re-stage locally: the original was never sent.
type offlineEntryHandler struct {
	service     *Service
	glossary    *api.Glossary
	courseID    int64
	userID      int64
	timeCreated int64
	concept     string
}

func (h *offlineEntryHandler) LoadData(ctx context.Context) (*Draft, error) {
	entries, err := h.service.offline.GetGlossaryEntries(ctx, h.service.siteID, h.glossary.ID)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.TimeCreated == h.timeCreated && entry.UserID == h.userID {
			h.concept = entry.Concept
			return &Draft{
				Concept:          entry.Concept,
				Definition:       entry.Definition,
				DefinitionFormat: entry.DefinitionFormat,
				Options:          entry.Options,
				AttachmentItemID: entry.AttachmentItemID,
				StoredFiles:      entry.StoredFiles,
			}, nil
		}
	}
	return nil, storage.ErrEntryNotFound
}

func (h *offlineEntryHandler) Save(ctx context.Context, draft *Draft) (bool, error) {
	if err := h.service.checkConcept(ctx, h.glossary, draft.Concept, h.timeCreated, 0); err != nil {
		return false, err
	}

	unitID := syncer.UnitID(h.glossary.ID, h.userID)
	if lockErr := h.service.exec.Lock(Component, unitID); lockErr != nil {
		return false, lockErr
	}
	defer h.service.exec.Unlock(Component, unitID)

	// A renamed concept changes the identity tuple; drop the old row first
	if h.concept != "" && !strings.EqualFold(h.concept, draft.Concept) {
		if err := h.service.offline.DeleteEntry(ctx, h.service.siteID, h.glossary.ID, h.concept, h.timeCreated); err != nil {
			return false, err
		}
	}

	entry := &storage.OfflineEntry{
		SiteID:               h.service.siteID,
		GlossaryID:           h.glossary.ID,
		CourseID:             h.courseID,
		UserID:               h.userID,
		Concept:              draft.Concept,
		Definition:           draft.Definition,
		DefinitionFormat:     draft.DefinitionFormat,
		Options:              draft.Options,
		AttachmentItemID:     draft.AttachmentItemID,
		StoredFiles:          draft.StoredFiles,
		TimeCreated:          h.timeCreated,
		BaselineTimeModified: h.glossary.TimeModified,
	}
	if err := h.service.offline.SaveEntry(ctx, entry); err != nil {
		return false, fmt.Errorf("failed to re-stage entry: %w", err)
	}
	h.concept = draft.Concept
	return false, nil
}

// onlineEntryHandler edits a published entry. Online only: editing synced
// server state offline would create divergent histories.
type onlineEntryHandler struct {
	service  *Service
	glossary *api.Glossary
	entryID  int64
}

func (h *onlineEntryHandler) LoadData(ctx context.Context) (*Draft, error) {
	entry, err := h.service.GetEntryByID(ctx, h.glossary.ID, h.entryID, cache.ReadOptions{})
	if err != nil {
		return nil, err
	}
	return &Draft{
		Concept:    entry.Concept,
		Definition: entry.Definition,
		Options:    map[string]string{},
	}, nil
}

func (h *onlineEntryHandler) Save(ctx context.Context, draft *Draft) (bool, error) {
	if err := h.service.checkConcept(ctx, h.glossary, draft.Concept, 0, h.entryID); err != nil {
		return false, err
	}

	err := h.service.UpdateEntry(ctx, h.glossary.ID, api.UpdateEntryRequest{
		EntryID:          h.entryID,
		Concept:          draft.Concept,
		Definition:       draft.Definition,
		DefinitionFormat: draft.DefinitionFormat,
		Options:          draft.Options,
		AttachmentItemID: draft.AttachmentItemID,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
