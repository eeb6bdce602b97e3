// Package glossary implements the glossary activity: the remote gateway with
// snapshot caching, the offline entry queue, form handlers for creating and
// editing entries, and the reconciliation of pending entries.
package glossary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/edupath/coursesync/internal/cache"
	"github.com/edupath/coursesync/internal/events"
	"github.com/edupath/coursesync/internal/storage"
	"github.com/edupath/coursesync/internal/syncer"
	"github.com/edupath/coursesync/internal/wsclient"
	"github.com/edupath/coursesync/pkg/api"
)

// Component identifies glossary sync units in locks and sync-time records.
const Component = "glossary"

// Remote function names
const (
	wsGetGlossaries        = "glossary_get_glossaries_by_courses"
	wsGetEntriesByLetter   = "glossary_get_entries_by_letter"
	wsGetEntriesByAuthor   = "glossary_get_entries_by_author"
	wsGetEntriesByCategory = "glossary_get_entries_by_category"
	wsGetEntriesByDate     = "glossary_get_entries_by_date"
	wsGetEntriesBySearch   = "glossary_get_entries_by_search"
	wsGetEntryByID         = "glossary_get_entry_by_id"
	wsGetCategories        = "glossary_get_categories"
	wsAddEntry             = "glossary_add_entry"
	wsUpdateEntry          = "glossary_update_entry"
	wsDeleteEntry          = "glossary_delete_entry"
	wsViewGlossary         = "glossary_view_glossary"
	wsViewEntry            = "glossary_view_entry"
)

// EntriesPerPage is the page size of the entry-listing reads.
const EntriesPerPage = 25

// EntriesPage is one page of remote entries plus the total match count.
type EntriesPage struct {
	Entries []api.Entry
	Count   int
}

// Service is the glossary remote gateway for one site.
type Service struct {
	siteID  string
	ws      wsclient.Caller
	cache   *cache.Store
	offline storage.GlossaryOfflineStorage
	exec    *syncer.Executor
	bus     *events.Bus
	logger  *slog.Logger
}

// NewService creates the glossary gateway for one site.
func NewService(siteID string, ws wsclient.Caller, snapshots *cache.Store, offline storage.GlossaryOfflineStorage, exec *syncer.Executor, bus *events.Bus, logger *slog.Logger) *Service {
	return &Service{
		siteID:  siteID,
		ws:      ws,
		cache:   snapshots,
		offline: offline,
		exec:    exec,
		bus:     bus,
		logger:  logger,
	}
}

func glossaryKey(glossaryID int64, parts ...string) string {
	all := append([]string{"glossary", strconv.FormatInt(glossaryID, 10)}, parts...)
	return cache.Key(all...)
}

func entriesListKey(glossaryID int64, mode string, filter string, from, limit int) string {
	return glossaryKey(glossaryID, "entries", mode, filter,
		strconv.Itoa(from), strconv.Itoa(limit))
}

// GetGlossariesByCourses returns the glossaries visible in the given courses.
func (s *Service) GetGlossariesByCourses(ctx context.Context, courseIDs []int64, opts cache.ReadOptions) ([]api.Glossary, error) {
	ids := make([]string, len(courseIDs))
	for i, id := range courseIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	key := cache.Key("glossary", "courses", strings.Join(ids, ","))

	resp, err := cache.Fetch(ctx, s.cache, s.siteID, key, opts,
		func(ctx context.Context) (api.GetGlossariesByCoursesResponse, error) {
			var r api.GetGlossariesByCoursesResponse
			err := s.ws.Call(ctx, wsGetGlossaries, api.GetGlossariesByCoursesRequest{CourseIDs: courseIDs}, &r)
			return r, err
		})
	if err != nil {
		return nil, err
	}
	return resp.Glossaries, nil
}

func (s *Service) fetchEntries(ctx context.Context, wsfunction, key string, req api.GetEntriesRequest, opts cache.ReadOptions) (*EntriesPage, error) {
	resp, err := cache.Fetch(ctx, s.cache, s.siteID, key, opts,
		func(ctx context.Context) (api.GetEntriesResponse, error) {
			var r api.GetEntriesResponse
			err := s.ws.Call(ctx, wsfunction, req, &r)
			return r, err
		})
	if err != nil {
		return nil, err
	}
	return &EntriesPage{Entries: resp.Entries, Count: resp.Count}, nil
}

// GetEntriesByLetter returns one page of entries whose concept starts with
// letter ("ALL" for every entry).
func (s *Service) GetEntriesByLetter(ctx context.Context, glossaryID int64, letter string, from, limit int, opts cache.ReadOptions) (*EntriesPage, error) {
	return s.fetchEntries(ctx, wsGetEntriesByLetter,
		entriesListKey(glossaryID, "letter", letter, from, limit),
		api.GetEntriesRequest{GlossaryID: glossaryID, Letter: letter, From: from, Limit: limit},
		opts)
}

// GetEntriesByAuthor returns one page of entries grouped by author.
func (s *Service) GetEntriesByAuthor(ctx context.Context, glossaryID int64, letter string, from, limit int, opts cache.ReadOptions) (*EntriesPage, error) {
	return s.fetchEntries(ctx, wsGetEntriesByAuthor,
		entriesListKey(glossaryID, "author", letter, from, limit),
		api.GetEntriesRequest{GlossaryID: glossaryID, Letter: letter, From: from, Limit: limit},
		opts)
}

// GetEntriesByCategory returns one page of entries in a category.
func (s *Service) GetEntriesByCategory(ctx context.Context, glossaryID, categoryID int64, from, limit int, opts cache.ReadOptions) (*EntriesPage, error) {
	return s.fetchEntries(ctx, wsGetEntriesByCategory,
		entriesListKey(glossaryID, "category", strconv.FormatInt(categoryID, 10), from, limit),
		api.GetEntriesRequest{GlossaryID: glossaryID, CategoryID: categoryID, From: from, Limit: limit},
		opts)
}

// GetEntriesByDate returns one page of entries ordered by creation or update
// time. order is "CREATION" or "UPDATE"; sort is "ASC" or "DESC".
func (s *Service) GetEntriesByDate(ctx context.Context, glossaryID int64, order, sort string, from, limit int, opts cache.ReadOptions) (*EntriesPage, error) {
	return s.fetchEntries(ctx, wsGetEntriesByDate,
		entriesListKey(glossaryID, "date", order+"_"+sort, from, limit),
		api.GetEntriesRequest{GlossaryID: glossaryID, Order: order, Sort: sort, From: from, Limit: limit},
		opts)
}

// GetEntriesBySearch returns one page of entries matching query.
func (s *Service) GetEntriesBySearch(ctx context.Context, glossaryID int64, query string, fullSearch bool, from, limit int, opts cache.ReadOptions) (*EntriesPage, error) {
	return s.fetchEntries(ctx, wsGetEntriesBySearch,
		entriesListKey(glossaryID, "search", fmt.Sprintf("%s_%t", query, fullSearch), from, limit),
		api.GetEntriesRequest{GlossaryID: glossaryID, Query: query, FullSearch: fullSearch, From: from, Limit: limit},
		opts)
}

// FetchAllEntries repeatedly pages through fetchPage until the reported
// total is collected, returning one flattened sequence. Not lazy: the whole
// collection materializes before returning.
func FetchAllEntries(ctx context.Context, fetchPage func(ctx context.Context, from, limit int) (*EntriesPage, error)) ([]api.Entry, error) {
	var all []api.Entry
	from := 0
	for {
		page, err := fetchPage(ctx, from, EntriesPerPage)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Entries...)
		from += len(page.Entries)
		if len(page.Entries) == 0 || len(all) >= page.Count {
			return all, nil
		}
	}
}

// FetchAllEntriesByLetter collects every entry of the glossary.
func (s *Service) FetchAllEntriesByLetter(ctx context.Context, glossaryID int64, opts cache.ReadOptions) ([]api.Entry, error) {
	return FetchAllEntries(ctx, func(ctx context.Context, from, limit int) (*EntriesPage, error) {
		return s.GetEntriesByLetter(ctx, glossaryID, "ALL", from, limit, opts)
	})
}

// GetEntryByID returns one entry. A cache-only miss falls back to scanning
// the glossary's full entry list for the id before giving up.
func (s *Service) GetEntryByID(ctx context.Context, glossaryID, entryID int64, opts cache.ReadOptions) (*api.Entry, error) {
	key := glossaryKey(glossaryID, "entry", strconv.FormatInt(entryID, 10))

	resp, err := cache.Fetch(ctx, s.cache, s.siteID, key, opts,
		func(ctx context.Context) (api.GetEntryByIDResponse, error) {
			var r api.GetEntryByIDResponse
			err := s.ws.Call(ctx, wsGetEntryByID, api.GetEntryByIDRequest{EntryID: entryID}, &r)
			return r, err
		})
	if err == nil {
		return &resp.Entry, nil
	}
	if !errors.Is(err, cache.ErrNotCached) {
		return nil, err
	}

	// Secondary lookup: the entry may sit inside a cached list page
	entries, scanErr := s.FetchAllEntriesByLetter(ctx, glossaryID, opts)
	if scanErr != nil {
		return nil, scanErr
	}
	for i := range entries {
		if entries[i].ID == entryID {
			return &entries[i], nil
		}
	}
	return nil, err
}

// GetCategories returns one page of the glossary's categories.
func (s *Service) GetCategories(ctx context.Context, glossaryID int64, from, limit int, opts cache.ReadOptions) ([]api.Category, int, error) {
	key := glossaryKey(glossaryID, "categories", strconv.Itoa(from), strconv.Itoa(limit))

	resp, err := cache.Fetch(ctx, s.cache, s.siteID, key, opts,
		func(ctx context.Context) (api.GetCategoriesResponse, error) {
			var r api.GetCategoriesResponse
			err := s.ws.Call(ctx, wsGetCategories, api.GetCategoriesRequest{GlossaryID: glossaryID, From: from, Limit: limit}, &r)
			return r, err
		})
	if err != nil {
		return nil, 0, err
	}
	return resp.Categories, resp.Count, nil
}

// InvalidateEntryLists drops every cached entry-list view of the glossary.
// Creating, updating or deleting an entry can change any of them.
func (s *Service) InvalidateEntryLists(glossaryID int64) error {
	return s.cache.InvalidatePrefix(s.siteID, glossaryKey(glossaryID, "entries")+":")
}

// AddEntry creates an entry online. On success every cached list view of the
// glossary is invalidated and an entry-added event fires.
func (s *Service) AddEntry(ctx context.Context, req api.AddEntryRequest) (int64, error) {
	var resp api.AddEntryResponse
	if err := s.ws.Call(ctx, wsAddEntry, req, &resp); err != nil {
		return 0, err
	}

	if err := s.InvalidateEntryLists(req.GlossaryID); err != nil {
		s.logger.Warn("failed to invalidate entry lists", "glossary", req.GlossaryID, "error", err)
	}

	s.bus.Publish(events.Event{
		Name:   events.EntryAdded,
		SiteID: s.siteID,
		Payload: events.EntryPayload{
			GlossaryID: req.GlossaryID,
			EntryID:    resp.EntryID,
			Concept:    req.Concept,
		},
	})
	return resp.EntryID, nil
}

// UpdateEntry replaces an entry's content online.
func (s *Service) UpdateEntry(ctx context.Context, glossaryID int64, req api.UpdateEntryRequest) error {
	var resp api.UpdateEntryResponse
	if err := s.ws.Call(ctx, wsUpdateEntry, req, &resp); err != nil {
		return err
	}

	if err := s.InvalidateEntryLists(glossaryID); err != nil {
		s.logger.Warn("failed to invalidate entry lists", "glossary", glossaryID, "error", err)
	}
	if err := s.cache.Invalidate(s.siteID, glossaryKey(glossaryID, "entry", strconv.FormatInt(req.EntryID, 10))); err != nil {
		s.logger.Warn("failed to invalidate entry", "entry", req.EntryID, "error", err)
	}

	s.bus.Publish(events.Event{
		Name:   events.EntryUpdated,
		SiteID: s.siteID,
		Payload: events.EntryPayload{
			GlossaryID: glossaryID,
			EntryID:    req.EntryID,
			Concept:    req.Concept,
		},
	})
	return nil
}

// DeleteEntry removes an entry online.
func (s *Service) DeleteEntry(ctx context.Context, glossaryID, entryID int64) error {
	var resp api.DeleteEntryResponse
	if err := s.ws.Call(ctx, wsDeleteEntry, api.DeleteEntryRequest{EntryID: entryID}, &resp); err != nil {
		return err
	}

	if err := s.InvalidateEntryLists(glossaryID); err != nil {
		s.logger.Warn("failed to invalidate entry lists", "glossary", glossaryID, "error", err)
	}
	if err := s.cache.Invalidate(s.siteID, glossaryKey(glossaryID, "entry", strconv.FormatInt(entryID, 10))); err != nil {
		s.logger.Warn("failed to invalidate entry", "entry", entryID, "error", err)
	}

	s.bus.Publish(events.Event{
		Name:   events.EntryDeleted,
		SiteID: s.siteID,
		Payload: events.EntryPayload{
			GlossaryID: glossaryID,
			EntryID:    entryID,
		},
	})
	return nil
}

// ViewGlossary logs that the glossary was opened in a browse mode.
// Fire-and-forget: callers typically ignore failures.
func (s *Service) ViewGlossary(ctx context.Context, glossaryID int64, mode string) error {
	var resp api.ViewResponse
	return s.ws.Call(ctx, wsViewGlossary, api.ViewGlossaryRequest{GlossaryID: glossaryID, Mode: mode}, &resp)
}

// ViewEntry logs that one entry was opened.
func (s *Service) ViewEntry(ctx context.Context, entryID int64) error {
	var resp api.ViewResponse
	return s.ws.Call(ctx, wsViewEntry, api.ViewEntryRequest{EntryID: entryID}, &resp)
}

// PendingCount reports how many entries are waiting to sync for the
// glossary, for UI badges.
func (s *Service) PendingCount(ctx context.Context, glossaryID int64) (int, error) {
	pending, err := s.offline.GetGlossaryEntries(ctx, s.siteID, glossaryID)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}
