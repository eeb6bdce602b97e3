package glossary

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edupath/coursesync/internal/cache"
	"github.com/edupath/coursesync/internal/events"
	"github.com/edupath/coursesync/internal/storage/sqlite"
	"github.com/edupath/coursesync/internal/syncer"
	"github.com/edupath/coursesync/internal/wsclient"
	"github.com/edupath/coursesync/pkg/api"
)

type harness struct {
	service   *Service
	syncer    *Syncer
	store     *sqlite.Storage
	snapshots *cache.Store
	ws        *wsclient.CallerMock
	bus       *events.Bus
	exec      *syncer.Executor

	// fake remote state served by the default CallFunc
	mu          sync.Mutex
	remote      []api.Entry
	nextEntryID int64
	offline     bool
	addErr      error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	bus := events.NewBus()
	store, err := sqlite.New(ctx, ":memory:", bus)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	snapshots, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, snapshots.Close())
	})

	logger := slog.New(slog.DiscardHandler)
	h := &harness{
		store:       store,
		snapshots:   snapshots,
		bus:         bus,
		ws:          &wsclient.CallerMock{},
		nextEntryID: 1000,
	}
	h.ws.CallFunc = h.handleCall
	h.exec = syncer.New("site-1", store, logger)
	h.service = NewService("site-1", h.ws, snapshots, store, h.exec, bus, logger)
	h.syncer = NewSyncer("site-1", h.service, store, h.exec, bus, logger)
	return h
}

func (h *harness) setOffline(offline bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offline = offline
}

func (h *harness) setRemote(entries ...api.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remote = entries
}

func (h *harness) remoteEntries() []api.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]api.Entry(nil), h.remote...)
}

// callCount returns how many times wsfunction was invoked.
func (h *harness) callCount(wsfunction string) int {
	n := 0
	for _, call := range h.ws.CallCalls() {
		if call.Wsfunction == wsfunction {
			n++
		}
	}
	return n
}

// handleCall is the default fake remote: an in-memory entry list behind the
// listing and add functions, with an offline switch.
func (h *harness) handleCall(ctx context.Context, wsfunction string, params, result any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.offline {
		return &wsclient.NetworkError{Op: wsfunction, Err: context.DeadlineExceeded}
	}

	switch wsfunction {
	case wsGetEntriesByLetter, wsGetEntriesByDate:
		req := params.(api.GetEntriesRequest)
		resp := result.(*api.GetEntriesResponse)
		resp.Count = len(h.remote)
		from := min(req.From, len(h.remote))
		to := min(from+req.Limit, len(h.remote))
		resp.Entries = append([]api.Entry(nil), h.remote[from:to]...)
		return nil

	case wsAddEntry:
		if h.addErr != nil {
			return h.addErr
		}
		req := params.(api.AddEntryRequest)
		resp := result.(*api.AddEntryResponse)
		h.nextEntryID++
		h.remote = append(h.remote, api.Entry{
			ID:         h.nextEntryID,
			GlossaryID: req.GlossaryID,
			Concept:    req.Concept,
			Definition: req.Definition,
		})
		resp.EntryID = h.nextEntryID
		return nil

	case wsUpdateEntry:
		req := params.(api.UpdateEntryRequest)
		resp := result.(*api.UpdateEntryResponse)
		for i := range h.remote {
			if h.remote[i].ID == req.EntryID {
				h.remote[i].Concept = req.Concept
				h.remote[i].Definition = req.Definition
			}
		}
		resp.Result = true
		return nil

	case wsGetEntryByID:
		req := params.(api.GetEntryByIDRequest)
		resp := result.(*api.GetEntryByIDResponse)
		for i := range h.remote {
			if h.remote[i].ID == req.EntryID {
				resp.Entry = h.remote[i]
				return nil
			}
		}
		return &wsclient.RemoteServiceError{Function: wsfunction, Code: "invalidentry", Message: "entry not found"}

	case wsViewGlossary, wsViewEntry:
		resp := result.(*api.ViewResponse)
		resp.Status = true
		return nil

	default:
		return &wsclient.RemoteServiceError{Function: wsfunction, Code: "invalidfunction", Message: "unknown function"}
	}
}

func testGlossary() *api.Glossary {
	return &api.Glossary{
		ID:             5,
		CourseModuleID: 50,
		CourseID:       2,
		Name:           "Biology terms",
		TimeModified:   1000,
	}
}
