package sites

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/edupath/coursesync/internal/assign"
	"github.com/edupath/coursesync/internal/cache"
	"github.com/edupath/coursesync/internal/events"
	"github.com/edupath/coursesync/internal/glossary"
	"github.com/edupath/coursesync/internal/page"
	"github.com/edupath/coursesync/internal/storage/sqlite"
	"github.com/edupath/coursesync/internal/syncer"
	"github.com/edupath/coursesync/internal/wsclient"
)

// Handles bundles the per-site services. Every field is scoped to one site
// id; the registry never shares a handle between sites.
type Handles struct {
	Site         *Site
	WS           wsclient.Caller
	Storage      *sqlite.Storage
	Cache        *cache.Store
	Bus          *events.Bus
	Executor     *syncer.Executor
	Glossary     *glossary.Service
	GlossarySync *glossary.Syncer
	Assign       *assign.Service
	AssignSync   *assign.Syncer
	Page         *page.Service
}

// Close releases the handle's stores.
func (h *Handles) Close() error {
	if err := h.Cache.Close(); err != nil {
		return err
	}
	return h.Storage.Close()
}

// Registry owns the site store and builds per-site handles on demand. A
// handle is built once per site and reused.
type Registry struct {
	store   *Store
	dataDir string
	logger  *slog.Logger

	mu   sync.Mutex
	open map[string]*Handles
}

// NewRegistry creates a registry keeping per-site databases under dataDir.
func NewRegistry(store *Store, dataDir string, logger *slog.Logger) *Registry {
	return &Registry{
		store:   store,
		dataDir: dataDir,
		logger:  logger,
		open:    make(map[string]*Handles),
	}
}

// Sites lists the registered sites.
func (r *Registry) Sites() ([]*Site, error) {
	return r.store.List()
}

// Add registers a new site.
func (r *Registry) Add(name, serverURL, token string, userID int64) (*Site, error) {
	return r.store.Add(name, serverURL, token, userID)
}

// Open returns the handles for a registered site, building them on first
// use. An unknown id fails with ErrSiteNotFound before anything opens.
func (r *Registry) Open(ctx context.Context, siteID string) (*Handles, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.open[siteID]; ok {
		return h, nil
	}

	site, err := r.store.Get(siteID)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	store, err := sqlite.New(ctx, filepath.Join(r.dataDir, siteID+".db"), bus)
	if err != nil {
		return nil, fmt.Errorf("failed to open offline store: %w", err)
	}
	snapshots, err := cache.Open(filepath.Join(r.dataDir, siteID+".cache"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open snapshot cache: %w", err)
	}

	ws := wsclient.New(site.ServerURL, site.Token)
	logger := r.logger.With("site", site.ID)
	exec := syncer.New(site.ID, store, logger)

	glossarySvc := glossary.NewService(site.ID, ws, snapshots, store, exec, bus, logger)
	assignSvc := assign.NewService(site.ID, ws, snapshots, store, assign.NewRegistry(), exec, bus, logger)

	h := &Handles{
		Site:         site,
		WS:           ws,
		Storage:      store,
		Cache:        snapshots,
		Bus:          bus,
		Executor:     exec,
		Glossary:     glossarySvc,
		GlossarySync: glossary.NewSyncer(site.ID, glossarySvc, store, exec, bus, logger),
		Assign:       assignSvc,
		AssignSync:   assign.NewSyncer(site.ID, assignSvc, store, exec, bus, logger),
		Page:         page.NewService(site.ID, ws, snapshots, logger),
	}
	r.open[siteID] = h
	return h, nil
}

// Remove unregisters a site and closes its open handle.
func (r *Registry) Remove(siteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.open[siteID]; ok {
		delete(r.open, siteID)
		if err := h.Close(); err != nil {
			return err
		}
	}
	return r.store.Delete(siteID)
}

// Close closes every open handle.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for id, h := range r.open {
		delete(r.open, id)
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
