// Package syncer provides the shared reconciliation machinery: per-unit
// locking between edits and syncs, in-flight deduplication so concurrent
// callers share one run, and the time gate for periodic auto-sync. A unit is
// the (activity, user) pair each activity syncer reconciles as one scope.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/edupath/coursesync/internal/storage"
)

// SyncBlockedError reports that another operation (an ongoing edit or
// another component's sync) holds the unit's lock. Not a failure: the caller
// should try again later.
type SyncBlockedError struct {
	Component string
	UnitID    string
}

func (e *SyncBlockedError) Error() string {
	return fmt.Sprintf("sync of %s unit %s is blocked by another operation", e.Component, e.UnitID)
}

// IsBlocked reports whether err is (or wraps) a SyncBlockedError.
func IsBlocked(err error) bool {
	var be *SyncBlockedError
	return errors.As(err, &be)
}

// Result is the outcome of one reconciliation run for one unit.
// Transient: returned per run, never persisted.
type Result struct {
	Updated  bool
	Warnings []string
}

// UnitID builds the canonical unit identifier for an (activity, user) pair.
func UnitID(activityID, userID int64) string {
	return fmt.Sprintf("%d#%d", activityID, userID)
}

type run struct {
	done   chan struct{}
	result *Result
	err    error
}

// Executor coordinates reconciliation runs for one site.
type Executor struct {
	mu        sync.Mutex
	inflight  map[string]*run
	locks     map[string]bool
	siteID    string
	syncTimes storage.SyncTimeStorage
	logger    *slog.Logger
}

// New creates an executor scoped to one site.
func New(siteID string, syncTimes storage.SyncTimeStorage, logger *slog.Logger) *Executor {
	return &Executor{
		inflight:  make(map[string]*run),
		locks:     make(map[string]bool),
		siteID:    siteID,
		syncTimes: syncTimes,
		logger:    logger,
	}
}

func key(component, unitID string) string {
	return component + ":" + unitID
}

// Lock reserves a unit for an exclusive operation (an edit about to replace
// the unit's pending state). Fails with SyncBlockedError when the unit is
// locked or a sync for it is running.
func (e *Executor) Lock(component, unitID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	k := key(component, unitID)
	if e.locks[k] || e.inflight[k] != nil {
		return &SyncBlockedError{Component: component, UnitID: unitID}
	}
	e.locks[k] = true
	return nil
}

// Unlock releases a unit lock. Unlocking an unlocked unit is a no-op.
func (e *Executor) Unlock(component, unitID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.locks, key(component, unitID))
}

// Run executes fn as the unit's reconciliation run.
// A locked unit fails immediately with SyncBlockedError and no side effects.
// If a run is already in flight for the unit, the caller waits for it and
// receives the identical result; fn is not invoked a second time.
// On success the unit's last-sync time is stamped.
func (e *Executor) Run(ctx context.Context, component, unitID string, fn func(ctx context.Context) (*Result, error)) (*Result, error) {
	k := key(component, unitID)

	e.mu.Lock()
	if e.locks[k] {
		e.mu.Unlock()
		return nil, &SyncBlockedError{Component: component, UnitID: unitID}
	}
	if r, ok := e.inflight[k]; ok {
		e.mu.Unlock()
		e.logger.Debug("joining in-flight sync", "component", component, "unit", unitID)
		<-r.done
		return r.result, r.err
	}
	r := &run{done: make(chan struct{})}
	e.inflight[k] = r
	e.mu.Unlock()

	e.logger.Info("starting sync", "component", component, "unit", unitID)
	r.result, r.err = fn(ctx)

	e.mu.Lock()
	delete(e.inflight, k)
	e.mu.Unlock()
	close(r.done)

	if r.err != nil {
		e.logger.Warn("sync failed", "component", component, "unit", unitID, "error", r.err)
		return r.result, r.err
	}

	if err := e.syncTimes.SaveLastSync(ctx, e.siteID, component, unitID, time.Now()); err != nil {
		// The run itself succeeded; a failed stamp only weakens the
		// auto-sync gate.
		e.logger.Warn("failed to save last sync time", "component", component, "unit", unitID, "error", err)
	}

	e.logger.Info("sync finished", "component", component, "unit", unitID,
		"updated", r.result.Updated, "warnings", len(r.result.Warnings))
	return r.result, r.err
}

// RunIfNeeded behaves like Run but skips units synced within minInterval,
// returning an empty result. Manual sync passes 0 to force the run.
func (e *Executor) RunIfNeeded(ctx context.Context, component, unitID string, minInterval time.Duration, fn func(ctx context.Context) (*Result, error)) (*Result, error) {
	if minInterval > 0 {
		last, err := e.syncTimes.GetLastSync(ctx, e.siteID, component, unitID)
		if err != nil {
			return nil, fmt.Errorf("failed to read last sync time: %w", err)
		}
		if !last.IsZero() && time.Since(last) < minInterval {
			e.logger.Debug("skipping recently synced unit", "component", component, "unit", unitID)
			return &Result{}, nil
		}
	}
	return e.Run(ctx, component, unitID, fn)
}
