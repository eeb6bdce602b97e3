package assign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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

// Syncer reconciles pending offline submissions and grades against the
// server.
type Syncer struct {
	siteID  string
	service *Service
	offline storage.AssignOfflineStorage
	exec    *syncer.Executor
	bus     *events.Bus
	logger  *slog.Logger
}

// NewSyncer creates the assignment syncer for one site.
func NewSyncer(siteID string, service *Service, offline storage.AssignOfflineStorage, exec *syncer.Executor, bus *events.Bus, logger *slog.Logger) *Syncer {
	return &Syncer{
		siteID:  siteID,
		service: service,
		offline: offline,
		exec:    exec,
		bus:     bus,
		logger:  logger,
	}
}

// Sync reconciles one (assignment, user) unit now.
func (s *Syncer) Sync(ctx context.Context, assignID, userID int64) (*syncer.Result, error) {
	return s.run(ctx, assignID, userID, 0, events.ManuallySynced)
}

// AutoSync reconciles one unit unless it synced within AutoSyncInterval.
func (s *Syncer) AutoSync(ctx context.Context, assignID, userID int64) (*syncer.Result, error) {
	return s.run(ctx, assignID, userID, AutoSyncInterval, events.AutoSynced)
}

func (s *Syncer) run(ctx context.Context, assignID, userID int64, minInterval time.Duration, eventName string) (*syncer.Result, error) {
	unitID := syncer.UnitID(assignID, userID)
	result, err := s.exec.RunIfNeeded(ctx, Component, unitID, minInterval,
		func(ctx context.Context) (*syncer.Result, error) {
			return s.performSync(ctx, assignID, userID)
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

func (s *Syncer) performSync(ctx context.Context, assignID, userID int64) (*syncer.Result, error) {
	result := &syncer.Result{}

	pendingSub, err := s.offline.GetSubmission(ctx, s.siteID, assignID, userID)
	if err != nil && !errors.Is(err, storage.ErrSubmissionNotFound) {
		return nil, fmt.Errorf("failed to load pending submission: %w", err)
	}
	pendingGrade, err := s.offline.GetGrade(ctx, s.siteID, assignID, userID)
	if err != nil && !errors.Is(err, storage.ErrGradeNotFound) {
		return nil, fmt.Errorf("failed to load pending grade: %w", err)
	}
	if pendingSub == nil && pendingGrade == nil {
		return result, nil
	}

	// Supersede checks never trust a stale cache
	status, err := s.service.GetSubmissionStatus(ctx, assignID, userID, 0, cache.ReadOptions{Mode: cache.ForceNetwork})
	if err != nil {
		return nil, err
	}

	if pendingSub != nil {
		if err := s.syncSubmission(ctx, pendingSub, status, result); err != nil {
			return nil, err
		}
	}
	if pendingGrade != nil {
		if err := s.syncGrade(ctx, pendingGrade, status, result); err != nil {
			return nil, err
		}
	}

	if result.Updated {
		// Warm the status so the UI refresh reads current state
		if _, err := s.service.GetSubmissionStatus(ctx, assignID, userID, 0, cache.ReadOptions{Mode: cache.ForceNetwork}); err != nil {
			s.logger.Debug("failed to refresh submission status after sync", "assign", assignID, "error", err)
		}
	}

	return result, nil
}

// syncSubmission applies one pending submission draft. The server copy wins
// when it moved past the draft's baseline.
func (s *Syncer) syncSubmission(ctx context.Context, sub *storage.OfflineSubmission, status *api.GetSubmissionStatusResponse, result *syncer.Result) error {
	if remoteTimeModified(status) > sub.BaselineTimeModified {
		result.Warnings = append(result.Warnings,
			"submission discarded, it was modified on the server after your draft")
		return s.offline.DeleteSubmission(ctx, s.siteID, sub.AssignID, sub.UserID)
	}

	err := s.service.SaveSubmission(ctx, api.SaveSubmissionRequest{
		AssignmentID: sub.AssignID,
		PluginData:   sub.PluginData,
	}, sub.UserID)
	if err == nil && sub.Submitted {
		err = s.service.SubmitForGrading(ctx, sub.AssignID, sub.UserID, true)
	}
	if err != nil {
		var remoteErr *wsclient.RemoteServiceError
		if errors.As(err, &remoteErr) {
			// Terminal rejection: never retried, never retained
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("submission rejected: %s", remoteErr.Message))
			return s.offline.DeleteSubmission(ctx, s.siteID, sub.AssignID, sub.UserID)
		}
		// Network failure aborts the unit; the draft stays queued
		return err
	}

	if err := s.offline.DeleteSubmission(ctx, s.siteID, sub.AssignID, sub.UserID); err != nil {
		return err
	}
	result.Updated = true
	return nil
}

// syncGrade applies one pending grading decision. A gradebook entry newer
// than the queued grade silently replaces it: graders expect the latest
// recorded grade to stand, and the grading form reloads server state anyway.
func (s *Syncer) syncGrade(ctx context.Context, grade *storage.OfflineGrade, status *api.GetSubmissionStatusResponse, result *syncer.Result) error {
	if status.Feedback != nil && status.Feedback.GradedAt > grade.BaselineGradedAt {
		return s.offline.DeleteGrade(ctx, s.siteID, grade.AssignID, grade.UserID)
	}

	err := s.service.SaveGrade(ctx, api.SaveGradeRequest{
		AssignmentID:  grade.AssignID,
		UserID:        grade.UserID,
		Grade:         grade.Grade,
		AttemptNumber: grade.AttemptNumber,
		AddAttempt:    grade.AddAttempt,
		WorkflowState: grade.WorkflowState,
		ApplyToAll:    grade.ApplyToAll,
		Outcomes:      grade.Outcomes,
	})
	if err != nil {
		var remoteErr *wsclient.RemoteServiceError
		if errors.As(err, &remoteErr) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("grade rejected: %s", remoteErr.Message))
			return s.offline.DeleteGrade(ctx, s.siteID, grade.AssignID, grade.UserID)
		}
		return err
	}

	if err := s.offline.DeleteGrade(ctx, s.siteID, grade.AssignID, grade.UserID); err != nil {
		return err
	}
	result.Updated = true
	return nil
}

func remoteTimeModified(status *api.GetSubmissionStatusResponse) int64 {
	if status.LastAttempt == nil || status.LastAttempt.Submission == nil {
		return 0
	}
	return status.LastAttempt.Submission.TimeModified
}

// UnitResult is the outcome of one unit inside a whole-site sweep.
type UnitResult struct {
	AssignID int64
	UserID   int64
	Result   *syncer.Result
	Err      error
}

// SyncAll reconciles every unit with a pending submission or grade. Units
// run concurrently and independently; one unit's failure does not block
// others. A forced sweep ignores the auto-sync interval and reports each
// unit as manually synced.
func (s *Syncer) SyncAll(ctx context.Context, force bool) ([]UnitResult, error) {
	type unit struct {
		assignID int64
		userID   int64
	}
	seen := make(map[unit]bool)
	var units []unit

	subs, err := s.offline.GetAllSubmissions(ctx, s.siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate pending submissions: %w", err)
	}
	for _, sub := range subs {
		u := unit{assignID: sub.AssignID, userID: sub.UserID}
		if !seen[u] {
			seen[u] = true
			units = append(units, u)
		}
	}

	grades, err := s.offline.GetAllGrades(ctx, s.siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate pending grades: %w", err)
	}
	for _, grade := range grades {
		u := unit{assignID: grade.AssignID, userID: grade.UserID}
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
				res, err = s.Sync(ctx, u.assignID, u.userID)
			} else {
				res, err = s.AutoSync(ctx, u.assignID, u.userID)
			}
			results[i] = UnitResult{AssignID: u.assignID, UserID: u.userID, Result: res, Err: err}
		}(i, u)
	}
	wg.Wait()

	return results, nil
}
