// Package assign implements the assignment activity: the remote gateway with
// snapshot caching, the submission plugin registry, the offline submission
// and grade queues, and their reconciliation.
package assign

import (
	"context"
	"errors"
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

// Component identifies assignment sync units in locks and sync-time records.
const Component = "assign"

// ErrAssignmentNotFound is returned when an assignment id is not visible in
// the queried course.
var ErrAssignmentNotFound = errors.New("assignment not found")

// Remote function names
const (
	wsGetAssignments      = "assign_get_assignments"
	wsGetSubmissionStatus = "assign_get_submission_status"
	wsSaveSubmission      = "assign_save_submission"
	wsSubmitForGrading    = "assign_submit_for_grading"
	wsSaveGrade           = "assign_save_grade"
	wsViewAssignment      = "assign_view_assign"
)

// Service is the assignment remote gateway for one site.
type Service struct {
	siteID  string
	ws      wsclient.Caller
	cache   *cache.Store
	offline storage.AssignOfflineStorage
	plugins *Registry
	exec    *syncer.Executor
	bus     *events.Bus
	logger  *slog.Logger
}

// NewService creates the assignment gateway for one site.
func NewService(siteID string, ws wsclient.Caller, snapshots *cache.Store, offline storage.AssignOfflineStorage, plugins *Registry, exec *syncer.Executor, bus *events.Bus, logger *slog.Logger) *Service {
	return &Service{
		siteID:  siteID,
		ws:      ws,
		cache:   snapshots,
		offline: offline,
		plugins: plugins,
		exec:    exec,
		bus:     bus,
		logger:  logger,
	}
}

func assignKey(assignID int64, parts ...string) string {
	all := append([]string{"assign", strconv.FormatInt(assignID, 10)}, parts...)
	return cache.Key(all...)
}

func statusKey(assignID, userID, groupID int64) string {
	return assignKey(assignID, "status",
		strconv.FormatInt(userID, 10), strconv.FormatInt(groupID, 10))
}

// GetAssignments returns the assignments visible in the given courses.
func (s *Service) GetAssignments(ctx context.Context, courseIDs []int64, opts cache.ReadOptions) ([]api.Assignment, error) {
	ids := make([]string, len(courseIDs))
	for i, id := range courseIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	key := cache.Key("assign", "courses", strings.Join(ids, ","))

	resp, err := cache.Fetch(ctx, s.cache, s.siteID, key, opts,
		func(ctx context.Context) (api.GetAssignmentsResponse, error) {
			var r api.GetAssignmentsResponse
			err := s.ws.Call(ctx, wsGetAssignments, api.GetAssignmentsRequest{CourseIDs: courseIDs}, &r)
			return r, err
		})
	if err != nil {
		return nil, err
	}
	return resp.Assignments, nil
}

// GetAssignment returns one assignment by id, scanning the cached course
// listing before giving up.
func (s *Service) GetAssignment(ctx context.Context, courseID, assignID int64, opts cache.ReadOptions) (*api.Assignment, error) {
	assignments, err := s.GetAssignments(ctx, []int64{courseID}, opts)
	if err != nil {
		return nil, err
	}
	for i := range assignments {
		if assignments[i].ID == assignID {
			return &assignments[i], nil
		}
	}
	return nil, ErrAssignmentNotFound
}

// GetSubmissionStatus returns the submission state of one user, including
// the last attempt and any feedback.
func (s *Service) GetSubmissionStatus(ctx context.Context, assignID, userID, groupID int64, opts cache.ReadOptions) (*api.GetSubmissionStatusResponse, error) {
	resp, err := cache.Fetch(ctx, s.cache, s.siteID, statusKey(assignID, userID, groupID), opts,
		func(ctx context.Context) (api.GetSubmissionStatusResponse, error) {
			var r api.GetSubmissionStatusResponse
			err := s.ws.Call(ctx, wsGetSubmissionStatus, api.GetSubmissionStatusRequest{
				AssignmentID: assignID,
				UserID:       userID,
				GroupID:      groupID,
			}, &r)
			return r, err
		})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// InvalidateStatuses drops every cached submission status of the
// assignment. A write for one user can move team and grading state too.
func (s *Service) InvalidateStatuses(assignID int64) error {
	return s.cache.InvalidatePrefix(s.siteID, assignKey(assignID, "status")+":")
}

// SaveSubmission stores draft plugin data online and invalidates cached
// statuses of the assignment.
func (s *Service) SaveSubmission(ctx context.Context, req api.SaveSubmissionRequest, userID int64) error {
	var resp api.SaveSubmissionResponse
	if err := s.ws.Call(ctx, wsSaveSubmission, req, &resp); err != nil {
		return err
	}

	if err := s.InvalidateStatuses(req.AssignmentID); err != nil {
		s.logger.Warn("failed to invalidate submission statuses", "assign", req.AssignmentID, "error", err)
	}

	s.bus.Publish(events.Event{
		Name:   events.SubmissionUpdated,
		SiteID: s.siteID,
		Payload: events.SubmissionPayload{
			AssignID: req.AssignmentID,
			UserID:   userID,
		},
	})
	return nil
}

// SubmitForGrading finalizes the caller's current attempt online.
func (s *Service) SubmitForGrading(ctx context.Context, assignID, userID int64, acceptStatement bool) error {
	var resp api.SubmitForGradingResponse
	err := s.ws.Call(ctx, wsSubmitForGrading, api.SubmitForGradingRequest{
		AssignmentID:    assignID,
		AcceptStatement: acceptStatement,
	}, &resp)
	if err != nil {
		return err
	}

	if err := s.InvalidateStatuses(assignID); err != nil {
		s.logger.Warn("failed to invalidate submission statuses", "assign", assignID, "error", err)
	}

	s.bus.Publish(events.Event{
		Name:   events.SubmissionUpdated,
		SiteID: s.siteID,
		Payload: events.SubmissionPayload{
			AssignID: assignID,
			UserID:   userID,
		},
	})
	return nil
}

// SaveGrade records a grading decision online.
func (s *Service) SaveGrade(ctx context.Context, req api.SaveGradeRequest) error {
	var resp api.SaveGradeResponse
	if err := s.ws.Call(ctx, wsSaveGrade, req, &resp); err != nil {
		return err
	}

	if err := s.InvalidateStatuses(req.AssignmentID); err != nil {
		s.logger.Warn("failed to invalidate submission statuses", "assign", req.AssignmentID, "error", err)
	}

	s.bus.Publish(events.Event{
		Name:   events.GradeUpdated,
		SiteID: s.siteID,
		Payload: events.SubmissionPayload{
			AssignID: req.AssignmentID,
			UserID:   req.UserID,
		},
	})
	return nil
}

// ViewAssignment logs that the assignment was opened.
func (s *Service) ViewAssignment(ctx context.Context, assignID int64) error {
	var resp api.ViewResponse
	return s.ws.Call(ctx, wsViewAssignment, api.ViewAssignmentRequest{AssignmentID: assignID}, &resp)
}

// PendingCount reports how many submissions and grades are waiting to sync
// for the assignment, for UI badges.
func (s *Service) PendingCount(ctx context.Context, assignID int64) (int, error) {
	subs, err := s.offline.GetAssignSubmissions(ctx, s.siteID, assignID)
	if err != nil {
		return 0, err
	}
	n := len(subs)

	grades, err := s.offline.GetAllGrades(ctx, s.siteID)
	if err != nil {
		return 0, err
	}
	for _, g := range grades {
		if g.AssignID == assignID {
			n++
		}
	}
	return n, nil
}
