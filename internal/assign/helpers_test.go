package assign

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

type slot struct {
	assignID int64
	userID   int64
}

type remoteState struct {
	submission *api.Submission
	feedback   *api.Feedback
	submitted  bool
}

type harness struct {
	service   *Service
	syncer    *Syncer
	store     *sqlite.Storage
	snapshots *cache.Store
	ws        *wsclient.CallerMock
	bus       *events.Bus
	exec      *syncer.Executor

	// fake remote state served by the default CallFunc; writes land on
	// the slot of the last status read so save requests, which do not
	// carry a user id, find their target
	mu          sync.Mutex
	slots       map[slot]*remoteState
	assignments []api.Assignment
	activeUser  int64
	offline     bool
	saveErr     error
	submitErr   error
	gradeErr    error
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
		store:     store,
		snapshots: snapshots,
		bus:       bus,
		ws:        &wsclient.CallerMock{},
		slots:     make(map[slot]*remoteState),
	}
	h.ws.CallFunc = h.handleCall
	h.exec = syncer.New("site-1", store, logger)
	h.service = NewService("site-1", h.ws, snapshots, store, NewRegistry(), h.exec, bus, logger)
	h.syncer = NewSyncer("site-1", h.service, store, h.exec, bus, logger)
	return h
}

func (h *harness) setOffline(offline bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offline = offline
}

func (h *harness) setSlot(assignID, userID int64, state *remoteState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.slots[slot{assignID, userID}] = state
}

func (h *harness) slotState(assignID, userID int64) *remoteState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slots[slot{assignID, userID}]
}

func (h *harness) callCount(wsfunction string) int {
	n := 0
	for _, call := range h.ws.CallCalls() {
		if call.Wsfunction == wsfunction {
			n++
		}
	}
	return n
}

func (h *harness) handleCall(ctx context.Context, wsfunction string, params, result any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.offline {
		return &wsclient.NetworkError{Op: wsfunction, Err: context.DeadlineExceeded}
	}

	switch wsfunction {
	case wsGetAssignments:
		req := params.(api.GetAssignmentsRequest)
		resp := result.(*api.GetAssignmentsResponse)
		for _, a := range h.assignments {
			for _, courseID := range req.CourseIDs {
				if a.CourseID == courseID {
					resp.Assignments = append(resp.Assignments, a)
				}
			}
		}
		return nil

	case wsGetSubmissionStatus:
		req := params.(api.GetSubmissionStatusRequest)
		resp := result.(*api.GetSubmissionStatusResponse)
		h.activeUser = req.UserID
		state := h.slots[slot{req.AssignmentID, req.UserID}]
		if state == nil {
			resp.LastAttempt = &api.LastAttempt{SubmissionsOpen: true, CanEdit: true, CanSubmit: true}
			return nil
		}
		resp.LastAttempt = &api.LastAttempt{
			Submission:      state.submission,
			SubmissionsOpen: !state.submitted,
			CanEdit:         !state.submitted,
			CanSubmit:       !state.submitted,
		}
		resp.Feedback = state.feedback
		return nil

	case wsSaveSubmission:
		if h.saveErr != nil {
			return h.saveErr
		}
		req := params.(api.SaveSubmissionRequest)
		key := slot{req.AssignmentID, h.activeUser}
		state := h.slots[key]
		if state == nil {
			state = &remoteState{}
			h.slots[key] = state
		}
		plugins := []api.SubmissionPlugin{{Type: "onlinetext", Name: "Online text", Data: req.PluginData}}
		if state.submission == nil {
			state.submission = &api.Submission{ID: 900 + req.AssignmentID, UserID: h.activeUser, Status: "draft"}
		}
		state.submission.Plugins = plugins
		state.submission.TimeModified++
		return nil

	case wsSubmitForGrading:
		if h.submitErr != nil {
			return h.submitErr
		}
		req := params.(api.SubmitForGradingRequest)
		state := h.slots[slot{req.AssignmentID, h.activeUser}]
		if state != nil {
			state.submitted = true
			state.submission.Status = "submitted"
		}
		return nil

	case wsSaveGrade:
		if h.gradeErr != nil {
			return h.gradeErr
		}
		req := params.(api.SaveGradeRequest)
		key := slot{req.AssignmentID, req.UserID}
		state := h.slots[key]
		if state == nil {
			state = &remoteState{}
			h.slots[key] = state
		}
		state.feedback = &api.Feedback{
			Grade:    &api.Grade{UserID: req.UserID, Grade: req.Grade, AttemptNumber: req.AttemptNumber},
			GradedAt: 5000,
		}
		return nil

	case wsViewAssignment:
		resp := result.(*api.ViewResponse)
		resp.Status = true
		return nil

	default:
		return &wsclient.RemoteServiceError{Function: wsfunction, Code: "invalidfunction", Message: "unknown function"}
	}
}

func testAssignment() *api.Assignment {
	return &api.Assignment{
		ID:             9,
		CourseModuleID: 90,
		CourseID:       2,
		Name:           "Essay draft",
		DueDate:        1800000000,
		TimeModified:   1000,
	}
}
