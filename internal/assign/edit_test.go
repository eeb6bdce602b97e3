package assign

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupath/coursesync/internal/cache"
	"github.com/edupath/coursesync/internal/storage"
	"github.com/edupath/coursesync/internal/syncer"
	"github.com/edupath/coursesync/internal/wsclient"
	"github.com/edupath/coursesync/pkg/api"
)

func TestSubmissionForm_SaveOnline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	handler := h.service.NewSubmissionFormHandler(testAssignment(), 2, 7)
	draft, err := handler.LoadData(ctx)
	require.NoError(t, err)
	assert.Empty(t, draft.Data)

	draft.Data["onlinetext"] = "first draft"
	sentOnline, err := handler.Save(ctx, draft)
	require.NoError(t, err)
	assert.True(t, sentOnline)

	state := h.slotState(9, 7)
	require.NotNil(t, state)
	assert.Equal(t, "first draft", state.submission.Plugins[0].Data["onlinetext"])
	assert.False(t, state.submitted)
}

func TestSubmissionForm_SaveAndSubmit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	handler := h.service.NewSubmissionFormHandler(testAssignment(), 2, 7)
	draft, err := handler.LoadData(ctx)
	require.NoError(t, err)

	draft.Data["onlinetext"] = "final"
	draft.Submit = true
	sentOnline, err := handler.Save(ctx, draft)
	require.NoError(t, err)
	assert.True(t, sentOnline)
	assert.True(t, h.slotState(9, 7).submitted)
}

func TestSubmissionForm_LoadPrefersPendingDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.setSlot(9, 7, &remoteState{
		submission: &api.Submission{
			ID: 901, UserID: 7, Status: "draft", TimeModified: 2000,
			Plugins: []api.SubmissionPlugin{{Type: "onlinetext", Data: map[string]string{"onlinetext": "server copy"}}},
		},
	})
	stageSubmission(t, h, 7, "local copy", false)

	handler := h.service.NewSubmissionFormHandler(testAssignment(), 2, 7)
	draft, err := handler.LoadData(ctx)
	require.NoError(t, err)
	assert.Equal(t, "local copy", draft.Data["onlinetext_editor[text]"])
}

func TestSubmissionForm_SaveInvalidatesStatusCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	handler := h.service.NewSubmissionFormHandler(testAssignment(), 2, 7)
	draft, err := handler.LoadData(ctx)
	require.NoError(t, err)
	statusCalls := h.callCount(wsGetSubmissionStatus)

	draft.Data["onlinetext"] = "first draft"
	_, err = handler.Save(ctx, draft)
	require.NoError(t, err)

	// The cached status predates the save and must not be served again
	status, err := h.service.GetSubmissionStatus(ctx, 9, 7, 0, cache.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, statusCalls+1, h.callCount(wsGetSubmissionStatus))
	assert.Equal(t, "first draft", status.LastAttempt.Submission.Plugins[0].Data["onlinetext"])
}

func TestSubmissionForm_RemoteRejectionSurfaces(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.saveErr = &wsclient.RemoteServiceError{Function: wsSaveSubmission, Code: "submissionlocked", Message: "submission is locked"}

	handler := h.service.NewSubmissionFormHandler(testAssignment(), 2, 7)
	draft, err := handler.LoadData(ctx)
	require.NoError(t, err)

	draft.Data["onlinetext"] = "text"
	sentOnline, err := handler.Save(ctx, draft)
	assert.False(t, sentOnline)
	assert.True(t, wsclient.IsRemoteServiceError(err))

	subs, storeErr := h.store.GetAllSubmissions(ctx, "site-1")
	require.NoError(t, storeErr)
	assert.Empty(t, subs, "a rejected save must not be queued")
}

func TestSubmissionForm_OfflineBlockedByFilePlugin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.setSlot(9, 7, &remoteState{
		submission: &api.Submission{
			ID: 901, UserID: 7, Status: "draft", TimeModified: 2000,
			Plugins: []api.SubmissionPlugin{
				{Type: "onlinetext", Data: map[string]string{"onlinetext": "text"}},
				{Type: "file"},
			},
		},
	})

	handler := h.service.NewSubmissionFormHandler(testAssignment(), 2, 7)
	draft, err := handler.LoadData(ctx)
	require.NoError(t, err)

	h.setOffline(true)
	sentOnline, err := handler.Save(ctx, draft)
	assert.False(t, sentOnline)

	var offlineErr *OfflineEditError
	require.ErrorAs(t, err, &offlineErr)
	assert.Equal(t, "file", offlineErr.PluginType)

	subs, storeErr := h.store.GetAllSubmissions(ctx, "site-1")
	require.NoError(t, storeErr)
	assert.Empty(t, subs)
}

func TestGradeForm_SaveOnline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	handler := h.service.NewGradeFormHandler(testAssignment(), 2, 7)
	sentOnline, err := handler.Save(ctx, &GradeDraft{Grade: 7.5, WorkflowState: "graded"})
	require.NoError(t, err)
	assert.True(t, sentOnline)

	state := h.slotState(9, 7)
	require.NotNil(t, state)
	assert.InDelta(t, 7.5, state.feedback.Grade.Grade, 0.001)
}

func TestGradeForm_LoadPrefersPendingGrade(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.setSlot(9, 7, &remoteState{feedback: &api.Feedback{
		Grade: &api.Grade{UserID: 7, Grade: 4}, GradedAt: 2000,
	}})

	handler := h.service.NewGradeFormHandler(testAssignment(), 2, 7)
	h.setOffline(true)
	_, err := handler.Save(ctx, &GradeDraft{Grade: 9, WorkflowState: "graded"})
	require.NoError(t, err)
	h.setOffline(false)

	draft, err := handler.LoadData(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 9, draft.Grade, 0.001, "the pending grade shadows the gradebook")
	assert.Equal(t, "graded", draft.WorkflowState)
}

func TestSubmissionForm_SaveBlockedDuringSync(t *testing.T) {
	h := newHarness(t)
	h.setOffline(true)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.exec.Run(ctx, Component, syncer.UnitID(9, 7), func(context.Context) (*syncer.Result, error) {
			close(started)
			<-release
			return &syncer.Result{}, nil
		})
	}()
	<-started

	// While the unit's sync is in flight the save must be refused, not
	// staged: the syncer deletes the unit's queue row after sending and
	// would destroy this draft unsent.
	handler := h.service.NewSubmissionFormHandler(testAssignment(), 2, 7)
	draft := &SubmissionDraft{Data: map[string]string{"onlinetext": "late edit"}}
	_, err := handler.Save(ctx, draft)
	var blocked *syncer.SyncBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "9#7", blocked.UnitID)

	_, err = h.store.GetSubmission(ctx, "site-1", 9, 7)
	assert.ErrorIs(t, err, storage.ErrSubmissionNotFound, "a refused save must not reach the queue")

	close(release)
	<-done

	// With the sync finished the same save goes through
	sentOnline, err := handler.Save(ctx, draft)
	require.NoError(t, err)
	assert.False(t, sentOnline)
}

func TestSubmissionForm_QueuesSubmitWhenGradingCallFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.submitErr = &wsclient.NetworkError{Op: wsSubmitForGrading, Err: context.DeadlineExceeded}

	handler := h.service.NewSubmissionFormHandler(testAssignment(), 2, 7)
	draft, err := handler.LoadData(ctx)
	require.NoError(t, err)
	draft.Data["onlinetext"] = "final"
	draft.Submit = true

	sentOnline, err := handler.Save(ctx, draft)
	require.NoError(t, err)
	assert.False(t, sentOnline)

	// The draft itself reached the server; only the submit is pending
	state := h.slotState(9, 7)
	require.NotNil(t, state)
	assert.Equal(t, "final", state.submission.Plugins[0].Data["onlinetext"])
	assert.False(t, state.submitted)

	sub, err := h.store.GetSubmission(ctx, "site-1", 9, 7)
	require.NoError(t, err)
	assert.True(t, sub.Submitted)

	// Once the connection is back, sync completes the submit
	h.submitErr = nil
	result, err := h.syncer.Sync(ctx, 9, 7)
	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.Empty(t, result.Warnings)
	assert.True(t, h.slotState(9, 7).submitted)

	_, err = h.store.GetSubmission(ctx, "site-1", 9, 7)
	assert.ErrorIs(t, err, storage.ErrSubmissionNotFound)
}
