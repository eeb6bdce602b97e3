package assign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edupath/coursesync/internal/cache"
	"github.com/edupath/coursesync/internal/storage"
	"github.com/edupath/coursesync/internal/syncer"
	"github.com/edupath/coursesync/internal/wsclient"
	"github.com/edupath/coursesync/pkg/api"
)

// SubmissionDraft is the editable content of the submission form: the raw
// per-plugin draft values plus whether the student asked to submit for
// grading rather than keep a draft.
type SubmissionDraft struct {
	Data    map[string]string
	Plugins []api.SubmissionPlugin
	Submit  bool
}

// OfflineEditError rejects an offline save when the submission carries a
// plugin that cannot be drafted locally.
type OfflineEditError struct {
	PluginType string
}

func (e *OfflineEditError) Error() string {
	return fmt.Sprintf("plugin %q does not support offline editing", e.PluginType)
}

// SubmissionFormHandler drives the single-slot submission edit flow for one
// (assignment, user). Save reports whether the submission went online (true)
// or was staged in the offline queue (false).
type SubmissionFormHandler struct {
	service  *Service
	assign   *api.Assignment
	courseID int64
	userID   int64
}

// NewSubmissionFormHandler creates the edit flow for one user's submission.
func (s *Service) NewSubmissionFormHandler(assign *api.Assignment, courseID, userID int64) *SubmissionFormHandler {
	return &SubmissionFormHandler{service: s, assign: assign, courseID: courseID, userID: userID}
}

// LoadData returns the draft the form should show: the pending offline
// draft when one exists, else the last attempt known to the server.
func (h *SubmissionFormHandler) LoadData(ctx context.Context) (*SubmissionDraft, error) {
	status, err := h.service.GetSubmissionStatus(ctx, h.assign.ID, h.userID, 0, cache.ReadOptions{})
	if err != nil {
		return nil, err
	}

	draft := &SubmissionDraft{Data: map[string]string{}}
	if status.LastAttempt != nil && status.LastAttempt.Submission != nil {
		draft.Plugins = status.LastAttempt.Submission.Plugins
		for _, p := range draft.Plugins {
			for k, v := range p.Data {
				draft.Data[k] = v
			}
		}
	}

	pending, err := h.service.offline.GetSubmission(ctx, h.service.siteID, h.assign.ID, h.userID)
	switch {
	case err == nil:
		// The local draft is newer than anything on the server
		draft.Data = pending.PluginData
		draft.Submit = pending.Submitted
	case errors.Is(err, storage.ErrSubmissionNotFound):
	default:
		return nil, err
	}
	return draft, nil
}

// Save persists the draft: online when possible, staged offline when the
// server is unreachable and every plugin supports local drafts.
func (h *SubmissionFormHandler) Save(ctx context.Context, draft *SubmissionDraft) (bool, error) {
	pluginData := h.service.plugins.DraftData(draft.Plugins, draft.Data)
	if len(draft.Plugins) == 0 {
		// New first attempt: no plugin list from the server yet, send the
		// draft values as-is
		pluginData = draft.Data
	}

	err := h.service.SaveSubmission(ctx, api.SaveSubmissionRequest{
		AssignmentID: h.assign.ID,
		PluginData:   pluginData,
	}, h.userID)
	if err == nil {
		if !draft.Submit {
			return true, nil
		}
		submitErr := h.service.SubmitForGrading(ctx, h.assign.ID, h.userID, true)
		if submitErr == nil {
			return true, nil
		}
		if !wsclient.IsNetworkError(submitErr) {
			return false, submitErr
		}
		// The draft reached the server but the submit intent did not.
		// Queue it so sync completes the submit; the newest server copy
		// is the save that just succeeded, so the baseline is stamped
		// now rather than from the pre-save status.
		if stageErr := h.stage(ctx, pluginData, true, time.Now().Unix()); stageErr != nil {
			return false, stageErr
		}
		return false, nil
	}
	if !wsclient.IsNetworkError(err) {
		// Remote rejections surface to the user, never queued
		return false, err
	}

	for _, p := range draft.Plugins {
		handler := h.service.plugins.Handler(p.Type)
		if handler.EnabledForEdit() && !handler.CanEditOffline() {
			return false, &OfflineEditError{PluginType: p.Type}
		}
	}

	baseline := int64(0)
	status, statusErr := h.service.GetSubmissionStatus(ctx, h.assign.ID, h.userID, 0, cache.ReadOptions{Mode: cache.OnlyCache})
	if statusErr == nil && status.LastAttempt != nil && status.LastAttempt.Submission != nil {
		baseline = status.LastAttempt.Submission.TimeModified
	}
	if stageErr := h.stage(ctx, pluginData, draft.Submit, baseline); stageErr != nil {
		return false, stageErr
	}
	return false, nil
}

// stage queues the draft, holding the unit lock so an in-flight sync of the
// same unit cannot delete the queued row out from under the save.
func (h *SubmissionFormHandler) stage(ctx context.Context, pluginData map[string]string, submit bool, baseline int64) error {
	unitID := syncer.UnitID(h.assign.ID, h.userID)
	if err := h.service.exec.Lock(Component, unitID); err != nil {
		return err
	}
	defer h.service.exec.Unlock(Component, unitID)

	sub := &storage.OfflineSubmission{
		SiteID:               h.service.siteID,
		AssignID:             h.assign.ID,
		UserID:               h.userID,
		CourseID:             h.courseID,
		PluginData:           pluginData,
		BaselineTimeModified: baseline,
		TimeCreated:          time.Now().Unix(),
		Submitted:            submit,
	}
	if err := h.service.offline.SaveSubmission(ctx, sub); err != nil {
		return fmt.Errorf("failed to stage submission offline: %w", err)
	}
	return nil
}

// GradeDraft is the editable content of the grading form.
type GradeDraft struct {
	Grade         float64
	AttemptNumber int
	AddAttempt    bool
	WorkflowState string
	ApplyToAll    bool
	Outcomes      map[string]float64
}

// GradeFormHandler drives the grading flow for one (assignment, student).
type GradeFormHandler struct {
	service  *Service
	assign   *api.Assignment
	courseID int64
	userID   int64
}

// NewGradeFormHandler creates the grading flow for one student.
func (s *Service) NewGradeFormHandler(assign *api.Assignment, courseID, userID int64) *GradeFormHandler {
	return &GradeFormHandler{service: s, assign: assign, courseID: courseID, userID: userID}
}

// LoadData returns the grade the form should show: the pending offline
// grade when one exists, else the feedback known to the server.
func (h *GradeFormHandler) LoadData(ctx context.Context) (*GradeDraft, error) {
	pending, err := h.service.offline.GetGrade(ctx, h.service.siteID, h.assign.ID, h.userID)
	if err == nil {
		return &GradeDraft{
			Grade:         pending.Grade,
			AttemptNumber: pending.AttemptNumber,
			AddAttempt:    pending.AddAttempt,
			WorkflowState: pending.WorkflowState,
			ApplyToAll:    pending.ApplyToAll,
			Outcomes:      pending.Outcomes,
		}, nil
	}
	if !errors.Is(err, storage.ErrGradeNotFound) {
		return nil, err
	}

	status, err := h.service.GetSubmissionStatus(ctx, h.assign.ID, h.userID, 0, cache.ReadOptions{})
	if err != nil {
		return nil, err
	}
	draft := &GradeDraft{Outcomes: map[string]float64{}}
	if status.Feedback != nil && status.Feedback.Grade != nil {
		draft.Grade = status.Feedback.Grade.Grade
		draft.AttemptNumber = status.Feedback.Grade.AttemptNumber
	}
	return draft, nil
}

// Save records the grade: online when possible, staged offline when the
// server is unreachable.
func (h *GradeFormHandler) Save(ctx context.Context, draft *GradeDraft) (bool, error) {
	err := h.service.SaveGrade(ctx, api.SaveGradeRequest{
		AssignmentID:  h.assign.ID,
		UserID:        h.userID,
		Grade:         draft.Grade,
		AttemptNumber: draft.AttemptNumber,
		AddAttempt:    draft.AddAttempt,
		WorkflowState: draft.WorkflowState,
		ApplyToAll:    draft.ApplyToAll,
		Outcomes:      draft.Outcomes,
	})
	if err == nil {
		return true, nil
	}
	if !wsclient.IsNetworkError(err) {
		return false, err
	}

	baseline := int64(0)
	status, statusErr := h.service.GetSubmissionStatus(ctx, h.assign.ID, h.userID, 0, cache.ReadOptions{Mode: cache.OnlyCache})
	if statusErr == nil && status.Feedback != nil {
		baseline = status.Feedback.GradedAt
	}

	unitID := syncer.UnitID(h.assign.ID, h.userID)
	if lockErr := h.service.exec.Lock(Component, unitID); lockErr != nil {
		return false, lockErr
	}
	defer h.service.exec.Unlock(Component, unitID)

	grade := &storage.OfflineGrade{
		SiteID:           h.service.siteID,
		AssignID:         h.assign.ID,
		UserID:           h.userID,
		CourseID:         h.courseID,
		Grade:            draft.Grade,
		AttemptNumber:    draft.AttemptNumber,
		AddAttempt:       draft.AddAttempt,
		WorkflowState:    draft.WorkflowState,
		ApplyToAll:       draft.ApplyToAll,
		Outcomes:         draft.Outcomes,
		BaselineGradedAt: baseline,
		TimeCreated:      time.Now().Unix(),
	}
	if saveErr := h.service.offline.SaveGrade(ctx, grade); saveErr != nil {
		return false, fmt.Errorf("failed to stage grade offline: %w", saveErr)
	}
	return false, nil
}
