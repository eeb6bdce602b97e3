package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/edupath/coursesync/internal/events"
	"github.com/edupath/coursesync/internal/storage"
)

// SaveSubmission upserts the pending submission for (assignID, userID).
// One slot per user per assignment; the last local edit wins.
func (s *Storage) SaveSubmission(ctx context.Context, sub *storage.OfflineSubmission) error {
	pluginData, err := json.Marshal(sub.PluginData)
	if err != nil {
		return fmt.Errorf("failed to marshal plugin data: %w", err)
	}

	existing, err := s.GetSubmission(ctx, sub.SiteID, sub.AssignID, sub.UserID)
	if err != nil && !errors.Is(err, storage.ErrSubmissionNotFound) {
		return fmt.Errorf("failed to check existing submission: %w", err)
	}

	eventName := events.SubmissionAdded
	if existing != nil {
		eventName = events.SubmissionUpdated
	}

	query := `
		INSERT INTO offline_submissions (
			site_id, assign_id, user_id, course_id, plugin_data,
			baseline_time_modified, time_created, submitted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (site_id, assign_id, user_id) DO UPDATE SET
			course_id = excluded.course_id,
			plugin_data = excluded.plugin_data,
			baseline_time_modified = excluded.baseline_time_modified,
			time_created = excluded.time_created,
			submitted = excluded.submitted
	`

	_, err = s.db.ExecContext(ctx, query,
		sub.SiteID,
		sub.AssignID,
		sub.UserID,
		sub.CourseID,
		string(pluginData),
		sub.BaselineTimeModified,
		sub.TimeCreated,
		boolToInt(sub.Submitted),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pending submission: %w", err)
	}

	s.publish(events.Event{
		Name:   eventName,
		SiteID: sub.SiteID,
		Payload: events.SubmissionPayload{
			AssignID: sub.AssignID,
			UserID:   sub.UserID,
			Offline:  true,
		},
	})
	return nil
}

// GetSubmission retrieves the pending submission for one slot.
// Returns ErrSubmissionNotFound when nothing is pending.
func (s *Storage) GetSubmission(ctx context.Context, siteID string, assignID, userID int64) (*storage.OfflineSubmission, error) {
	query := `
		SELECT site_id, assign_id, user_id, course_id, plugin_data,
		       baseline_time_modified, time_created, submitted
		FROM offline_submissions
		WHERE site_id = ? AND assign_id = ? AND user_id = ?
	`

	row := s.db.QueryRowContext(ctx, query, siteID, assignID, userID)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get pending submission: %w", err)
	}

	return sub, nil
}

// GetAssignSubmissions returns the pending submissions of one assignment.
func (s *Storage) GetAssignSubmissions(ctx context.Context, siteID string, assignID int64) ([]*storage.OfflineSubmission, error) {
	query := `
		SELECT site_id, assign_id, user_id, course_id, plugin_data,
		       baseline_time_modified, time_created, submitted
		FROM offline_submissions
		WHERE site_id = ? AND assign_id = ?
		ORDER BY user_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, siteID, assignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending submissions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanSubmissions(rows)
}

// GetAllSubmissions returns every pending submission for the site.
func (s *Storage) GetAllSubmissions(ctx context.Context, siteID string) ([]*storage.OfflineSubmission, error) {
	query := `
		SELECT site_id, assign_id, user_id, course_id, plugin_data,
		       baseline_time_modified, time_created, submitted
		FROM offline_submissions
		WHERE site_id = ?
		ORDER BY assign_id ASC, user_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending submissions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanSubmissions(rows)
}

// DeleteSubmission removes a pending submission. Idempotent.
func (s *Storage) DeleteSubmission(ctx context.Context, siteID string, assignID, userID int64) error {
	query := `
		DELETE FROM offline_submissions
		WHERE site_id = ? AND assign_id = ? AND user_id = ?
	`

	result, err := s.db.ExecContext(ctx, query, siteID, assignID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete pending submission: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		s.publish(events.Event{
			Name:   events.SubmissionDeleted,
			SiteID: siteID,
			Payload: events.SubmissionPayload{
				AssignID: assignID,
				UserID:   userID,
				Offline:  true,
			},
		})
	}

	return nil
}

// SaveGrade upserts the pending grade for (assignID, userID).
func (s *Storage) SaveGrade(ctx context.Context, grade *storage.OfflineGrade) error {
	outcomes, err := json.Marshal(grade.Outcomes)
	if err != nil {
		return fmt.Errorf("failed to marshal outcomes: %w", err)
	}

	existing, err := s.GetGrade(ctx, grade.SiteID, grade.AssignID, grade.UserID)
	if err != nil && !errors.Is(err, storage.ErrGradeNotFound) {
		return fmt.Errorf("failed to check existing grade: %w", err)
	}

	eventName := events.GradeAdded
	if existing != nil {
		eventName = events.GradeUpdated
	}

	query := `
		INSERT INTO offline_grades (
			site_id, assign_id, user_id, course_id, grade, attempt_number,
			add_attempt, workflow_state, apply_to_all, outcomes,
			baseline_graded_at, time_created
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (site_id, assign_id, user_id) DO UPDATE SET
			course_id = excluded.course_id,
			grade = excluded.grade,
			attempt_number = excluded.attempt_number,
			add_attempt = excluded.add_attempt,
			workflow_state = excluded.workflow_state,
			apply_to_all = excluded.apply_to_all,
			outcomes = excluded.outcomes,
			baseline_graded_at = excluded.baseline_graded_at,
			time_created = excluded.time_created
	`

	_, err = s.db.ExecContext(ctx, query,
		grade.SiteID,
		grade.AssignID,
		grade.UserID,
		grade.CourseID,
		grade.Grade,
		grade.AttemptNumber,
		boolToInt(grade.AddAttempt),
		grade.WorkflowState,
		boolToInt(grade.ApplyToAll),
		string(outcomes),
		grade.BaselineGradedAt,
		grade.TimeCreated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pending grade: %w", err)
	}

	s.publish(events.Event{
		Name:   eventName,
		SiteID: grade.SiteID,
		Payload: events.SubmissionPayload{
			AssignID: grade.AssignID,
			UserID:   grade.UserID,
			Offline:  true,
		},
	})
	return nil
}

// GetGrade retrieves the pending grade for one slot.
// Returns ErrGradeNotFound when nothing is pending.
func (s *Storage) GetGrade(ctx context.Context, siteID string, assignID, userID int64) (*storage.OfflineGrade, error) {
	query := `
		SELECT site_id, assign_id, user_id, course_id, grade, attempt_number,
		       add_attempt, workflow_state, apply_to_all, outcomes,
		       baseline_graded_at, time_created
		FROM offline_grades
		WHERE site_id = ? AND assign_id = ? AND user_id = ?
	`

	row := s.db.QueryRowContext(ctx, query, siteID, assignID, userID)
	grade, err := scanGrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrGradeNotFound
		}
		return nil, fmt.Errorf("failed to get pending grade: %w", err)
	}

	return grade, nil
}

// GetAllGrades returns every pending grade for the site.
func (s *Storage) GetAllGrades(ctx context.Context, siteID string) ([]*storage.OfflineGrade, error) {
	query := `
		SELECT site_id, assign_id, user_id, course_id, grade, attempt_number,
		       add_attempt, workflow_state, apply_to_all, outcomes,
		       baseline_graded_at, time_created
		FROM offline_grades
		WHERE site_id = ?
		ORDER BY assign_id ASC, user_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending grades: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	grades := []*storage.OfflineGrade{}
	for rows.Next() {
		grade, err := scanGrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending grade: %w", err)
		}
		grades = append(grades, grade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return grades, nil
}

// DeleteGrade removes a pending grade. Idempotent.
func (s *Storage) DeleteGrade(ctx context.Context, siteID string, assignID, userID int64) error {
	query := `
		DELETE FROM offline_grades
		WHERE site_id = ? AND assign_id = ? AND user_id = ?
	`

	result, err := s.db.ExecContext(ctx, query, siteID, assignID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete pending grade: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		s.publish(events.Event{
			Name:   events.GradeDeleted,
			SiteID: siteID,
			Payload: events.SubmissionPayload{
				AssignID: assignID,
				UserID:   userID,
				Offline:  true,
			},
		})
	}

	return nil
}

func scanSubmission(row rowScanner) (*storage.OfflineSubmission, error) {
	sub := &storage.OfflineSubmission{}
	var pluginData string
	var submitted int

	err := row.Scan(
		&sub.SiteID,
		&sub.AssignID,
		&sub.UserID,
		&sub.CourseID,
		&pluginData,
		&sub.BaselineTimeModified,
		&sub.TimeCreated,
		&submitted,
	)
	if err != nil {
		return nil, err
	}

	sub.Submitted = intToBool(submitted)
	if err := json.Unmarshal([]byte(pluginData), &sub.PluginData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plugin data: %w", err)
	}

	return sub, nil
}

func scanSubmissions(rows *sql.Rows) ([]*storage.OfflineSubmission, error) {
	subs := []*storage.OfflineSubmission{}

	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending submission: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return subs, nil
}

func scanGrade(row rowScanner) (*storage.OfflineGrade, error) {
	grade := &storage.OfflineGrade{}
	var outcomes string
	var addAttempt, applyToAll int

	err := row.Scan(
		&grade.SiteID,
		&grade.AssignID,
		&grade.UserID,
		&grade.CourseID,
		&grade.Grade,
		&grade.AttemptNumber,
		&addAttempt,
		&grade.WorkflowState,
		&applyToAll,
		&outcomes,
		&grade.BaselineGradedAt,
		&grade.TimeCreated,
	)
	if err != nil {
		return nil, err
	}

	grade.AddAttempt = intToBool(addAttempt)
	grade.ApplyToAll = intToBool(applyToAll)
	if err := json.Unmarshal([]byte(outcomes), &grade.Outcomes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outcomes: %w", err)
	}

	return grade, nil
}
