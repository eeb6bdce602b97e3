package storage

import "context"

// OfflineSubmission is the pending submission draft for one (assignment,
// user) slot. Saving again replaces the previous draft in full.
type OfflineSubmission struct {
	SiteID               string
	AssignID             int64
	UserID               int64
	CourseID             int64
	PluginData           map[string]string
	BaselineTimeModified int64
	TimeCreated          int64
	Submitted            bool
}

// OfflineGrade is the pending grading decision for one (assignment, user)
// slot, staged by a grader while offline.
type OfflineGrade struct {
	SiteID           string
	AssignID         int64
	UserID           int64
	CourseID         int64
	Grade            float64
	AttemptNumber    int
	AddAttempt       bool
	WorkflowState    string
	ApplyToAll       bool
	Outcomes         map[string]float64
	BaselineGradedAt int64
	TimeCreated      int64
}

// AssignOfflineStorage stores pending assignment submissions and grades.
type AssignOfflineStorage interface {
	// SaveSubmission upserts the pending submission for (assignID, userID).
	SaveSubmission(ctx context.Context, sub *OfflineSubmission) error

	// GetSubmission retrieves the pending submission for one slot.
	// Returns ErrSubmissionNotFound when nothing is pending.
	GetSubmission(ctx context.Context, siteID string, assignID, userID int64) (*OfflineSubmission, error)

	// GetAssignSubmissions returns the pending submissions of one
	// assignment. Empty slice when nothing is pending.
	GetAssignSubmissions(ctx context.Context, siteID string, assignID int64) ([]*OfflineSubmission, error)

	// GetAllSubmissions returns every pending submission for the site.
	GetAllSubmissions(ctx context.Context, siteID string) ([]*OfflineSubmission, error)

	// DeleteSubmission removes a pending submission. Idempotent.
	DeleteSubmission(ctx context.Context, siteID string, assignID, userID int64) error

	// SaveGrade upserts the pending grade for (assignID, userID).
	SaveGrade(ctx context.Context, grade *OfflineGrade) error

	// GetGrade retrieves the pending grade for one slot.
	// Returns ErrGradeNotFound when nothing is pending.
	GetGrade(ctx context.Context, siteID string, assignID, userID int64) (*OfflineGrade, error)

	// GetAllGrades returns every pending grade for the site.
	GetAllGrades(ctx context.Context, siteID string) ([]*OfflineGrade, error)

	// DeleteGrade removes a pending grade. Idempotent.
	DeleteGrade(ctx context.Context, siteID string, assignID, userID int64) error
}
