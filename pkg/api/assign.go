package api

// Assignment describes one assignment activity instance.
type Assignment struct {
	ID                   int64  `json:"id"`
	CourseModuleID       int64  `json:"cmid"`
	CourseID             int64  `json:"course"`
	Name                 string `json:"name"`
	Intro                string `json:"intro"`
	DueDate              int64  `json:"duedate"`
	AllowSubmissionsFrom int64  `json:"allowsubmissionsfromdate"`
	CutoffDate           int64  `json:"cutoffdate"`
	MaxAttempts          int    `json:"maxattempts"`
	TeamSubmission       bool   `json:"teamsubmission"`
	RequireSubmitButton  bool   `json:"submissiondrafts"`
	TimeModified         int64  `json:"timemodified"`
}

// SubmissionPlugin is the per-plugin slice of a submission or feedback
// (online text, file uploads, comments). Data is the plugin's opaque
// key-value content; the client passes it through unmodified.
type SubmissionPlugin struct {
	Type string            `json:"type"`
	Name string            `json:"name"`
	Data map[string]string `json:"data,omitempty"`
}

// Submission is one attempt payload recorded on the server.
type Submission struct {
	ID            int64              `json:"id"`
	UserID        int64              `json:"userid"`
	AttemptNumber int                `json:"attemptnumber"`
	Status        string             `json:"status"`
	GroupID       int64              `json:"groupid,omitempty"`
	TimeModified  int64              `json:"timemodified"`
	Plugins       []SubmissionPlugin `json:"plugins,omitempty"`
}

// Grade is one grading record for a user's attempt.
type Grade struct {
	ID            int64   `json:"id"`
	UserID        int64   `json:"userid"`
	AttemptNumber int     `json:"attemptnumber"`
	Grade         float64 `json:"grade"`
	GradedAt      int64   `json:"timemodified"`
	GraderID      int64   `json:"grader"`
}

// GetAssignmentsRequest fetches the assignments visible in courses.
type GetAssignmentsRequest struct {
	CourseIDs []int64 `json:"courseids"`
}

// GetAssignmentsResponse lists the matching assignments grouped by course.
type GetAssignmentsResponse struct {
	Assignments []Assignment `json:"assignments"`
	Warnings    []Warning    `json:"warnings,omitempty"`
}

// GetSubmissionStatusRequest fetches the submission state for one user.
type GetSubmissionStatusRequest struct {
	AssignmentID int64 `json:"assignid"`
	UserID       int64 `json:"userid,omitempty"`
	GroupID      int64 `json:"groupid,omitempty"`
}

// LastAttempt is the current attempt slice of a submission status.
type LastAttempt struct {
	Submission       *Submission `json:"submission,omitempty"`
	TeamSubmission   *Submission `json:"teamsubmission,omitempty"`
	SubmissionsOpen  bool        `json:"submissionsenabled"`
	CanEdit          bool        `json:"canedit"`
	CanSubmit        bool        `json:"cansubmit"`
	BlindMarking     bool        `json:"blindmarking"`
	GradingStatus    string      `json:"gradingstatus"`
	LockedMessage    string      `json:"lockedmessage,omitempty"`
	ExtensionDueDate int64       `json:"extensionduedate,omitempty"`
}

// Feedback is the grading slice of a submission status.
type Feedback struct {
	Grade        *Grade             `json:"grade,omitempty"`
	GradeForDisp string             `json:"gradefordisplay,omitempty"`
	GradedAt     int64              `json:"gradeddate"`
	Plugins      []SubmissionPlugin `json:"plugins,omitempty"`
}

// GetSubmissionStatusResponse is the full per-user submission state.
type GetSubmissionStatusResponse struct {
	LastAttempt *LastAttempt `json:"lastattempt,omitempty"`
	Feedback    *Feedback    `json:"feedback,omitempty"`
	Warnings    []Warning    `json:"warnings,omitempty"`
}

// SaveSubmissionRequest stores draft plugin data for the caller's attempt.
type SaveSubmissionRequest struct {
	AssignmentID int64             `json:"assignmentid"`
	PluginData   map[string]string `json:"plugindata"`
}

// SaveSubmissionResponse acknowledges the save; per-plugin validation
// problems come back as warnings.
type SaveSubmissionResponse struct {
	Warnings []Warning `json:"warnings,omitempty"`
}

// SubmitForGradingRequest finalizes the caller's current attempt.
type SubmitForGradingRequest struct {
	AssignmentID    int64 `json:"assignmentid"`
	AcceptStatement bool  `json:"acceptsubmissionstatement"`
}

// SubmitForGradingResponse acknowledges the state change.
type SubmitForGradingResponse struct {
	Warnings []Warning `json:"warnings,omitempty"`
}

// SaveGradeRequest records a grade (and optional outcomes) for one user.
type SaveGradeRequest struct {
	AssignmentID  int64              `json:"assignmentid"`
	UserID        int64              `json:"userid"`
	Grade         float64            `json:"grade"`
	AttemptNumber int                `json:"attemptnumber"`
	AddAttempt    bool               `json:"addattempt"`
	WorkflowState string             `json:"workflowstate,omitempty"`
	ApplyToAll    bool               `json:"applytoall"`
	Outcomes      map[string]float64 `json:"outcomes,omitempty"`
	PluginData    map[string]string  `json:"plugindata,omitempty"`
}

// SaveGradeResponse acknowledges the grade write.
type SaveGradeResponse struct {
	Warnings []Warning `json:"warnings,omitempty"`
}

// ViewAssignmentRequest logs that an assignment was opened.
type ViewAssignmentRequest struct {
	AssignmentID int64 `json:"assignid"`
}
