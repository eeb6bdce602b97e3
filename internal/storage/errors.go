package storage

import "errors"

// Common offline storage errors
var (
	// ErrEntryNotFound indicates that no pending glossary entry matches
	ErrEntryNotFound = errors.New("pending entry not found")

	// ErrSubmissionNotFound indicates that no pending submission matches
	ErrSubmissionNotFound = errors.New("pending submission not found")

	// ErrGradeNotFound indicates that no pending grade matches
	ErrGradeNotFound = errors.New("pending grade not found")
)
