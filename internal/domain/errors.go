package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected lifecycle outcomes. The transport layer maps
// these directly onto response codes; they are business results, not faults.
var (
	ErrNotFound    = errors.New("study not found")
	ErrStudyExists = errors.New("study already registered")
)

// ValidationBlockedError is the gate's explicit rejection of an inference
// request. It carries the full stored verdict so callers can report exactly
// why analysis was refused. It is a normal business outcome and must be
// distinguishable from internal failures.
type ValidationBlockedError struct {
	StudyID           string                `json:"study_id"`
	Errors            []string              `json:"validation_errors"`
	RequiredSequences map[SequenceType]bool `json:"required_sequences"`
}

// Error implements the error interface.
func (e *ValidationBlockedError) Error() string {
	return fmt.Sprintf("study %s failed validation with %d errors - inference cannot proceed", e.StudyID, len(e.Errors))
}

// NewValidationBlockedError builds the gate rejection from the stored verdict.
func NewValidationBlockedError(studyID string, validation *ValidationResult) *ValidationBlockedError {
	errs := make([]string, len(validation.Errors))
	copy(errs, validation.Errors)
	status := make(map[SequenceType]bool, len(validation.RequiredSequences))
	for seq, present := range validation.RequiredSequences {
		status[seq] = present
	}
	return &ValidationBlockedError{
		StudyID:           studyID,
		Errors:            errs,
		RequiredSequences: status,
	}
}

// CollaboratorError wraps a failure of an external analysis collaborator
// (segmentation, genotype prediction, explainability). The core never retries;
// the inference call fails as a whole and stored state is left untouched.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

// Error implements the error interface.
func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s collaborator failed: %v", e.Collaborator, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// NewCollaboratorError wraps a collaborator failure with its source name.
func NewCollaboratorError(collaborator string, err error) *CollaboratorError {
	return &CollaboratorError{Collaborator: collaborator, Err: err}
}

// IsValidationBlocked reports whether err is (or wraps) a gate rejection.
func IsValidationBlocked(err error) bool {
	var blocked *ValidationBlockedError
	return errors.As(err, &blocked)
}

// IsCollaboratorFailure reports whether err is (or wraps) a collaborator
// failure.
func IsCollaboratorFailure(err error) bool {
	var collab *CollaboratorError
	return errors.As(err, &collab)
}
