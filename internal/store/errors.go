package store

import (
	"errors"
	"fmt"

	"github.com/xlsmart/talenthub/internal/models"
)

// Sentinel errors for store operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates the input is missing required fields or
	// violates a record invariant.
	ErrValidation = errors.New("validation error")

	// ErrInvalidTransition indicates a session status change that the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSessionTerminal indicates a write to a session that already reached
	// completed, failed or error.
	ErrSessionTerminal = errors.New("session is terminal")

	// ErrConflict indicates the record changed underneath a conditional write.
	ErrConflict = errors.New("concurrent modification")
)

// ValidateNewSession checks a create request and fills defaults.
func ValidateNewSession(in models.NewSession) (models.NewSession, error) {
	if err := in.Validate(); err != nil {
		return in, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if in.Status == "" {
		in.Status = models.StatusUploading
	}
	return in, nil
}

// CheckTransition returns ErrInvalidTransition when from → to is not allowed.
func CheckTransition(id string, from, to models.SessionStatus) error {
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: session %s %s -> %s", ErrInvalidTransition, id, from, to)
	}
	return nil
}

// MergeProgress applies update to a session's progress, refusing terminal
// sessions and counters that break processed <= total.
func MergeProgress(s *models.UploadSession, update models.ProgressUpdate) (models.Progress, error) {
	if s.Status.Terminal() {
		return s.Progress, fmt.Errorf("%w: session %s is %s", ErrSessionTerminal, s.ID, s.Status)
	}
	merged := s.Progress.Merge(update)
	if err := merged.Check(); err != nil {
		return s.Progress, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return merged, nil
}

// CheckNotTerminal returns ErrSessionTerminal when s already ended.
func CheckNotTerminal(s *models.UploadSession) error {
	if s.Status.Terminal() {
		return fmt.Errorf("%w: session %s is %s", ErrSessionTerminal, s.ID, s.Status)
	}
	return nil
}

// CheckFailStatus verifies status is one of the failure end states.
func CheckFailStatus(status models.SessionStatus) error {
	if status != models.StatusFailed && status != models.StatusError {
		return fmt.Errorf("%w: %s is not a failure status", ErrValidation, status)
	}
	return nil
}

// ApplyAssignment applies a to e and checks the record invariants.
func ApplyAssignment(e *models.EmployeeRecord, a models.RoleAssignment) error {
	e.Apply(a)
	if err := e.Check(); err != nil {
		return fmt.Errorf("%w: employee %s: %v", ErrValidation, e.ID, err)
	}
	return nil
}
