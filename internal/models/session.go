// Package models defines data structures for the talenthub pipeline.
package models

import (
	"fmt"
	"time"
)

// SessionStatus is the lifecycle state of an UploadSession.
type SessionStatus string

const (
	StatusUploading      SessionStatus = "uploading"
	StatusAnalyzing      SessionStatus = "analyzing"
	StatusStandardizing  SessionStatus = "standardizing"
	StatusAssigningRoles SessionStatus = "assigning_roles"
	StatusRolesAssigned  SessionStatus = "roles_assigned"
	StatusCompleted      SessionStatus = "completed"
	StatusFailed         SessionStatus = "failed"
	StatusError          SessionStatus = "error"
)

// statusRank orders the forward path. Failure states have no rank: they are
// reachable from any non-terminal state.
var statusRank = map[SessionStatus]int{
	StatusUploading:      0,
	StatusAnalyzing:      1,
	StatusStandardizing:  2,
	StatusAssigningRoles: 3,
	StatusRolesAssigned:  4,
	StatusCompleted:      5,
}

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusFailed, StatusError:
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether s is an end state.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusError
}

// CanTransition reports whether a session may move from one status to another.
// Forward jumps are allowed (entry points skip early stages); going backwards,
// or leaving a terminal state, is not. A same-value transition is a no-op and
// therefore allowed.
func CanTransition(from, to SessionStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	if to == StatusFailed || to == StatusError {
		return true
	}
	return statusRank[to] > statusRank[from]
}

// After reports whether s lies strictly beyond other on the forward path.
// Failure states are never after anything.
func (s SessionStatus) After(other SessionStatus) bool {
	rs, ok := statusRank[s]
	if !ok {
		return false
	}
	ro, ok := statusRank[other]
	return ok && rs > ro
}

// SessionKind identifies which pipeline entry point created a session.
type SessionKind string

const (
	KindEmployeeUpload      SessionKind = "employee_upload"
	KindRoleStandardization SessionKind = "role_standardization"
	KindBulkAssign          SessionKind = "bulk_assign"
	KindSkillsAssessment    SessionKind = "skills_assessment"
)

// UploadSession tracks one bulk ingestion/processing job end to end.
type UploadSession struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Kind         SessionKind   `json:"kind"`
	FileNames    []string      `json:"file_names"`
	TotalRows    int           `json:"total_rows"`
	Status       SessionStatus `json:"status"`
	Progress     Progress      `json:"progress"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	CreatedBy    string        `json:"created_by"`
	RecordIDs    []string      `json:"record_ids,omitempty"` // target employees for bulk_assign / skills_assessment
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewSession is the input for creating an UploadSession.
type NewSession struct {
	Name      string        `json:"name" validate:"required,max=200"`
	Kind      SessionKind   `json:"kind" validate:"required,oneof=employee_upload role_standardization bulk_assign skills_assessment"`
	FileNames []string      `json:"file_names" validate:"required,min=1,dive,required"`
	TotalRows int           `json:"total_rows" validate:"gte=0"`
	CreatedBy string        `json:"created_by" validate:"required"`
	Status    SessionStatus `json:"status,omitempty"`
	RecordIDs []string      `json:"record_ids,omitempty"`
}

// Validate checks required fields and the starting status.
func (n NewSession) Validate() error {
	if err := validate.Struct(n); err != nil {
		return err
	}
	if n.Status != "" && (!n.Status.Valid() || n.Status.Terminal()) {
		return fmt.Errorf("invalid initial status %q", n.Status)
	}
	return nil
}

// Progress is the counters blob stored on a session.
type Progress struct {
	Total       int            `json:"total"`
	Processed   int            `json:"processed"`
	Assigned    int            `json:"assigned"`
	Completed   int            `json:"completed"`
	Errors      int            `json:"errors"`
	Failures    []string       `json:"failures,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Check verifies the counters are consistent.
func (p Progress) Check() error {
	if p.Total < 0 || p.Processed < 0 || p.Assigned < 0 || p.Completed < 0 || p.Errors < 0 {
		return fmt.Errorf("negative progress counter")
	}
	if p.Processed > p.Total {
		return fmt.Errorf("processed %d exceeds total %d", p.Processed, p.Total)
	}
	return nil
}

// ProgressUpdate is a partial update merged into a stored Progress.
// Nil fields leave the stored value untouched.
type ProgressUpdate struct {
	Total       *int
	Processed   *int
	Assigned    *int
	Completed   *int
	Errors      *int
	Failures    []string
	CompletedAt *time.Time
	Extra       map[string]any
}

// Merge applies u on top of p and returns the result. Extra keys are merged,
// everything else is last-write-wins.
func (p Progress) Merge(u ProgressUpdate) Progress {
	out := p
	if u.Total != nil {
		out.Total = *u.Total
	}
	if u.Processed != nil {
		out.Processed = *u.Processed
	}
	if u.Assigned != nil {
		out.Assigned = *u.Assigned
	}
	if u.Completed != nil {
		out.Completed = *u.Completed
	}
	if u.Errors != nil {
		out.Errors = *u.Errors
	}
	if u.Failures != nil {
		out.Failures = append([]string(nil), u.Failures...)
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		out.CompletedAt = &t
	}
	if len(u.Extra) > 0 {
		extra := make(map[string]any, len(p.Extra)+len(u.Extra))
		for k, v := range p.Extra {
			extra[k] = v
		}
		for k, v := range u.Extra {
			extra[k] = v
		}
		out.Extra = extra
	}
	return out
}

// Counters builds a ProgressUpdate carrying the standard counters.
func Counters(total, processed, assigned, completed, errors int) ProgressUpdate {
	return ProgressUpdate{
		Total:     &total,
		Processed: &processed,
		Assigned:  &assigned,
		Completed: &completed,
		Errors:    &errors,
	}
}

// ProgressReport is the polled view of a session: its status, counters and
// the failure message, if any.
type ProgressReport struct {
	SessionID string        `json:"sessionId"`
	Status    SessionStatus `json:"status"`
	Progress  Progress      `json:"progress"`
	Error     *string       `json:"error,omitempty"`
}

// Report returns the session's progress view.
func (s *UploadSession) Report() ProgressReport {
	return ProgressReport{
		SessionID: s.ID,
		Status:    s.Status,
		Progress:  s.Progress,
		Error:     s.ErrorMessage,
	}
}
