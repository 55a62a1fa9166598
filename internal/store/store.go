// Package store defines persistence interfaces for sessions, employees and
// roles, plus an in-memory implementation.
package store

import (
	"context"

	"github.com/xlsmart/talenthub/internal/models"
)

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	Kind      models.SessionKind
	Status    models.SessionStatus
	CreatedBy string
	Limit     int
}

// EmployeeFilter narrows ListEmployees.
type EmployeeFilter struct {
	SessionID string
	Status    models.RoleAssignmentStatus
	Limit     int
}

// SessionStore persists UploadSessions. It is the only writer of session rows.
type SessionStore interface {
	CreateSession(ctx context.Context, in models.NewSession) (*models.UploadSession, error)
	GetSession(ctx context.Context, id string) (*models.UploadSession, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]models.UploadSession, error)
	ListIncompleteSessions(ctx context.Context) ([]models.UploadSession, error)
	UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error
	UpdateSessionProgress(ctx context.Context, id string, update models.ProgressUpdate) error
	// CompleteSession moves the session to completed and applies the final
	// counters in a single write.
	CompleteSession(ctx context.Context, id string, update models.ProgressUpdate) error
	// FailSession moves the session to failed or error and records msg.
	FailSession(ctx context.Context, id string, status models.SessionStatus, msg string) error
}

// EmployeeStore persists EmployeeRecords.
type EmployeeStore interface {
	CreateEmployees(ctx context.Context, employees []models.EmployeeRecord) ([]models.EmployeeRecord, error)
	GetEmployee(ctx context.Context, id string) (*models.EmployeeRecord, error)
	GetEmployees(ctx context.Context, ids []string) ([]models.EmployeeRecord, error)
	ListEmployees(ctx context.Context, filter EmployeeFilter) ([]models.EmployeeRecord, error)
	UpdateRoleAssignment(ctx context.Context, id string, a models.RoleAssignment) error
	UpdateSkillsAssessment(ctx context.Context, id string, a models.SkillsAssessment) error
}

// RoleStore persists standard roles, role mappings and job descriptions.
type RoleStore interface {
	CreateStandardRoles(ctx context.Context, roles []models.StandardRole) ([]models.StandardRole, error)
	GetStandardRole(ctx context.Context, id string) (*models.StandardRole, error)
	ListStandardRoles(ctx context.Context) ([]models.StandardRole, error)
	CreateRoleMappings(ctx context.Context, mappings []models.RoleMapping) ([]models.RoleMapping, error)
	ListRoleMappings(ctx context.Context, sessionID string) ([]models.RoleMapping, error)
	UpdateRoleMapping(ctx context.Context, id string, status models.MappingStatus, standardRoleID *string, confidence float64) error
	SaveJobDescription(ctx context.Context, jd models.JobDescription) (*models.JobDescription, error)
	ListJobDescriptions(ctx context.Context, standardRoleID string) ([]models.JobDescription, error)
}

// Store is the full persistence surface used by the service layer.
type Store interface {
	SessionStore
	EmployeeStore
	RoleStore
	Close(ctx context.Context) error
}
