package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xlsmart/talenthub/internal/models"
)

func newSession(t *testing.T, m *Memory, rows int) *models.UploadSession {
	t.Helper()
	s, err := m.CreateSession(context.Background(), models.NewSession{
		Name:      "q3 import",
		Kind:      models.KindEmployeeUpload,
		FileNames: []string{"employees.xlsx"},
		TotalRows: rows,
		CreatedBy: "admin",
	})
	require.NoError(t, err)
	return s
}

func TestMemoryCreateSession(t *testing.T) {
	m := NewMemory()
	s := newSession(t, m, 25)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, models.StatusUploading, s.Status)
	assert.Equal(t, 25, s.Progress.Total)

	_, err := m.CreateSession(context.Background(), models.NewSession{
		Name:      "bad",
		Kind:      models.KindEmployeeUpload,
		FileNames: []string{"a.csv"},
		TotalRows: -1,
		CreatedBy: "admin",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = m.CreateSession(context.Background(), models.NewSession{
		Name:      "bad",
		Kind:      models.KindEmployeeUpload,
		TotalRows: 1,
		CreatedBy: "admin",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMemoryGetSessionNotFound(t *testing.T) {
	_, err := NewMemory().GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStatusTransitions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s := newSession(t, m, 3)

	require.NoError(t, m.UpdateSessionStatus(ctx, s.ID, models.StatusAssigningRoles))
	require.NoError(t, m.UpdateSessionStatus(ctx, s.ID, models.StatusAssigningRoles), "same value is a no-op")

	err := m.UpdateSessionStatus(ctx, s.ID, models.StatusAnalyzing)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, m.CompleteSession(ctx, s.ID, models.Counters(3, 3, 3, 0, 0)))

	err = m.UpdateSessionStatus(ctx, s.ID, models.StatusFailed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := m.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, 3, got.Progress.Processed)
}

func TestMemoryProgressGuards(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s := newSession(t, m, 5)

	err := m.UpdateSessionProgress(ctx, s.ID, models.ProgressUpdate{Processed: models.Ptr(6)})
	assert.ErrorIs(t, err, ErrValidation, "processed may not exceed total")

	require.NoError(t, m.UpdateSessionProgress(ctx, s.ID, models.ProgressUpdate{
		Processed: models.Ptr(2),
		Extra:     map[string]any{"batch": 1},
	}))

	require.NoError(t, m.FailSession(ctx, s.ID, models.StatusFailed, "database unavailable"))

	err = m.UpdateSessionProgress(ctx, s.ID, models.ProgressUpdate{Processed: models.Ptr(3)})
	assert.ErrorIs(t, err, ErrSessionTerminal)
	err = m.FailSession(ctx, s.ID, models.StatusError, "second failure")
	assert.ErrorIs(t, err, ErrSessionTerminal)

	got, err := m.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Progress.Processed)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "database unavailable", *got.ErrorMessage)
}

func TestMemoryFailSessionRejectsNonFailureStatus(t *testing.T) {
	m := NewMemory()
	s := newSession(t, m, 1)
	err := m.FailSession(context.Background(), s.ID, models.StatusCompleted, "nope")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMemoryListIncompleteSessions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	running := newSession(t, m, 1)
	done := newSession(t, m, 1)
	require.NoError(t, m.CompleteSession(ctx, done.ID, models.Counters(1, 1, 1, 0, 0)))

	incomplete, err := m.ListIncompleteSessions(ctx)
	require.NoError(t, err)
	require.Len(t, incomplete, 1)
	assert.Equal(t, running.ID, incomplete[0].ID)
}

func TestMemoryRoleAssignment(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	roles, err := m.CreateStandardRoles(ctx, []models.StandardRole{{Title: "Network Engineer", Level: "Senior"}})
	require.NoError(t, err)
	roleID := roles[0].ID

	emps, err := m.CreateEmployees(ctx, []models.EmployeeRecord{{Name: "Dewi", EmployeeNumber: "E1", Position: "NOC Engineer"}})
	require.NoError(t, err)
	empID := emps[0].ID
	assert.Equal(t, models.AssignmentPending, emps[0].RoleAssignmentStatus)

	require.NoError(t, m.UpdateRoleAssignment(ctx, empID, models.Suggest(roleID, 0.7)))
	got, err := m.GetEmployee(ctx, empID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentSuggested, got.RoleAssignmentStatus)
	assert.Nil(t, got.StandardRoleID)

	err = m.UpdateRoleAssignment(ctx, empID, models.Assign("2b3c1a4e-8f0d-4a55-9a1e-3f3f1c2d4e5f", 1))
	assert.ErrorIs(t, err, ErrValidation, "unknown role id must not be stored")

	err = m.UpdateRoleAssignment(ctx, empID, models.RoleAssignment{Status: models.AssignmentAssigned})
	assert.ErrorIs(t, err, ErrValidation)

	got, err = m.GetEmployee(ctx, empID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentSuggested, got.RoleAssignmentStatus, "failed writes leave the record untouched")
}

func TestMemoryListEmployeesFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.CreateEmployees(ctx, []models.EmployeeRecord{
		{SessionID: "s1", Name: "A"},
		{SessionID: "s1", Name: "B"},
		{SessionID: "s2", Name: "C"},
	})
	require.NoError(t, err)

	got, err := m.ListEmployees(ctx, EmployeeFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Name)
	assert.Equal(t, "B", got[1].Name)

	got, err = m.ListEmployees(ctx, EmployeeFilter{Status: models.AssignmentPending, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryRoleMappings(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	roles, err := m.CreateStandardRoles(ctx, []models.StandardRole{{Title: "Data Analyst"}})
	require.NoError(t, err)

	mappings, err := m.CreateRoleMappings(ctx, []models.RoleMapping{{SessionID: "s1", OriginalTitle: "BI Analyst"}})
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, models.MappingPending, mappings[0].Status)

	err = m.UpdateRoleMapping(ctx, mappings[0].ID, models.MappingMapped, nil, 0.9)
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, m.UpdateRoleMapping(ctx, mappings[0].ID, models.MappingMapped, &roles[0].ID, 0.9))
	got, err := m.ListRoleMappings(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, roles[0].ID, *got[0].StandardRoleID)
}

func TestMemoryJobDescriptions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.SaveJobDescription(ctx, models.JobDescription{StandardRoleID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)

	roles, err := m.CreateStandardRoles(ctx, []models.StandardRole{{Title: "Product Owner"}})
	require.NoError(t, err)
	jd, err := m.SaveJobDescription(ctx, models.JobDescription{StandardRoleID: roles[0].ID, Title: "Product Owner"})
	require.NoError(t, err)
	assert.Equal(t, "draft", jd.Status)

	list, err := m.ListJobDescriptions(ctx, roles[0].ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
