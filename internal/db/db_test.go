//go:build integration

// Package db provides integration tests for the SurrealDB store.
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xlsmart/talenthub/internal/models"
	"github.com/xlsmart/talenthub/internal/store"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

func reset(t *testing.T) context.Context {
	t.Helper()
	ctx := context.Background()
	if err := testDB.WipeData(ctx); err != nil {
		t.Fatalf("WipeData failed: %v", err)
	}
	return ctx
}

func newSession(t *testing.T, ctx context.Context, total int) *models.UploadSession {
	t.Helper()
	s, err := testDB.CreateSession(ctx, models.NewSession{
		Name:      "wave 1",
		Kind:      models.KindEmployeeUpload,
		FileNames: []string{"xl.xlsx"},
		TotalRows: total,
		CreatedBy: "hr-admin",
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return s
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestSessionLifecycle(t *testing.T) {
	ctx := reset(t)

	s := newSession(t, ctx, 25)
	if s.Status != models.StatusUploading {
		t.Errorf("Expected status uploading, got %q", s.Status)
	}
	if s.Progress.Total != 25 {
		t.Errorf("Expected progress total 25, got %d", s.Progress.Total)
	}

	if err := testDB.UpdateSessionStatus(ctx, s.ID, models.StatusAssigningRoles); err != nil {
		t.Fatalf("UpdateSessionStatus failed: %v", err)
	}
	if err := testDB.UpdateSessionProgress(ctx, s.ID, models.Counters(25, 10, 8, 0, 2)); err != nil {
		t.Fatalf("UpdateSessionProgress failed: %v", err)
	}

	got, err := testDB.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Progress.Processed != 10 || got.Progress.Assigned != 8 || got.Progress.Errors != 2 {
		t.Errorf("Unexpected progress %+v", got.Progress)
	}

	now := time.Now().UTC()
	final := models.Counters(25, 25, 23, 0, 2)
	final.CompletedAt = &now
	if err := testDB.CompleteSession(ctx, s.ID, final); err != nil {
		t.Fatalf("CompleteSession failed: %v", err)
	}

	got, err = testDB.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("Expected completed, got %q", got.Status)
	}
	if got.Progress.CompletedAt == nil {
		t.Error("Expected completed_at to be set")
	}

	err = testDB.UpdateSessionProgress(ctx, s.ID, models.Counters(25, 25, 25, 0, 0))
	if !errors.Is(err, store.ErrSessionTerminal) {
		t.Errorf("Expected ErrSessionTerminal, got %v", err)
	}
	err = testDB.UpdateSessionStatus(ctx, s.ID, models.StatusAnalyzing)
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
}

func TestSessionProgressRejectsOverflow(t *testing.T) {
	ctx := reset(t)
	s := newSession(t, ctx, 5)

	err := testDB.UpdateSessionProgress(ctx, s.ID, models.Counters(5, 6, 0, 0, 0))
	if !errors.Is(err, store.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
}

func TestFailSession(t *testing.T) {
	ctx := reset(t)
	s := newSession(t, ctx, 3)

	if err := testDB.FailSession(ctx, s.ID, models.StatusError, "llm: 401 unauthorized"); err != nil {
		t.Fatalf("FailSession failed: %v", err)
	}
	got, err := testDB.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Status != models.StatusError || got.ErrorMessage == nil || *got.ErrorMessage != "llm: 401 unauthorized" {
		t.Errorf("Unexpected failed session %+v", got)
	}

	err = testDB.FailSession(ctx, s.ID, models.StatusFailed, "again")
	if !errors.Is(err, store.ErrSessionTerminal) {
		t.Errorf("Expected ErrSessionTerminal, got %v", err)
	}
}

func TestListSessions(t *testing.T) {
	ctx := reset(t)
	first := newSession(t, ctx, 1)
	second := newSession(t, ctx, 2)
	if err := testDB.FailSession(ctx, first.ID, models.StatusFailed, "boom"); err != nil {
		t.Fatalf("FailSession failed: %v", err)
	}

	all, err := testDB.ListSessions(ctx, store.SessionFilter{})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID {
		t.Errorf("Expected newest first, got %d sessions", len(all))
	}

	incomplete, err := testDB.ListIncompleteSessions(ctx)
	if err != nil {
		t.Fatalf("ListIncompleteSessions failed: %v", err)
	}
	if len(incomplete) != 1 || incomplete[0].ID != second.ID {
		t.Errorf("Expected only the running session, got %+v", incomplete)
	}

	failed, err := testDB.ListSessions(ctx, store.SessionFilter{Status: models.StatusFailed, Limit: 10})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != first.ID {
		t.Errorf("Expected the failed session, got %+v", failed)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	ctx := reset(t)
	_, err := testDB.GetSession(ctx, "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// =============================================================================
// EMPLOYEE AND ROLE TESTS
// =============================================================================

func TestEmployeeAssignment(t *testing.T) {
	ctx := reset(t)
	s := newSession(t, ctx, 2)

	roles, err := testDB.CreateStandardRoles(ctx, []models.StandardRole{
		{Title: "Network Engineer", Level: "Senior", RequiredSkills: []string{"BGP"}},
	})
	if err != nil {
		t.Fatalf("CreateStandardRoles failed: %v", err)
	}
	roleID := roles[0].ID

	emps, err := testDB.CreateEmployees(ctx, []models.EmployeeRecord{
		{SessionID: s.ID, Name: "Siti", Position: "NOC Engineer"},
		{SessionID: s.ID, Name: "Budi", Position: "RF Planner"},
	})
	if err != nil {
		t.Fatalf("CreateEmployees failed: %v", err)
	}
	if len(emps) != 2 || emps[0].RoleAssignmentStatus != models.AssignmentPending {
		t.Fatalf("Unexpected employees %+v", emps)
	}

	if err := testDB.UpdateRoleAssignment(ctx, emps[0].ID, models.Assign(roleID, 0.9)); err != nil {
		t.Fatalf("UpdateRoleAssignment failed: %v", err)
	}
	err = testDB.UpdateRoleAssignment(ctx, emps[1].ID, models.Suggest("no-such-role", 0.9))
	if !errors.Is(err, store.ErrValidation) {
		t.Errorf("Expected ErrValidation for unknown role, got %v", err)
	}

	assigned, err := testDB.ListEmployees(ctx, store.EmployeeFilter{SessionID: s.ID, Status: models.AssignmentAssigned})
	if err != nil {
		t.Fatalf("ListEmployees failed: %v", err)
	}
	if len(assigned) != 1 || assigned[0].StandardRoleID == nil || *assigned[0].StandardRoleID != roleID {
		t.Errorf("Unexpected assigned employees %+v", assigned)
	}

	assessment := models.SkillsAssessment{StandardRoleID: roleID, MatchPercentage: 70, MatchedSkills: []string{"BGP"}}
	if err := testDB.UpdateSkillsAssessment(ctx, emps[0].ID, assessment); err != nil {
		t.Fatalf("UpdateSkillsAssessment failed: %v", err)
	}
	got, err := testDB.GetEmployees(ctx, []string{emps[0].ID, "missing"})
	if err != nil {
		t.Fatalf("GetEmployees failed: %v", err)
	}
	if len(got) != 1 || got[0].SkillsAssessment == nil || got[0].SkillsAssessment.MatchPercentage != 70 {
		t.Errorf("Unexpected employees %+v", got)
	}
}

func TestDuplicateStandardRole(t *testing.T) {
	ctx := reset(t)
	if _, err := testDB.CreateStandardRoles(ctx, []models.StandardRole{{ID: "r1", Title: "Data Analyst"}}); err != nil {
		t.Fatalf("CreateStandardRoles failed: %v", err)
	}
	_, err := testDB.CreateStandardRoles(ctx, []models.StandardRole{{ID: "r1", Title: "Data Analyst"}})
	if !errors.Is(err, ErrAlreadyExists) || !errors.Is(err, store.ErrValidation) {
		t.Errorf("Expected ErrAlreadyExists, got %v", err)
	}
}

func TestRoleMappingsAndDescriptions(t *testing.T) {
	ctx := reset(t)
	roles, err := testDB.CreateStandardRoles(ctx, []models.StandardRole{{Title: "Data Analyst", Level: "Mid"}})
	if err != nil {
		t.Fatalf("CreateStandardRoles failed: %v", err)
	}

	mappings, err := testDB.CreateRoleMappings(ctx, []models.RoleMapping{
		{SessionID: "s1", OriginalTitle: "BI Analyst"},
		{SessionID: "s2", OriginalTitle: "Tower Tech"},
	})
	if err != nil {
		t.Fatalf("CreateRoleMappings failed: %v", err)
	}
	if err := testDB.UpdateRoleMapping(ctx, mappings[0].ID, models.MappingMapped, &roles[0].ID, 0.8); err != nil {
		t.Fatalf("UpdateRoleMapping failed: %v", err)
	}
	if err := testDB.UpdateRoleMapping(ctx, mappings[1].ID, models.MappingMapped, nil, 0); !errors.Is(err, store.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}

	got, err := testDB.ListRoleMappings(ctx, "s1")
	if err != nil {
		t.Fatalf("ListRoleMappings failed: %v", err)
	}
	if len(got) != 1 || got[0].Status != models.MappingMapped {
		t.Errorf("Unexpected mappings %+v", got)
	}

	jd, err := testDB.SaveJobDescription(ctx, models.JobDescription{StandardRoleID: roles[0].ID, Title: "Data Analyst"})
	if err != nil {
		t.Fatalf("SaveJobDescription failed: %v", err)
	}
	if jd.Status != "draft" {
		t.Errorf("Expected draft status, got %q", jd.Status)
	}
	if _, err := testDB.SaveJobDescription(ctx, models.JobDescription{StandardRoleID: "missing"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	list, err := testDB.ListJobDescriptions(ctx, roles[0].ID)
	if err != nil {
		t.Fatalf("ListJobDescriptions failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected 1 job description, got %d", len(list))
	}
}
