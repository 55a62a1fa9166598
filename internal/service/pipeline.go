package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/xlsmart/talenthub/internal/classifier"
	"github.com/xlsmart/talenthub/internal/models"
	"github.com/xlsmart/talenthub/internal/store"
)

// ErrNoStandardRoles is returned when a run needs a role catalog and none exists.
var ErrNoStandardRoles = errors.New("no standard roles defined")

// manualSelection is the file name recorded for sessions started from an
// explicit list of employee ids.
const manualSelection = "manual-selection"

// extraMode is the progress key remembering the assign mode for resume.
const extraMode = "mode"

// Pipeline wires the upload, standardization, assignment and assessment
// flows onto background session runs.
type Pipeline struct {
	store      store.Store
	classifier *classifier.Classifier
	sessions   *SessionManager
	batch      *BatchProcessor
	logger     *slog.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(st store.Store, c *classifier.Classifier, sessions *SessionManager, batch *BatchProcessor, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:      st,
		classifier: c,
		sessions:   sessions,
		batch:      batch,
		logger:     logger.With("component", "pipeline"),
	}
}

// Sessions returns the session manager.
func (p *Pipeline) Sessions() *SessionManager { return p.sessions }

// EmployeeUpload is a parsed employee spreadsheet.
type EmployeeUpload struct {
	SessionName string                  `validate:"required,max=200"`
	FileName    string                  `validate:"required"`
	CreatedBy   string                  `validate:"required"`
	Employees   []models.EmployeeRecord `validate:"required,min=1"`
	AutoAssign  bool
}

// UploadEmployees stores the employees under a new session and starts role
// assignment in the background. The returned session is the state right
// after creation.
func (p *Pipeline) UploadEmployees(ctx context.Context, in EmployeeUpload) (*models.UploadSession, error) {
	if err := models.Validate(in); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	sess, err := p.store.CreateSession(ctx, models.NewSession{
		Name:      in.SessionName,
		Kind:      models.KindEmployeeUpload,
		FileNames: []string{in.FileName},
		TotalRows: len(in.Employees),
		CreatedBy: in.CreatedBy,
	})
	if err != nil {
		return nil, err
	}

	records := make([]models.EmployeeRecord, len(in.Employees))
	for i, e := range in.Employees {
		e.ID = ""
		e.SessionID = sess.ID
		e.RoleAssignmentStatus = models.AssignmentPending
		e.StandardRoleID, e.AISuggestedRoleID, e.AssignmentConfidence = nil, nil, nil
		records[i] = e
	}
	created, err := p.store.CreateEmployees(ctx, records)
	if err != nil {
		if ferr := p.store.FailSession(ctx, sess.ID, models.StatusFailed, fmt.Sprintf("store employees: %v", err)); ferr != nil {
			p.logger.Warn("failed to mark session failed", "session_id", sess.ID, "error", ferr)
		}
		return nil, fmt.Errorf("store employees: %w", err)
	}

	mode := ParseAssignMode(in.AutoAssign)
	if err := p.sessions.Start(sess.ID, sess.Kind, func(ctx context.Context) error {
		return p.assignEmployees(ctx, sess.ID, created, mode, Tally{})
	}); err != nil {
		return nil, err
	}

	p.logger.Info("employee upload accepted", "session_id", sess.ID, "employees", len(created), "mode", mode)
	return sess, nil
}

func (p *Pipeline) assignEmployees(ctx context.Context, sessionID string, employees []models.EmployeeRecord, mode AssignMode, base Tally) error {
	roles, err := p.store.ListStandardRoles(ctx)
	if err != nil {
		return fmt.Errorf("load standard roles: %w", err)
	}
	if len(roles) == 0 {
		return ErrNoStandardRoles
	}

	op := &AssignRoleOperation{
		Classifier: p.classifier,
		Employees:  p.store,
		Roles:      roles,
		Mode:       mode,
	}
	_, err = RunBatches(ctx, p.batch, sessionID, employees, op, RunParams{
		Base:  base,
		Extra: map[string]any{extraMode: string(mode)},
	})
	return err
}

// RoleUpload is a parsed role spreadsheet from a source company.
type RoleUpload struct {
	SessionName string              `validate:"required,max=200"`
	FileName    string              `validate:"required"`
	CreatedBy   string              `validate:"required"`
	Roles       []models.SourceRole `validate:"required,min=1"`
}

// StandardizeRoles stores the source roles as pending mappings and starts the
// standardization run: the catalog is extended with generated standard roles,
// then every source role is mapped onto it.
func (p *Pipeline) StandardizeRoles(ctx context.Context, in RoleUpload) (*models.UploadSession, error) {
	if err := models.Validate(in); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	sess, err := p.store.CreateSession(ctx, models.NewSession{
		Name:      in.SessionName,
		Kind:      models.KindRoleStandardization,
		FileNames: []string{in.FileName},
		TotalRows: len(in.Roles),
		CreatedBy: in.CreatedBy,
	})
	if err != nil {
		return nil, err
	}

	pending := make([]models.RoleMapping, len(in.Roles))
	for i, r := range in.Roles {
		pending[i] = models.RoleMapping{
			SessionID:          sess.ID,
			OriginalTitle:      r.Title,
			OriginalDepartment: r.Department,
			OriginalLevel:      r.Level,
			SourceCompany:      r.SourceCompany,
			Description:        r.Description,
			Status:             models.MappingPending,
		}
	}
	mappings, err := p.store.CreateRoleMappings(ctx, pending)
	if err != nil {
		if ferr := p.store.FailSession(ctx, sess.ID, models.StatusFailed, fmt.Sprintf("store role mappings: %v", err)); ferr != nil {
			p.logger.Warn("failed to mark session failed", "session_id", sess.ID, "error", ferr)
		}
		return nil, fmt.Errorf("store role mappings: %w", err)
	}

	if err := p.sessions.Start(sess.ID, sess.Kind, func(ctx context.Context) error {
		return p.standardize(ctx, sess.ID, mappings, Tally{})
	}); err != nil {
		return nil, err
	}

	p.logger.Info("role upload accepted", "session_id", sess.ID, "roles", len(mappings))
	return sess, nil
}

func (p *Pipeline) standardize(ctx context.Context, sessionID string, mappings []models.RoleMapping, base Tally) error {
	// A resumed session may already be past analyzing.
	if err := p.store.UpdateSessionStatus(ctx, sessionID, models.StatusAnalyzing); err != nil && !errors.Is(err, store.ErrInvalidTransition) {
		return fmt.Errorf("set status analyzing: %w", err)
	}

	sources := make([]models.SourceRole, len(mappings))
	for i, m := range mappings {
		sources[i] = m.Source()
	}
	catalog, err := p.extendCatalog(ctx, sources)
	if err != nil {
		return err
	}
	if len(catalog) == 0 {
		return ErrNoStandardRoles
	}

	op := &StandardizeRoleOperation{
		Classifier: p.classifier,
		Roles:      p.store,
		Catalog:    catalog,
	}
	_, err = RunBatches(ctx, p.batch, sessionID, mappings, op, RunParams{Base: base})
	return err
}

// extendCatalog asks the model for standard roles covering sources and stores
// the ones not already in the catalog. It returns the full catalog.
func (p *Pipeline) extendCatalog(ctx context.Context, sources []models.SourceRole) ([]models.StandardRole, error) {
	existing, err := p.store.ListStandardRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load standard roles: %w", err)
	}

	generated, err := p.classifier.GenerateStandardRoles(ctx, sources)
	if err != nil {
		if errors.Is(err, classifier.ErrMalformedResponse) && len(existing) > 0 {
			p.logger.Warn("catalog generation unusable, mapping onto existing roles", "error", err)
			return existing, nil
		}
		return nil, err
	}

	added, err := p.addRoles(ctx, existing, generated)
	if err != nil {
		return nil, err
	}
	p.logger.Info("standard role catalog extended", "existing", len(existing), "added", len(added))
	return append(existing, added...), nil
}

// addRoles stores the roles whose title and level are not yet in existing.
func (p *Pipeline) addRoles(ctx context.Context, existing, roles []models.StandardRole) ([]models.StandardRole, error) {
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[r.Key()] = true
	}
	var fresh []models.StandardRole
	for _, r := range roles {
		if seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		fresh = append(fresh, r)
	}
	if len(fresh) == 0 {
		return nil, nil
	}
	added, err := p.store.CreateStandardRoles(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("store standard roles: %w", err)
	}
	return added, nil
}

// SeedRoles adds standard roles to the catalog, skipping ones that already
// exist by title and level.
func (p *Pipeline) SeedRoles(ctx context.Context, roles []models.StandardRole) ([]models.StandardRole, error) {
	for i, r := range roles {
		if err := models.Validate(r); err != nil {
			return nil, fmt.Errorf("%w: role %d: %v", store.ErrValidation, i, err)
		}
	}
	existing, err := p.store.ListStandardRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load standard roles: %w", err)
	}
	return p.addRoles(ctx, existing, roles)
}

// AssignSessionRoles starts a bulk assignment over the employees of an upload
// session that are still pending or found no match.
func (p *Pipeline) AssignSessionRoles(ctx context.Context, sessionID, createdBy string, mode AssignMode) (*models.UploadSession, error) {
	src, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if src.Kind != models.KindEmployeeUpload {
		return nil, fmt.Errorf("%w: session %s is a %s session", store.ErrValidation, sessionID, src.Kind)
	}
	if p.sessions.IsRunning(sessionID) {
		return nil, fmt.Errorf("%w: %s", ErrSessionBusy, sessionID)
	}

	employees, err := p.store.ListEmployees(ctx, store.EmployeeFilter{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range employees {
		if e.RoleAssignmentStatus == models.AssignmentPending || e.RoleAssignmentStatus == models.AssignmentNoMatch {
			ids = append(ids, e.ID)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: session %s has no unassigned employees", store.ErrValidation, sessionID)
	}

	return p.startEmployeeRun(ctx, models.KindBulkAssign, "Reassign "+src.Name, src.FileNames, createdBy, ids, mode)
}

// BulkAssign starts role assignment for an explicit list of employees.
func (p *Pipeline) BulkAssign(ctx context.Context, employeeIDs []string, createdBy string, mode AssignMode) (*models.UploadSession, error) {
	return p.startEmployeeRun(ctx, models.KindBulkAssign, "Bulk role assignment", []string{manualSelection}, createdBy, employeeIDs, mode)
}

// AssessSkills starts a skills assessment for an explicit list of employees.
func (p *Pipeline) AssessSkills(ctx context.Context, employeeIDs []string, createdBy string) (*models.UploadSession, error) {
	return p.startEmployeeRun(ctx, models.KindSkillsAssessment, "Skills assessment", []string{manualSelection}, createdBy, employeeIDs, "")
}

func (p *Pipeline) startEmployeeRun(ctx context.Context, kind models.SessionKind, name string, fileNames []string, createdBy string, ids []string, mode AssignMode) (*models.UploadSession, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no employee ids given", store.ErrValidation)
	}
	employees, err := p.store.GetEmployees(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(employees) != len(ids) {
		return nil, fmt.Errorf("%d of %d employees: %w", len(ids)-len(employees), len(ids), store.ErrNotFound)
	}

	// A suggestion never replaces a confirmed role.
	if kind == models.KindBulkAssign && mode == ModeSuggest {
		employees = slices.DeleteFunc(employees, func(e models.EmployeeRecord) bool {
			return e.RoleAssignmentStatus == models.AssignmentAssigned
		})
		if len(employees) == 0 {
			return nil, fmt.Errorf("%w: every selected employee already has an assigned role", store.ErrValidation)
		}
		ids = make([]string, len(employees))
		for i, e := range employees {
			ids[i] = e.ID
		}
	}

	sess, err := p.store.CreateSession(ctx, models.NewSession{
		Name:      name,
		Kind:      kind,
		FileNames: fileNames,
		TotalRows: len(employees),
		CreatedBy: createdBy,
		RecordIDs: ids,
	})
	if err != nil {
		return nil, err
	}

	if err := p.sessions.Start(sess.ID, kind, p.employeeRunner(sess.ID, kind, employees, mode)); err != nil {
		return nil, err
	}
	p.logger.Info("employee run accepted", "session_id", sess.ID, "kind", kind, "employees", len(employees))
	return sess, nil
}

// uniqueIDs drops empty and repeated ids, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (p *Pipeline) employeeRunner(sessionID string, kind models.SessionKind, employees []models.EmployeeRecord, mode AssignMode) Runner {
	if kind == models.KindSkillsAssessment {
		return func(ctx context.Context) error {
			return p.assessSkills(ctx, sessionID, employees)
		}
	}
	return func(ctx context.Context) error {
		return p.assignEmployees(ctx, sessionID, employees, mode, Tally{})
	}
}

func (p *Pipeline) assessSkills(ctx context.Context, sessionID string, employees []models.EmployeeRecord) error {
	roles, err := p.store.ListStandardRoles(ctx)
	if err != nil {
		return fmt.Errorf("load standard roles: %w", err)
	}
	op := &AssessSkillsOperation{
		Classifier: p.classifier,
		Employees:  p.store,
		Catalog:    catalogByID(roles),
	}
	_, err = RunBatches(ctx, p.batch, sessionID, employees, op, RunParams{})
	return err
}

// AssignRole sets an employee's standard role by hand.
func (p *Pipeline) AssignRole(ctx context.Context, employeeID, roleID string) (*models.EmployeeRecord, error) {
	if _, err := p.store.GetStandardRole(ctx, roleID); err != nil {
		return nil, err
	}
	if err := p.store.UpdateRoleAssignment(ctx, employeeID, models.Assign(roleID, 1)); err != nil {
		return nil, err
	}
	return p.store.GetEmployee(ctx, employeeID)
}

// GenerateJobDescription writes and stores a draft job description.
func (p *Pipeline) GenerateJobDescription(ctx context.Context, roleID string) (*models.JobDescription, error) {
	role, err := p.store.GetStandardRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	jd, err := p.classifier.GenerateJobDescription(ctx, *role)
	if err != nil {
		return nil, err
	}
	return p.store.SaveJobDescription(ctx, *jd)
}

// ResumeIncompleteSessions restarts runs for sessions left non-terminal by a
// previous process. Records already handled are counted, not reprocessed.
func (p *Pipeline) ResumeIncompleteSessions(ctx context.Context) error {
	sessions, err := p.store.ListIncompleteSessions(ctx)
	if err != nil {
		return fmt.Errorf("list incomplete sessions: %w", err)
	}
	if len(sessions) == 0 {
		p.logger.Info("no incomplete sessions to resume")
		return nil
	}
	p.logger.Info("found incomplete sessions", "count", len(sessions))

	for _, sess := range sessions {
		if p.sessions.IsRunning(sess.ID) {
			continue
		}
		run, err := p.resumeRunner(ctx, sess)
		if err != nil {
			p.logger.Warn("cannot resume session", "session_id", sess.ID, "error", err)
			if ferr := p.store.FailSession(ctx, sess.ID, models.StatusFailed, fmt.Sprintf("resume: %v", err)); ferr != nil {
				p.logger.Warn("failed to mark session failed", "session_id", sess.ID, "error", ferr)
			}
			continue
		}
		if err := p.sessions.Start(sess.ID, sess.Kind, run); err != nil {
			p.logger.Warn("failed to start resumed session", "session_id", sess.ID, "error", err)
			continue
		}
		p.logger.Info("resuming session", "session_id", sess.ID, "kind", sess.Kind, "status", sess.Status)
	}
	return nil
}

func (p *Pipeline) resumeRunner(ctx context.Context, sess models.UploadSession) (Runner, error) {
	switch sess.Kind {
	case models.KindEmployeeUpload:
		employees, err := p.store.ListEmployees(ctx, store.EmployeeFilter{SessionID: sess.ID})
		if err != nil {
			return nil, err
		}
		var pending []models.EmployeeRecord
		var base Tally
		for _, e := range employees {
			switch e.RoleAssignmentStatus {
			case models.AssignmentPending:
				pending = append(pending, e)
				continue
			case models.AssignmentAssigned, models.AssignmentSuggested:
				base.Assigned++
			}
			base.Processed++
			base.Completed++
		}
		mode := ModeSuggest
		if m, ok := sess.Progress.Extra[extraMode].(string); ok && AssignMode(m) == ModeAssign {
			mode = ModeAssign
		}
		return func(ctx context.Context) error {
			return p.assignEmployees(ctx, sess.ID, pending, mode, base)
		}, nil

	case models.KindRoleStandardization:
		mappings, err := p.store.ListRoleMappings(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		var pending []models.RoleMapping
		var base Tally
		for _, m := range mappings {
			if m.Status == models.MappingPending {
				pending = append(pending, m)
				continue
			}
			base.Processed++
			base.Completed++
			if m.Status == models.MappingMapped {
				base.Assigned++
			}
		}
		return func(ctx context.Context) error {
			return p.standardize(ctx, sess.ID, pending, base)
		}, nil

	case models.KindBulkAssign, models.KindSkillsAssessment:
		if len(sess.RecordIDs) == 0 {
			return nil, fmt.Errorf("session has no target employees")
		}
		employees, err := p.store.GetEmployees(ctx, sess.RecordIDs)
		if err != nil {
			return nil, err
		}
		mode := ModeSuggest
		if m, ok := sess.Progress.Extra[extraMode].(string); ok && AssignMode(m) == ModeAssign {
			mode = ModeAssign
		}
		return p.employeeRunner(sess.ID, sess.Kind, employees, mode), nil
	}
	return nil, fmt.Errorf("unknown session kind %q", sess.Kind)
}
