package service

import (
	"context"
	"fmt"

	"github.com/xlsmart/talenthub/internal/classifier"
	"github.com/xlsmart/talenthub/internal/models"
	"github.com/xlsmart/talenthub/internal/store"
)

// AssignMode controls what a role match does to an employee.
type AssignMode string

const (
	// ModeSuggest records the match as an AI suggestion for review.
	ModeSuggest AssignMode = "suggest"
	// ModeAssign sets the standard role directly.
	ModeAssign AssignMode = "assign"
)

// ParseAssignMode maps the autoAssign flag of the upload API to a mode.
func ParseAssignMode(autoAssign bool) AssignMode {
	if autoAssign {
		return ModeAssign
	}
	return ModeSuggest
}

// AssignRoleOperation classifies employees against the standard role catalog.
type AssignRoleOperation struct {
	Classifier *classifier.Classifier
	Employees  store.EmployeeStore
	Roles      []models.StandardRole
	Mode       AssignMode
}

var _ RecordOperation[models.EmployeeRecord] = (*AssignRoleOperation)(nil)

func (o *AssignRoleOperation) Name() string { return "assign_role" }

func (o *AssignRoleOperation) Statuses() (models.SessionStatus, models.SessionStatus) {
	return models.StatusAssigningRoles, models.StatusRolesAssigned
}

func (o *AssignRoleOperation) Label(e models.EmployeeRecord) string {
	if e.EmployeeNumber != "" {
		return e.EmployeeNumber
	}
	return e.ID
}

func (o *AssignRoleOperation) Apply(ctx context.Context, e models.EmployeeRecord) (Outcome, error) {
	if o.Mode == ModeSuggest && e.RoleAssignmentStatus == models.AssignmentAssigned {
		return OutcomeCompleted, nil
	}

	res, err := o.Classifier.ClassifyEmployee(ctx, e, o.Roles)
	if err != nil {
		return OutcomeCompleted, err
	}

	roleID, ok := res.ID()
	if !ok {
		if err := o.Employees.UpdateRoleAssignment(ctx, e.ID, models.NoMatch()); err != nil {
			return OutcomeCompleted, fmt.Errorf("record no match: %w", err)
		}
		return OutcomeNoMatch, nil
	}

	a := models.Suggest(roleID, res.Confidence())
	if o.Mode == ModeAssign {
		a = models.Assign(roleID, res.Confidence())
	}
	if err := o.Employees.UpdateRoleAssignment(ctx, e.ID, a); err != nil {
		return OutcomeCompleted, fmt.Errorf("record assignment: %w", err)
	}
	return OutcomeMatched, nil
}

// StandardizeRoleOperation maps source-company roles onto standard roles.
type StandardizeRoleOperation struct {
	Classifier *classifier.Classifier
	Roles      store.RoleStore
	Catalog    []models.StandardRole
}

var _ RecordOperation[models.RoleMapping] = (*StandardizeRoleOperation)(nil)

func (o *StandardizeRoleOperation) Name() string { return "standardize_role" }

func (o *StandardizeRoleOperation) Statuses() (models.SessionStatus, models.SessionStatus) {
	return models.StatusStandardizing, ""
}

func (o *StandardizeRoleOperation) Label(m models.RoleMapping) string { return m.OriginalTitle }

func (o *StandardizeRoleOperation) Apply(ctx context.Context, m models.RoleMapping) (Outcome, error) {
	res, err := o.Classifier.ClassifyRole(ctx, m.Source(), o.Catalog)
	if err != nil {
		return OutcomeCompleted, err
	}

	roleID, ok := res.ID()
	if !ok {
		if err := o.Roles.UpdateRoleMapping(ctx, m.ID, models.MappingNoMatch, nil, 0); err != nil {
			return OutcomeCompleted, fmt.Errorf("record no match: %w", err)
		}
		return OutcomeNoMatch, nil
	}
	if err := o.Roles.UpdateRoleMapping(ctx, m.ID, models.MappingMapped, &roleID, res.Confidence()); err != nil {
		return OutcomeCompleted, fmt.Errorf("record mapping: %w", err)
	}
	return OutcomeMatched, nil
}

// AssessSkillsOperation scores employees against their assigned or suggested
// role.
type AssessSkillsOperation struct {
	Classifier *classifier.Classifier
	Employees  store.EmployeeStore
	Catalog    map[string]models.StandardRole
}

var _ RecordOperation[models.EmployeeRecord] = (*AssessSkillsOperation)(nil)

func (o *AssessSkillsOperation) Name() string { return "assess_skills" }

func (o *AssessSkillsOperation) Statuses() (models.SessionStatus, models.SessionStatus) {
	return models.StatusAnalyzing, ""
}

func (o *AssessSkillsOperation) Label(e models.EmployeeRecord) string {
	if e.EmployeeNumber != "" {
		return e.EmployeeNumber
	}
	return e.ID
}

func (o *AssessSkillsOperation) Apply(ctx context.Context, e models.EmployeeRecord) (Outcome, error) {
	roleID, ok := e.RoleForAssessment()
	if !ok {
		return OutcomeCompleted, fmt.Errorf("employee has no assigned or suggested role")
	}
	role, ok := o.Catalog[roleID]
	if !ok {
		return OutcomeCompleted, fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}

	a, err := o.Classifier.AssessSkills(ctx, e, role)
	if err != nil {
		return OutcomeCompleted, err
	}
	if err := o.Employees.UpdateSkillsAssessment(ctx, e.ID, *a); err != nil {
		return OutcomeCompleted, fmt.Errorf("record assessment: %w", err)
	}
	return OutcomeCompleted, nil
}

func catalogByID(roles []models.StandardRole) map[string]models.StandardRole {
	out := make(map[string]models.StandardRole, len(roles))
	for _, r := range roles {
		out[r.ID] = r
	}
	return out
}
