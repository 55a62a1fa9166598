package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/xlsmart/talenthub/internal/models"
	"github.com/xlsmart/talenthub/internal/store"
)

func (c *Client) CreateEmployees(ctx context.Context, employees []models.EmployeeRecord) ([]models.EmployeeRecord, error) {
	if len(employees) == 0 {
		return []models.EmployeeRecord{}, nil
	}
	content := make([]map[string]any, 0, len(employees))
	for i, e := range employees {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.RoleAssignmentStatus == "" {
			e.RoleAssignmentStatus = models.AssignmentPending
		}
		if err := e.Check(); err != nil {
			return nil, fmt.Errorf("%w: employee %s: %v", store.ErrValidation, e.EmployeeNumber, err)
		}
		content = append(content, employeeContent(e, i))
	}

	rows, err := query[employeeRow](ctx, c, "create employees",
		`INSERT INTO employee $rows RETURN AFTER`, map[string]any{"rows": content})
	if err != nil {
		return nil, err
	}
	return convert[employeeRow, models.EmployeeRecord](rows)
}

func (c *Client) GetEmployee(ctx context.Context, id string) (*models.EmployeeRecord, error) {
	rows, err := query[employeeRow](ctx, c, "get employee",
		`SELECT * FROM type::record("employee", $id)`, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("employee %s: %w", id, store.ErrNotFound)
	}
	e, err := rows[0].model()
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEmployees returns the employees that exist among ids. Missing ids are
// skipped.
func (c *Client) GetEmployees(ctx context.Context, ids []string) ([]models.EmployeeRecord, error) {
	if len(ids) == 0 {
		return []models.EmployeeRecord{}, nil
	}
	refs := make([]any, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, recordID(tableEmployee, id))
	}
	rows, err := query[employeeRow](ctx, c, "get employees",
		`SELECT * FROM $refs`, map[string]any{"refs": refs})
	if err != nil {
		return nil, err
	}
	return convert[employeeRow, models.EmployeeRecord](rows)
}

func (c *Client) ListEmployees(ctx context.Context, f store.EmployeeFilter) ([]models.EmployeeRecord, error) {
	var where []string
	vars := map[string]any{}
	if f.SessionID != "" {
		where = append(where, "session_id = $session_id")
		vars["session_id"] = f.SessionID
	}
	if f.Status != "" {
		where = append(where, "role_assignment_status = $status")
		vars["status"] = f.Status
	}

	sql := "SELECT * FROM employee"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY created_at ASC, seq ASC"
	if f.Limit > 0 {
		sql += " LIMIT $limit"
		vars["limit"] = f.Limit
	}

	rows, err := query[employeeRow](ctx, c, "list employees", sql, vars)
	if err != nil {
		return nil, err
	}
	return convert[employeeRow, models.EmployeeRecord](rows)
}

func (c *Client) UpdateRoleAssignment(ctx context.Context, id string, a models.RoleAssignment) error {
	e, err := c.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	if err := c.checkRoleRefs(ctx, a.StandardRoleID, a.AISuggestedRoleID); err != nil {
		return err
	}
	if err := store.ApplyAssignment(e, a); err != nil {
		return err
	}
	_, err = query[employeeRow](ctx, c, "update role assignment", `
		UPDATE type::record("employee", $id) SET
			role_assignment_status = $status,
			standard_role_id = $standard_role_id,
			ai_suggested_role_id = $ai_suggested_role_id,
			assignment_confidence = $confidence,
			updated_at = time::now()
	`, map[string]any{
		"id":                   id,
		"status":               a.Status,
		"standard_role_id":     a.StandardRoleID,
		"ai_suggested_role_id": a.AISuggestedRoleID,
		"confidence":           a.Confidence,
	})
	return err
}

func (c *Client) UpdateSkillsAssessment(ctx context.Context, id string, a models.SkillsAssessment) error {
	rows, err := query[employeeRow](ctx, c, "update skills assessment", `
		UPDATE type::record("employee", $id) SET
			skills_assessment = $assessment,
			updated_at = time::now()
		RETURN AFTER
	`, map[string]any{"id": id, "assessment": a})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("employee %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// checkRoleRefs stands in for foreign keys: every non-nil id must name an
// existing standard role.
func (c *Client) checkRoleRefs(ctx context.Context, ids ...*string) error {
	for _, ref := range ids {
		if ref == nil {
			continue
		}
		_, err := c.GetStandardRole(ctx, *ref)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: unknown standard role %s", store.ErrValidation, *ref)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
