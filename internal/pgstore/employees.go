package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/xlsmart/talenthub/internal/models"
	"github.com/xlsmart/talenthub/internal/store"
)

var employeeColumns = []string{
	"id", "session_id", "employee_number", "name", "email", "source_company",
	"position", "department", "level", "years_experience", "skills", "certifications",
	"standard_role_id", "ai_suggested_role_id", "role_assignment_status",
	"assignment_confidence", "skills_assessment", "created_at", "updated_at",
}

func scanEmployee(row scanner) (models.EmployeeRecord, error) {
	var (
		e          models.EmployeeRecord
		roleID     sql.NullString
		suggested  sql.NullString
		confidence sql.NullFloat64
		assessment []byte
	)
	err := row.Scan(
		&e.ID, &e.SessionID, &e.EmployeeNumber, &e.Name, &e.Email, &e.SourceCompany,
		&e.Position, &e.Department, &e.Level, &e.YearsExperience,
		(*pq.StringArray)(&e.Skills), (*pq.StringArray)(&e.Certifications),
		&roleID, &suggested, &e.RoleAssignmentStatus, &confidence, &assessment,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return e, err
	}
	if roleID.Valid {
		e.StandardRoleID = &roleID.String
	}
	if suggested.Valid {
		e.AISuggestedRoleID = &suggested.String
	}
	if confidence.Valid {
		e.AssignmentConfidence = &confidence.Float64
	}
	if assessment != nil {
		var a models.SkillsAssessment
		if err := json.Unmarshal(assessment, &a); err != nil {
			return e, fmt.Errorf("decode skills assessment: %w", err)
		}
		e.SkillsAssessment = &a
	}
	return e, nil
}

func (s *Store) CreateEmployees(ctx context.Context, employees []models.EmployeeRecord) ([]models.EmployeeRecord, error) {
	if len(employees) == 0 {
		return []models.EmployeeRecord{}, nil
	}
	ins := psql.Insert("employees").Columns(
		"id", "session_id", "employee_number", "name", "email", "source_company",
		"position", "department", "level", "years_experience", "skills", "certifications",
		"standard_role_id", "ai_suggested_role_id", "role_assignment_status", "assignment_confidence",
	)
	ids := make([]string, 0, len(employees))
	for _, e := range employees {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.RoleAssignmentStatus == "" {
			e.RoleAssignmentStatus = models.AssignmentPending
		}
		if err := e.Check(); err != nil {
			return nil, fmt.Errorf("%w: employee %s: %v", store.ErrValidation, e.EmployeeNumber, err)
		}
		ins = ins.Values(
			e.ID, e.SessionID, e.EmployeeNumber, e.Name, e.Email, e.SourceCompany,
			e.Position, e.Department, e.Level, e.YearsExperience,
			pq.StringArray(nonNil(e.Skills)), pq.StringArray(nonNil(e.Certifications)),
			e.StandardRoleID, e.AISuggestedRoleID, e.RoleAssignmentStatus, e.AssignmentConfidence,
		)
		ids = append(ids, e.ID)
	}
	if _, err := exec(ctx, s.db, ins, "create employees"); err != nil {
		return nil, err
	}
	return s.GetEmployees(ctx, ids)
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*models.EmployeeRecord, error) {
	b := psql.Select(employeeColumns...).From("employees").Where(sq.Eq{"id": id})
	rows, err := queryRows(ctx, s.db, b, "get employee", scanEmployee)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("employee %s: %w", id, store.ErrNotFound)
	}
	return &rows[0], nil
}

// GetEmployees returns the employees that exist among ids, in insertion
// order. Missing ids are skipped.
func (s *Store) GetEmployees(ctx context.Context, ids []string) ([]models.EmployeeRecord, error) {
	if len(ids) == 0 {
		return []models.EmployeeRecord{}, nil
	}
	b := psql.Select(employeeColumns...).From("employees").
		Where("id = ANY(?)", pq.StringArray(ids)).
		OrderBy("seq ASC")
	return queryRows(ctx, s.db, b, "get employees", scanEmployee)
}

func (s *Store) ListEmployees(ctx context.Context, f store.EmployeeFilter) ([]models.EmployeeRecord, error) {
	b := psql.Select(employeeColumns...).From("employees").OrderBy("seq ASC")
	if f.SessionID != "" {
		b = b.Where(sq.Eq{"session_id": f.SessionID})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"role_assignment_status": f.Status})
	}
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	return queryRows(ctx, s.db, b, "list employees", scanEmployee)
}

// UpdateRoleAssignment relies on the employees foreign keys to reject
// unknown role ids.
func (s *Store) UpdateRoleAssignment(ctx context.Context, id string, a models.RoleAssignment) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		b := psql.Select(employeeColumns...).From("employees").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE")
		rows, err := queryRows(ctx, tx, b, "lock employee", scanEmployee)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("employee %s: %w", id, store.ErrNotFound)
		}
		if err := store.ApplyAssignment(&rows[0], a); err != nil {
			return err
		}
		upd := psql.Update("employees").
			Set("role_assignment_status", a.Status).
			Set("standard_role_id", a.StandardRoleID).
			Set("ai_suggested_role_id", a.AISuggestedRoleID).
			Set("assignment_confidence", a.Confidence).
			Set("updated_at", sq.Expr("NOW()")).
			Where(sq.Eq{"id": id})
		_, err = exec(ctx, tx, upd, "update role assignment")
		return err
	})
}

func (s *Store) UpdateSkillsAssessment(ctx context.Context, id string, a models.SkillsAssessment) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode skills assessment: %w", err)
	}
	upd := psql.Update("employees").
		Set("skills_assessment", string(data)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id})
	n, err := exec(ctx, s.db, upd, "update skills assessment")
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("employee %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
