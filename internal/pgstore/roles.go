package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/xlsmart/talenthub/internal/models"
	"github.com/xlsmart/talenthub/internal/store"
)

var roleColumns = []string{
	"id", "title", "department", "job_family", "level", "category",
	"description", "required_skills", "created_at",
}

func scanRole(row scanner) (models.StandardRole, error) {
	var r models.StandardRole
	err := row.Scan(&r.ID, &r.Title, &r.Department, &r.JobFamily, &r.Level, &r.Category,
		&r.Description, (*pq.StringArray)(&r.RequiredSkills), &r.CreatedAt)
	return r, err
}

func (s *Store) CreateStandardRoles(ctx context.Context, roles []models.StandardRole) ([]models.StandardRole, error) {
	if len(roles) == 0 {
		return []models.StandardRole{}, nil
	}
	ins := psql.Insert("standard_roles").Columns(
		"id", "title", "department", "job_family", "level", "category", "description", "required_skills",
	)
	ids := make([]string, 0, len(roles))
	for _, r := range roles {
		if err := models.Validate(r); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		ins = ins.Values(r.ID, r.Title, r.Department, r.JobFamily, r.Level, r.Category,
			r.Description, pq.StringArray(nonNil(r.RequiredSkills)))
		ids = append(ids, r.ID)
	}
	if _, err := exec(ctx, s.db, ins, "create standard roles"); err != nil {
		return nil, err
	}
	b := psql.Select(roleColumns...).From("standard_roles").
		Where("id = ANY(?)", pq.StringArray(ids)).
		OrderBy("seq ASC")
	return queryRows(ctx, s.db, b, "reload standard roles", scanRole)
}

func (s *Store) GetStandardRole(ctx context.Context, id string) (*models.StandardRole, error) {
	b := psql.Select(roleColumns...).From("standard_roles").Where(sq.Eq{"id": id})
	rows, err := queryRows(ctx, s.db, b, "get standard role", scanRole)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("standard role %s: %w", id, store.ErrNotFound)
	}
	return &rows[0], nil
}

func (s *Store) ListStandardRoles(ctx context.Context) ([]models.StandardRole, error) {
	b := psql.Select(roleColumns...).From("standard_roles").OrderBy("seq ASC")
	return queryRows(ctx, s.db, b, "list standard roles", scanRole)
}

var mappingColumns = []string{
	"id", "session_id", "original_title", "original_department", "original_level",
	"source_company", "description", "standard_role_id", "confidence", "status", "created_at",
}

func scanMapping(row scanner) (models.RoleMapping, error) {
	var (
		m      models.RoleMapping
		roleID sql.NullString
	)
	err := row.Scan(&m.ID, &m.SessionID, &m.OriginalTitle, &m.OriginalDepartment, &m.OriginalLevel,
		&m.SourceCompany, &m.Description, &roleID, &m.Confidence, &m.Status, &m.CreatedAt)
	if roleID.Valid {
		m.StandardRoleID = &roleID.String
	}
	return m, err
}

func (s *Store) CreateRoleMappings(ctx context.Context, mappings []models.RoleMapping) ([]models.RoleMapping, error) {
	if len(mappings) == 0 {
		return []models.RoleMapping{}, nil
	}
	ins := psql.Insert("role_mappings").Columns(
		"id", "session_id", "original_title", "original_department", "original_level",
		"source_company", "description", "standard_role_id", "confidence", "status",
	)
	ids := make([]string, 0, len(mappings))
	for _, m := range mappings {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.Status == "" {
			m.Status = models.MappingPending
		}
		ins = ins.Values(m.ID, m.SessionID, m.OriginalTitle, m.OriginalDepartment, m.OriginalLevel,
			m.SourceCompany, m.Description, m.StandardRoleID, m.Confidence, m.Status)
		ids = append(ids, m.ID)
	}
	if _, err := exec(ctx, s.db, ins, "create role mappings"); err != nil {
		return nil, err
	}
	b := psql.Select(mappingColumns...).From("role_mappings").
		Where("id = ANY(?)", pq.StringArray(ids)).
		OrderBy("seq ASC")
	return queryRows(ctx, s.db, b, "reload role mappings", scanMapping)
}

func (s *Store) ListRoleMappings(ctx context.Context, sessionID string) ([]models.RoleMapping, error) {
	b := psql.Select(mappingColumns...).From("role_mappings").OrderBy("seq ASC")
	if sessionID != "" {
		b = b.Where(sq.Eq{"session_id": sessionID})
	}
	return queryRows(ctx, s.db, b, "list role mappings", scanMapping)
}

func (s *Store) UpdateRoleMapping(ctx context.Context, id string, status models.MappingStatus, standardRoleID *string, confidence float64) error {
	if status == models.MappingMapped && standardRoleID == nil {
		return fmt.Errorf("%w: mapped role mapping needs a standard role", store.ErrValidation)
	}
	upd := psql.Update("role_mappings").
		Set("status", status).
		Set("standard_role_id", standardRoleID).
		Set("confidence", confidence).
		Where(sq.Eq{"id": id})
	n, err := exec(ctx, s.db, upd, "update role mapping")
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("role mapping %s: %w", id, store.ErrNotFound)
	}
	return nil
}

var descriptionColumns = []string{
	"id", "standard_role_id", "title", "summary", "responsibilities", "qualifications", "status", "created_at",
}

func scanDescription(row scanner) (models.JobDescription, error) {
	var jd models.JobDescription
	err := row.Scan(&jd.ID, &jd.StandardRoleID, &jd.Title, &jd.Summary,
		(*pq.StringArray)(&jd.Responsibilities), (*pq.StringArray)(&jd.Qualifications), &jd.Status, &jd.CreatedAt)
	return jd, err
}

func (s *Store) SaveJobDescription(ctx context.Context, jd models.JobDescription) (*models.JobDescription, error) {
	if _, err := s.GetStandardRole(ctx, jd.StandardRoleID); err != nil {
		return nil, err
	}
	if jd.ID == "" {
		jd.ID = uuid.New().String()
	}
	if jd.Status == "" {
		jd.Status = "draft"
	}
	ins := psql.Insert("job_descriptions").
		Columns("id", "standard_role_id", "title", "summary", "responsibilities", "qualifications", "status").
		Values(jd.ID, jd.StandardRoleID, jd.Title, jd.Summary,
			pq.StringArray(nonNil(jd.Responsibilities)), pq.StringArray(nonNil(jd.Qualifications)), jd.Status).
		Suffix("RETURNING " + strings.Join(descriptionColumns, ", "))
	rows, err := queryRows(ctx, s.db, ins, "save job description", scanDescription)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("save job description: no row returned")
	}
	return &rows[0], nil
}

func (s *Store) ListJobDescriptions(ctx context.Context, standardRoleID string) ([]models.JobDescription, error) {
	b := psql.Select(descriptionColumns...).From("job_descriptions").OrderBy("seq ASC")
	if standardRoleID != "" {
		b = b.Where(sq.Eq{"standard_role_id": standardRoleID})
	}
	return queryRows(ctx, s.db, b, "list job descriptions", scanDescription)
}
