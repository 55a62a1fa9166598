package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/xlsmart/talenthub/internal/models"
	"github.com/xlsmart/talenthub/internal/store"
)

// CreateStandardRoles inserts roles in one statement. A duplicate id fails
// the whole insert with ErrAlreadyExists.
func (c *Client) CreateStandardRoles(ctx context.Context, roles []models.StandardRole) ([]models.StandardRole, error) {
	if len(roles) == 0 {
		return []models.StandardRole{}, nil
	}
	content := make([]map[string]any, 0, len(roles))
	for i, r := range roles {
		if err := models.Validate(r); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		content = append(content, map[string]any{
			"id":              recordID(tableRole, r.ID),
			"seq":             i,
			"title":           r.Title,
			"department":      r.Department,
			"job_family":      r.JobFamily,
			"level":           r.Level,
			"category":        r.Category,
			"description":     r.Description,
			"required_skills": nonNil(r.RequiredSkills),
		})
	}
	rows, err := query[roleRow](ctx, c, "create standard roles",
		`INSERT INTO standard_role $rows RETURN AFTER`, map[string]any{"rows": content})
	if err != nil {
		return nil, err
	}
	return convert[roleRow, models.StandardRole](rows)
}

func (c *Client) GetStandardRole(ctx context.Context, id string) (*models.StandardRole, error) {
	rows, err := query[roleRow](ctx, c, "get standard role",
		`SELECT * FROM type::record("standard_role", $id)`, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("standard role %s: %w", id, store.ErrNotFound)
	}
	r, err := rows[0].model()
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ListStandardRoles(ctx context.Context) ([]models.StandardRole, error) {
	rows, err := query[roleRow](ctx, c, "list standard roles",
		`SELECT * FROM standard_role ORDER BY created_at ASC, seq ASC`, nil)
	if err != nil {
		return nil, err
	}
	return convert[roleRow, models.StandardRole](rows)
}

func (c *Client) CreateRoleMappings(ctx context.Context, mappings []models.RoleMapping) ([]models.RoleMapping, error) {
	if len(mappings) == 0 {
		return []models.RoleMapping{}, nil
	}
	content := make([]map[string]any, 0, len(mappings))
	for i, rm := range mappings {
		if rm.ID == "" {
			rm.ID = uuid.New().String()
		}
		if rm.Status == "" {
			rm.Status = models.MappingPending
		}
		content = append(content, map[string]any{
			"id":                  recordID(tableMapping, rm.ID),
			"seq":                 i,
			"session_id":          rm.SessionID,
			"original_title":      rm.OriginalTitle,
			"original_department": rm.OriginalDepartment,
			"original_level":      rm.OriginalLevel,
			"source_company":      rm.SourceCompany,
			"description":         rm.Description,
			"standard_role_id":    rm.StandardRoleID,
			"confidence":          rm.Confidence,
			"status":              rm.Status,
		})
	}
	rows, err := query[mappingRow](ctx, c, "create role mappings",
		`INSERT INTO role_mapping $rows RETURN AFTER`, map[string]any{"rows": content})
	if err != nil {
		return nil, err
	}
	return convert[mappingRow, models.RoleMapping](rows)
}

func (c *Client) ListRoleMappings(ctx context.Context, sessionID string) ([]models.RoleMapping, error) {
	sql := "SELECT * FROM role_mapping"
	vars := map[string]any{}
	if sessionID != "" {
		sql += " WHERE session_id = $session_id"
		vars["session_id"] = sessionID
	}
	sql += " ORDER BY created_at ASC, seq ASC"

	rows, err := query[mappingRow](ctx, c, "list role mappings", sql, vars)
	if err != nil {
		return nil, err
	}
	return convert[mappingRow, models.RoleMapping](rows)
}

func (c *Client) UpdateRoleMapping(ctx context.Context, id string, status models.MappingStatus, standardRoleID *string, confidence float64) error {
	if status == models.MappingMapped && standardRoleID == nil {
		return fmt.Errorf("%w: mapped role mapping needs a standard role", store.ErrValidation)
	}
	if err := c.checkRoleRefs(ctx, standardRoleID); err != nil {
		return err
	}
	rows, err := query[mappingRow](ctx, c, "update role mapping", `
		UPDATE type::record("role_mapping", $id) SET
			status = $status,
			standard_role_id = $standard_role_id,
			confidence = $confidence
		RETURN AFTER
	`, map[string]any{
		"id":               id,
		"status":           status,
		"standard_role_id": standardRoleID,
		"confidence":       confidence,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("role mapping %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (c *Client) SaveJobDescription(ctx context.Context, jd models.JobDescription) (*models.JobDescription, error) {
	if _, err := c.GetStandardRole(ctx, jd.StandardRoleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("save job description: %w", err)
	}
	if jd.ID == "" {
		jd.ID = uuid.New().String()
	}
	if jd.Status == "" {
		jd.Status = "draft"
	}
	rows, err := query[descriptionRow](ctx, c, "save job description", `
		UPSERT type::record("job_description", $id) CONTENT {
			standard_role_id: $standard_role_id,
			title: $title,
			summary: $summary,
			responsibilities: $responsibilities,
			qualifications: $qualifications,
			status: $status
		} RETURN AFTER
	`, map[string]any{
		"id":               jd.ID,
		"standard_role_id": jd.StandardRoleID,
		"title":            jd.Title,
		"summary":          jd.Summary,
		"responsibilities": nonNil(jd.Responsibilities),
		"qualifications":   nonNil(jd.Qualifications),
		"status":           jd.Status,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("save job description: no row returned")
	}
	out, err := rows[0].model()
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListJobDescriptions(ctx context.Context, standardRoleID string) ([]models.JobDescription, error) {
	sql := "SELECT * FROM job_description"
	vars := map[string]any{}
	if standardRoleID != "" {
		sql += " WHERE standard_role_id = $role"
		vars["role"] = standardRoleID
	}
	sql += " ORDER BY created_at ASC"

	rows, err := query[descriptionRow](ctx, c, "list job descriptions", sql, vars)
	if err != nil {
		return nil, err
	}
	return convert[descriptionRow, models.JobDescription](rows)
}
