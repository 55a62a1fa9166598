package db

import (
	"fmt"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/xlsmart/talenthub/internal/models"
)

// Table names.
const (
	tableSession     = "upload_session"
	tableEmployee    = "employee"
	tableRole        = "standard_role"
	tableMapping     = "role_mapping"
	tableDescription = "job_description"
)

func recordID(table, id string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(table, id)
}

// Rows mirror the models but carry SurrealDB record ids. Timestamps are
// left out of writes so the schema defaults apply.

type sessionRow struct {
	ID           surrealmodels.RecordID `json:"id"`
	Name         string                 `json:"name"`
	Kind         models.SessionKind     `json:"kind"`
	FileNames    []string               `json:"file_names"`
	TotalRows    int                    `json:"total_rows"`
	Status       models.SessionStatus   `json:"status"`
	Progress     models.Progress        `json:"progress"`
	ErrorMessage *string                `json:"error_message,omitempty"`
	CreatedBy    string                 `json:"created_by"`
	RecordIDs    []string               `json:"record_ids,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

func (r sessionRow) model() (models.UploadSession, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.UploadSession{}, fmt.Errorf("session id: %w", err)
	}
	return models.UploadSession{
		ID:           id,
		Name:         r.Name,
		Kind:         r.Kind,
		FileNames:    r.FileNames,
		TotalRows:    r.TotalRows,
		Status:       r.Status,
		Progress:     r.Progress,
		ErrorMessage: r.ErrorMessage,
		CreatedBy:    r.CreatedBy,
		RecordIDs:    r.RecordIDs,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

type employeeRow struct {
	ID                   surrealmodels.RecordID      `json:"id"`
	SessionID            string                      `json:"session_id"`
	EmployeeNumber       string                      `json:"employee_number"`
	Name                 string                      `json:"name"`
	Email                string                      `json:"email"`
	SourceCompany        string                      `json:"source_company"`
	Position             string                      `json:"position"`
	Department           string                      `json:"department"`
	Level                string                      `json:"level"`
	YearsExperience      int                         `json:"years_experience"`
	Skills               []string                    `json:"skills"`
	Certifications       []string                    `json:"certifications"`
	StandardRoleID       *string                     `json:"standard_role_id,omitempty"`
	AISuggestedRoleID    *string                     `json:"ai_suggested_role_id,omitempty"`
	RoleAssignmentStatus models.RoleAssignmentStatus `json:"role_assignment_status"`
	AssignmentConfidence *float64                    `json:"assignment_confidence,omitempty"`
	SkillsAssessment     *models.SkillsAssessment    `json:"skills_assessment,omitempty"`
	CreatedAt            time.Time                   `json:"created_at"`
	UpdatedAt            time.Time                   `json:"updated_at"`
}

func (r employeeRow) model() (models.EmployeeRecord, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.EmployeeRecord{}, fmt.Errorf("employee id: %w", err)
	}
	return models.EmployeeRecord{
		ID:                   id,
		SessionID:            r.SessionID,
		EmployeeNumber:       r.EmployeeNumber,
		Name:                 r.Name,
		Email:                r.Email,
		SourceCompany:        r.SourceCompany,
		Position:             r.Position,
		Department:           r.Department,
		Level:                r.Level,
		YearsExperience:      r.YearsExperience,
		Skills:               nonNil(r.Skills),
		Certifications:       nonNil(r.Certifications),
		StandardRoleID:       r.StandardRoleID,
		AISuggestedRoleID:    r.AISuggestedRoleID,
		RoleAssignmentStatus: r.RoleAssignmentStatus,
		AssignmentConfidence: r.AssignmentConfidence,
		SkillsAssessment:     r.SkillsAssessment,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}, nil
}

func employeeContent(e models.EmployeeRecord, seq int) map[string]any {
	return map[string]any{
		"id":                     recordID(tableEmployee, e.ID),
		"seq":                    seq,
		"session_id":             e.SessionID,
		"employee_number":        e.EmployeeNumber,
		"name":                   e.Name,
		"email":                  e.Email,
		"source_company":         e.SourceCompany,
		"position":               e.Position,
		"department":             e.Department,
		"level":                  e.Level,
		"years_experience":       e.YearsExperience,
		"skills":                 nonNil(e.Skills),
		"certifications":         nonNil(e.Certifications),
		"standard_role_id":       e.StandardRoleID,
		"ai_suggested_role_id":   e.AISuggestedRoleID,
		"role_assignment_status": e.RoleAssignmentStatus,
		"assignment_confidence":  e.AssignmentConfidence,
	}
}

type roleRow struct {
	ID             surrealmodels.RecordID `json:"id"`
	Title          string                 `json:"title"`
	Department     string                 `json:"department"`
	JobFamily      string                 `json:"job_family"`
	Level          string                 `json:"level"`
	Category       string                 `json:"category"`
	Description    string                 `json:"description"`
	RequiredSkills []string               `json:"required_skills"`
	CreatedAt      time.Time              `json:"created_at"`
}

func (r roleRow) model() (models.StandardRole, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.StandardRole{}, fmt.Errorf("standard role id: %w", err)
	}
	return models.StandardRole{
		ID:             id,
		Title:          r.Title,
		Department:     r.Department,
		JobFamily:      r.JobFamily,
		Level:          r.Level,
		Category:       r.Category,
		Description:    r.Description,
		RequiredSkills: nonNil(r.RequiredSkills),
		CreatedAt:      r.CreatedAt,
	}, nil
}

type mappingRow struct {
	ID                 surrealmodels.RecordID `json:"id"`
	SessionID          string                 `json:"session_id"`
	OriginalTitle      string                 `json:"original_title"`
	OriginalDepartment string                 `json:"original_department"`
	OriginalLevel      string                 `json:"original_level"`
	SourceCompany      string                 `json:"source_company"`
	Description        string                 `json:"description"`
	StandardRoleID     *string                `json:"standard_role_id,omitempty"`
	Confidence         float64                `json:"confidence"`
	Status             models.MappingStatus   `json:"status"`
	CreatedAt          time.Time              `json:"created_at"`
}

func (r mappingRow) model() (models.RoleMapping, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.RoleMapping{}, fmt.Errorf("role mapping id: %w", err)
	}
	return models.RoleMapping{
		ID:                 id,
		SessionID:          r.SessionID,
		OriginalTitle:      r.OriginalTitle,
		OriginalDepartment: r.OriginalDepartment,
		OriginalLevel:      r.OriginalLevel,
		SourceCompany:      r.SourceCompany,
		Description:        r.Description,
		StandardRoleID:     r.StandardRoleID,
		Confidence:         r.Confidence,
		Status:             r.Status,
		CreatedAt:          r.CreatedAt,
	}, nil
}

type descriptionRow struct {
	ID               surrealmodels.RecordID `json:"id"`
	StandardRoleID   string                 `json:"standard_role_id"`
	Title            string                 `json:"title"`
	Summary          string                 `json:"summary"`
	Responsibilities []string               `json:"responsibilities"`
	Qualifications   []string               `json:"qualifications"`
	Status           string                 `json:"status"`
	CreatedAt        time.Time              `json:"created_at"`
}

func (r descriptionRow) model() (models.JobDescription, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.JobDescription{}, fmt.Errorf("job description id: %w", err)
	}
	return models.JobDescription{
		ID:               id,
		StandardRoleID:   r.StandardRoleID,
		Title:            r.Title,
		Summary:          r.Summary,
		Responsibilities: nonNil(r.Responsibilities),
		Qualifications:   nonNil(r.Qualifications),
		Status:           r.Status,
		CreatedAt:        r.CreatedAt,
	}, nil
}

// convert maps rows to models, stopping at the first bad id.
func convert[R interface{ model() (M, error) }, M any](rows []R) ([]M, error) {
	out := make([]M, 0, len(rows))
	for _, r := range rows {
		m, err := r.model()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
