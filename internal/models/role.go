package models

import (
	"strings"
	"time"
)

// StandardRole is a canonical job-role definition.
type StandardRole struct {
	ID             string    `json:"id" yaml:"id,omitempty"`
	Title          string    `json:"title" yaml:"title" validate:"required"`
	Department     string    `json:"department" yaml:"department"`
	JobFamily      string    `json:"job_family" yaml:"job_family"`
	Level          string    `json:"level" yaml:"level"`
	Category       string    `json:"category" yaml:"category"`
	Description    string    `json:"description" yaml:"description"`
	RequiredSkills []string  `json:"required_skills" yaml:"required_skills"`
	CreatedAt      time.Time `json:"created_at" yaml:"-"`
}

// Key identifies a role by normalized title and level, used to dedupe
// generated catalogs.
func (r StandardRole) Key() string {
	return strings.ToLower(strings.TrimSpace(r.Title)) + "|" + strings.ToLower(strings.TrimSpace(r.Level))
}

// SourceRole is a role row from an uploaded source-company spreadsheet.
type SourceRole struct {
	Title         string `json:"title"`
	Department    string `json:"department,omitempty"`
	Level         string `json:"level,omitempty"`
	SourceCompany string `json:"source_company,omitempty"`
	Description   string `json:"description,omitempty"`
}

// MappingStatus is the outcome of standardizing one source role.
type MappingStatus string

const (
	MappingPending MappingStatus = "pending"
	MappingMapped  MappingStatus = "mapped"
	MappingNoMatch MappingStatus = "no_match"
)

// RoleMapping links a source-company role to a StandardRole.
type RoleMapping struct {
	ID                 string        `json:"id"`
	SessionID          string        `json:"session_id"`
	OriginalTitle      string        `json:"original_title"`
	OriginalDepartment string        `json:"original_department,omitempty"`
	OriginalLevel      string        `json:"original_level,omitempty"`
	SourceCompany      string        `json:"source_company,omitempty"`
	Description        string        `json:"description,omitempty"`
	StandardRoleID     *string       `json:"standard_role_id,omitempty"`
	Confidence         float64       `json:"confidence"`
	Status             MappingStatus `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
}

// Source returns the mapping's source role.
func (m RoleMapping) Source() SourceRole {
	return SourceRole{
		Title:         m.OriginalTitle,
		Department:    m.OriginalDepartment,
		Level:         m.OriginalLevel,
		SourceCompany: m.SourceCompany,
		Description:   m.Description,
	}
}

// JobDescription is a generated description for a standard role.
type JobDescription struct {
	ID               string    `json:"id"`
	StandardRoleID   string    `json:"standard_role_id"`
	Title            string    `json:"title"`
	Summary          string    `json:"summary"`
	Responsibilities []string  `json:"responsibilities"`
	Qualifications   []string  `json:"qualifications"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}
