package models

import (
	"errors"
	"time"
)

// RoleAssignmentStatus tracks how an employee was matched to a standard role.
type RoleAssignmentStatus string

const (
	AssignmentPending   RoleAssignmentStatus = "pending"
	AssignmentSuggested RoleAssignmentStatus = "ai_suggested"
	AssignmentAssigned  RoleAssignmentStatus = "assigned"
	AssignmentNoMatch   RoleAssignmentStatus = "ai_no_match"
)

// Valid reports whether s is a known assignment status.
func (s RoleAssignmentStatus) Valid() bool {
	switch s {
	case AssignmentPending, AssignmentSuggested, AssignmentAssigned, AssignmentNoMatch:
		return true
	}
	return false
}

// EmployeeRecord is one uploaded employee row.
type EmployeeRecord struct {
	ID                   string               `json:"id"`
	SessionID            string               `json:"session_id"`
	EmployeeNumber       string               `json:"employee_number"`
	Name                 string               `json:"name"`
	Email                string               `json:"email,omitempty"`
	SourceCompany        string               `json:"source_company,omitempty"`
	Position             string               `json:"position"`
	Department           string               `json:"department,omitempty"`
	Level                string               `json:"level,omitempty"`
	YearsExperience      int                  `json:"years_experience"`
	Skills               []string             `json:"skills"`
	Certifications       []string             `json:"certifications"`
	StandardRoleID       *string              `json:"standard_role_id,omitempty"`
	AISuggestedRoleID    *string              `json:"ai_suggested_role_id,omitempty"`
	RoleAssignmentStatus RoleAssignmentStatus `json:"role_assignment_status"`
	AssignmentConfidence *float64             `json:"assignment_confidence,omitempty"`
	SkillsAssessment     *SkillsAssessment    `json:"skills_assessment,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

// RoleAssignment is the set of role fields written by the batch processor.
type RoleAssignment struct {
	Status            RoleAssignmentStatus
	StandardRoleID    *string
	AISuggestedRoleID *string
	Confidence        *float64
}

// Suggest builds an assignment that records an AI suggestion only.
func Suggest(roleID string, confidence float64) RoleAssignment {
	return RoleAssignment{Status: AssignmentSuggested, AISuggestedRoleID: &roleID, Confidence: &confidence}
}

// Assign builds an assignment that sets the standard role.
func Assign(roleID string, confidence float64) RoleAssignment {
	return RoleAssignment{Status: AssignmentAssigned, StandardRoleID: &roleID, AISuggestedRoleID: &roleID, Confidence: &confidence}
}

// NoMatch builds an assignment recording that the classifier found nothing.
func NoMatch() RoleAssignment {
	return RoleAssignment{Status: AssignmentNoMatch}
}

// Apply writes a onto e.
func (e *EmployeeRecord) Apply(a RoleAssignment) {
	e.RoleAssignmentStatus = a.Status
	e.StandardRoleID = a.StandardRoleID
	e.AISuggestedRoleID = a.AISuggestedRoleID
	e.AssignmentConfidence = a.Confidence
}

// ErrAssignmentInvariant is returned when role fields contradict the status.
var ErrAssignmentInvariant = errors.New("role assignment fields inconsistent with status")

// Check enforces the role assignment invariants.
func (e *EmployeeRecord) Check() error {
	if !e.RoleAssignmentStatus.Valid() {
		return ErrAssignmentInvariant
	}
	switch e.RoleAssignmentStatus {
	case AssignmentAssigned:
		if e.StandardRoleID == nil || *e.StandardRoleID == "" {
			return ErrAssignmentInvariant
		}
	case AssignmentSuggested:
		if e.AISuggestedRoleID == nil || *e.AISuggestedRoleID == "" || e.StandardRoleID != nil {
			return ErrAssignmentInvariant
		}
	case AssignmentNoMatch, AssignmentPending:
		if e.StandardRoleID != nil {
			return ErrAssignmentInvariant
		}
	}
	return nil
}

// RoleForAssessment returns the role an employee should be assessed against:
// the assigned role, falling back to the AI suggestion.
func (e *EmployeeRecord) RoleForAssessment() (string, bool) {
	if e.StandardRoleID != nil {
		return *e.StandardRoleID, true
	}
	if e.AISuggestedRoleID != nil {
		return *e.AISuggestedRoleID, true
	}
	return "", false
}

// SkillsAssessment is an AI comparison of an employee against a role.
type SkillsAssessment struct {
	StandardRoleID  string    `json:"standard_role_id"`
	MatchPercentage int       `json:"match_percentage"`
	MatchedSkills   []string  `json:"matched_skills"`
	SkillGaps       []string  `json:"skill_gaps"`
	Recommendations []string  `json:"recommendations"`
	AssessedAt      time.Time `json:"assessed_at"`
}
