package ingest

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xlsmart/talenthub/internal/models"
)

// RowError describes a row that could not be turned into a record.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Column aliases, in normalized header form.
var (
	colEmployeeNumber = []string{"employee_number", "employee_id", "employee_no", "emp_id", "emp_no", "nik", "staff_id"}
	colName           = []string{"name", "full_name", "employee_name"}
	colEmail          = []string{"email", "email_address", "work_email"}
	colCompany        = []string{"source_company", "company", "origin_company", "entity"}
	colPosition       = []string{"position", "current_position", "job_title", "title", "role"}
	colDepartment     = []string{"department", "dept", "division", "unit"}
	colLevel          = []string{"level", "grade", "job_level", "band"}
	colExperience     = []string{"years_experience", "years_of_experience", "experience_years", "experience"}
	colSkills         = []string{"skills", "skill_set", "competencies"}
	colCerts          = []string{"certifications", "certification", "certs"}

	colRoleTitle   = []string{"role_title", "title", "job_title", "position", "role"}
	colDescription = []string{"description", "job_description", "summary"}
)

// Employees maps rows to employee records. Rows without a position, or
// without both a name and an employee number, are reported and skipped.
func Employees(rows []Row) ([]models.EmployeeRecord, []RowError) {
	var (
		out  []models.EmployeeRecord
		errs []RowError
	)
	for _, r := range rows {
		e := models.EmployeeRecord{
			EmployeeNumber: r.Get(colEmployeeNumber...),
			Name:           r.Get(colName...),
			Email:          r.Get(colEmail...),
			SourceCompany:  r.Get(colCompany...),
			Position:       r.Get(colPosition...),
			Department:     r.Get(colDepartment...),
			Level:          r.Get(colLevel...),
			Skills:         SplitList(r.Get(colSkills...)),
			Certifications: SplitList(r.Get(colCerts...)),
		}
		if e.Name == "" && e.EmployeeNumber == "" {
			errs = append(errs, RowError{Line: r.Line, Message: "missing employee name and number"})
			continue
		}
		if e.Position == "" {
			errs = append(errs, RowError{Line: r.Line, Message: "missing position"})
			continue
		}
		years, err := parseYears(r.Get(colExperience...))
		if err != nil {
			errs = append(errs, RowError{Line: r.Line, Message: err.Error()})
			continue
		}
		e.YearsExperience = years
		out = append(out, e)
	}
	return out, errs
}

// SourceRoles maps rows of a role spreadsheet. Rows without a title are
// reported and skipped.
func SourceRoles(rows []Row) ([]models.SourceRole, []RowError) {
	var (
		out  []models.SourceRole
		errs []RowError
	)
	for _, r := range rows {
		role := models.SourceRole{
			Title:         r.Get(colRoleTitle...),
			Department:    r.Get(colDepartment...),
			Level:         r.Get(colLevel...),
			SourceCompany: r.Get(colCompany...),
			Description:   r.Get(colDescription...),
		}
		if role.Title == "" {
			errs = append(errs, RowError{Line: r.Line, Message: "missing role title"})
			continue
		}
		out = append(out, role)
	}
	return out, errs
}

func parseYears(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.ToLower(s), " years"), 64)
	if err != nil || f < 0 || f > 70 {
		return 0, fmt.Errorf("invalid years of experience %q", s)
	}
	return int(math.Round(f)), nil
}

// SplitList splits a cell holding several values separated by commas,
// semicolons, pipes or newlines. Duplicates are dropped case-insensitively.
func SplitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		key := strings.ToLower(p)
		if p == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// ReadRoleCatalog decodes a YAML standard role catalog:
//
//	roles:
//	  - title: Network Engineer
//	    level: Senior
//	    required_skills: [IP/MPLS, BGP]
func ReadRoleCatalog(r io.Reader) ([]models.StandardRole, error) {
	var doc struct {
		Roles []models.StandardRole `yaml:"roles"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode role catalog: %w", err)
	}
	for i, role := range doc.Roles {
		if strings.TrimSpace(role.Title) == "" {
			return nil, fmt.Errorf("role catalog entry %d: missing title", i+1)
		}
		if role.RequiredSkills == nil {
			doc.Roles[i].RequiredSkills = []string{}
		}
	}
	return doc.Roles, nil
}
