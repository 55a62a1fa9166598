package classifier

import (
	"fmt"
	"strings"

	"github.com/xlsmart/talenthub/internal/models"
)

const employeeSystemPrompt = `You are an HR role-mapping assistant for a telecommunications company formed by a merger.
Pick the single standard role that best fits the employee.
Answer with JSON only: {"role_id": "<id from the list>", "confidence": <0..1>}
If no role fits, answer {"role_id": "NO_MATCH", "confidence": 0}.
Never invent an id that is not in the list.`

const roleSystemPrompt = `You are an HR job-architecture assistant standardizing roles from two merging telecommunications companies.
Pick the single standard role equivalent to the source role.
Answer with JSON only: {"role_id": "<id from the list>", "confidence": <0..1>}
If no role is equivalent, answer {"role_id": "NO_MATCH", "confidence": 0}.
Never invent an id that is not in the list.`

const skillsSystemPrompt = `You are an HR skills assessor. Compare the employee's profile with the target role.
Answer with JSON only:
{"match_percentage": <0..100>, "matched_skills": [..], "skill_gaps": [..], "recommendations": [..]}`

const catalogSystemPrompt = `You are an HR job-architecture assistant. From the source roles of two merging
telecommunications companies, propose a deduplicated catalog of standard roles.
Answer with JSON only:
{"roles": [{"title": "", "department": "", "job_family": "", "level": "", "category": "", "description": "", "required_skills": [..]}]}`

const jobDescriptionSystemPrompt = `You are an HR writer. Write a job description for the standard role.
Answer with JSON only:
{"title": "", "summary": "", "responsibilities": [..], "qualifications": [..]}`

func candidateList(roles []models.StandardRole) string {
	var b strings.Builder
	for _, r := range roles {
		fmt.Fprintf(&b, "- id: %s | title: %s | department: %s | family: %s | level: %s",
			r.ID, r.Title, r.Department, r.JobFamily, r.Level)
		if len(r.RequiredSkills) > 0 {
			fmt.Fprintf(&b, " | skills: %s", strings.Join(r.RequiredSkills, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func employeePrompt(e models.EmployeeRecord, roles []models.StandardRole) string {
	return fmt.Sprintf(`Employee:
- position: %s
- department: %s
- level: %s
- years of experience: %d
- skills: %s
- certifications: %s
- source company: %s

Standard roles:
%s`,
		e.Position, e.Department, e.Level, e.YearsExperience,
		strings.Join(e.Skills, ", "), strings.Join(e.Certifications, ", "), e.SourceCompany,
		candidateList(roles))
}

func rolePrompt(src models.SourceRole, roles []models.StandardRole) string {
	return fmt.Sprintf(`Source role:
- title: %s
- department: %s
- level: %s
- company: %s
- description: %s

Standard roles:
%s`,
		src.Title, src.Department, src.Level, src.SourceCompany, src.Description,
		candidateList(roles))
}

func skillsPrompt(e models.EmployeeRecord, role models.StandardRole) string {
	return fmt.Sprintf(`Employee:
- position: %s
- years of experience: %d
- skills: %s
- certifications: %s

Target role: %s (%s, level %s)
Required skills: %s
Description: %s`,
		e.Position, e.YearsExperience, strings.Join(e.Skills, ", "), strings.Join(e.Certifications, ", "),
		role.Title, role.Department, role.Level, strings.Join(role.RequiredSkills, ", "), role.Description)
}

func catalogPrompt(sources []models.SourceRole) string {
	var b strings.Builder
	b.WriteString("Source roles:\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "- %s | %s | %s | %s\n", s.Title, s.Department, s.Level, s.SourceCompany)
	}
	return b.String()
}

func jobDescriptionPrompt(role models.StandardRole) string {
	return fmt.Sprintf(`Standard role: %s
Department: %s
Job family: %s
Level: %s
Required skills: %s
Notes: %s`,
		role.Title, role.Department, role.JobFamily, role.Level,
		strings.Join(role.RequiredSkills, ", "), role.Description)
}
