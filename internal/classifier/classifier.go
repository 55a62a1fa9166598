// Package classifier turns LLM answers into validated role decisions.
//
// The model is treated as an untrusted text generator: every id it returns is
// checked against the candidate set supplied for that call before it reaches
// the caller. Transport failures are returned as errors; unusable answers
// become NoMatch.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xlsmart/talenthub/internal/models"
)

// Generator is the chat-completion call the classifier depends on.
// *llm.Model satisfies it.
type Generator interface {
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ErrMalformedResponse is returned by the generation helpers when the model
// output cannot be decoded into the requested schema.
var ErrMalformedResponse = errors.New("malformed model response")

// Classifier matches employees and source roles to standard roles.
type Classifier struct {
	gen    Generator
	logger *slog.Logger
	now    func() time.Time
	votes  int
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithVotes asks the model n times per selection and keeps the majority
// answer. Values below 2 mean a single call.
func WithVotes(n int) Option {
	return func(c *Classifier) {
		c.votes = max(n, 1)
	}
}

// New creates a Classifier.
func New(gen Generator, logger *slog.Logger, opts ...Option) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Classifier{gen: gen, logger: logger.With("component", "classifier"), now: time.Now, votes: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClassifyEmployee picks the standard role that fits an employee.
func (c *Classifier) ClassifyEmployee(ctx context.Context, e models.EmployeeRecord, roles []models.StandardRole) (Result, error) {
	if len(roles) == 0 {
		return NoMatch(), nil
	}
	res, raw, err := c.selectRole(ctx, employeeSystemPrompt, employeePrompt(e, roles), roles)
	if err != nil {
		return NoMatch(), fmt.Errorf("classify employee %s: %w", e.ID, err)
	}
	if res.IsNoMatch() {
		c.logger.Debug("no role match", "employee_id", e.ID, "response", truncate(raw, 120))
	}
	return res, nil
}

// ClassifyRole picks the standard role equivalent to a source role.
func (c *Classifier) ClassifyRole(ctx context.Context, src models.SourceRole, roles []models.StandardRole) (Result, error) {
	if len(roles) == 0 {
		return NoMatch(), nil
	}
	res, raw, err := c.selectRole(ctx, roleSystemPrompt, rolePrompt(src, roles), roles)
	if err != nil {
		return NoMatch(), fmt.Errorf("classify role %q: %w", src.Title, err)
	}
	if res.IsNoMatch() {
		c.logger.Debug("no standard role for source role", "title", src.Title, "response", truncate(raw, 120))
	}
	return res, nil
}

// selectRole runs the selection prompt c.votes times and returns the
// consensus with the last raw answer. Any transport error ends the vote.
func (c *Classifier) selectRole(ctx context.Context, system, user string, roles []models.StandardRole) (Result, string, error) {
	votes := make([]Result, 0, c.votes)
	var raw string
	for range c.votes {
		var err error
		raw, err = c.gen.GenerateWithSystem(ctx, system, user)
		if err != nil {
			return NoMatch(), "", err
		}
		votes = append(votes, ParseSelection(raw, roles))
	}
	return Consensus(votes), raw, nil
}

// AssessSkills compares an employee with a standard role.
func (c *Classifier) AssessSkills(ctx context.Context, e models.EmployeeRecord, role models.StandardRole) (*models.SkillsAssessment, error) {
	raw, err := c.gen.GenerateWithSystem(ctx, skillsSystemPrompt, skillsPrompt(e, role))
	if err != nil {
		return nil, fmt.Errorf("assess skills for %s: %w", e.ID, err)
	}

	var out struct {
		MatchPercentage float64  `json:"match_percentage"`
		MatchedSkills   []string `json:"matched_skills"`
		SkillGaps       []string `json:"skill_gaps"`
		Recommendations []string `json:"recommendations"`
	}
	if err := decodeJSON(raw, &out); err != nil {
		return nil, err
	}
	pct := int(out.MatchPercentage + 0.5)
	if pct < 0 || pct > 100 {
		return nil, fmt.Errorf("%w: match percentage %d out of range", ErrMalformedResponse, pct)
	}

	return &models.SkillsAssessment{
		StandardRoleID:  role.ID,
		MatchPercentage: pct,
		MatchedSkills:   nonNil(out.MatchedSkills),
		SkillGaps:       nonNil(out.SkillGaps),
		Recommendations: nonNil(out.Recommendations),
		AssessedAt:      c.now().UTC(),
	}, nil
}

// GenerateStandardRoles proposes a standard role catalog from source roles.
// Roles without a title, and duplicates by title and level, are dropped.
func (c *Classifier) GenerateStandardRoles(ctx context.Context, sources []models.SourceRole) ([]models.StandardRole, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	raw, err := c.gen.GenerateWithSystem(ctx, catalogSystemPrompt, catalogPrompt(sources))
	if err != nil {
		return nil, fmt.Errorf("generate standard roles: %w", err)
	}

	var out struct {
		Roles []models.StandardRole `json:"roles"`
	}
	if err := decodeJSON(raw, &out); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(out.Roles))
	roles := make([]models.StandardRole, 0, len(out.Roles))
	for _, r := range out.Roles {
		r.ID = "" // ids are assigned by the store, never by the model
		r.Title = strings.TrimSpace(r.Title)
		if r.Title == "" || seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		r.RequiredSkills = nonNil(r.RequiredSkills)
		roles = append(roles, r)
	}
	return roles, nil
}

// GenerateJobDescription writes a draft job description for a role.
func (c *Classifier) GenerateJobDescription(ctx context.Context, role models.StandardRole) (*models.JobDescription, error) {
	raw, err := c.gen.GenerateWithSystem(ctx, jobDescriptionSystemPrompt, jobDescriptionPrompt(role))
	if err != nil {
		return nil, fmt.Errorf("generate job description for %s: %w", role.ID, err)
	}

	var out struct {
		Title            string   `json:"title"`
		Summary          string   `json:"summary"`
		Responsibilities []string `json:"responsibilities"`
		Qualifications   []string `json:"qualifications"`
	}
	if err := decodeJSON(raw, &out); err != nil {
		return nil, err
	}
	if out.Summary == "" {
		return nil, fmt.Errorf("%w: empty summary", ErrMalformedResponse)
	}
	title := out.Title
	if title == "" {
		title = role.Title
	}

	return &models.JobDescription{
		StandardRoleID:   role.ID,
		Title:            title,
		Summary:          out.Summary,
		Responsibilities: nonNil(out.Responsibilities),
		Qualifications:   nonNil(out.Qualifications),
		Status:           "draft",
	}, nil
}

// decodeJSON extracts the first JSON object from raw, tolerating code fences
// and leading prose.
func decodeJSON(raw string, v any) error {
	text := stripFences(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return fmt.Errorf("%w: no JSON object", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
