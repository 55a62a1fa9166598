// Package client provides an HTTP client for the talenthub server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xlsmart/talenthub/internal/ingest"
	"github.com/xlsmart/talenthub/internal/models"
)

// Client talks to the talenthub REST API.
type Client struct {
	baseURL    string
	user       string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses TALENTHUB_SERVER_URL env var or defaults to localhost:8484.
// Timeout can be configured via TALENTHUB_CLIENT_TIMEOUT env var (default 2m).
func New(baseURL, user string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("TALENTHUB_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8484"
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("TALENTHUB_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    user,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a {success:false} response.
type APIError struct {
	StatusCode int
	Message    string
	RowErrors  []ingest.RowError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type errorBody struct {
	Success   bool              `json:"success"`
	Error     string            `json:"error"`
	RowErrors []ingest.RowError `json:"rowErrors"`
}

// do sends a request and decodes the envelope into result.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.user != "" {
		req.Header.Set("X-User-ID", c.user)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: eb.Error, RowErrors: eb.RowErrors}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	return c.do(ctx, method, path, body, "application/json", result)
}

// Health checks the server and its store.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, "", nil)
}

// =============================================================================
// Uploads

// UploadResult is the response of a spreadsheet upload.
type UploadResult struct {
	SessionID string               `json:"sessionId"`
	Session   models.UploadSession `json:"session"`
	Accepted  int                  `json:"accepted"`
	RowErrors []ingest.RowError    `json:"rowErrors"`
	Message   string               `json:"message"`
}

// UploadEmployees sends an employee spreadsheet and starts role assignment.
func (c *Client) UploadEmployees(ctx context.Context, path, sessionName string, autoAssign bool) (*UploadResult, error) {
	return c.uploadFile(ctx, "/api/uploads/employees", path, map[string]string{
		"sessionName": sessionName,
		"autoAssign":  strconv.FormatBool(autoAssign),
	})
}

// UploadRoles sends a source-company role spreadsheet and starts standardization.
func (c *Client) UploadRoles(ctx context.Context, path, sessionName string) (*UploadResult, error) {
	return c.uploadFile(ctx, "/api/uploads/roles", path, map[string]string{
		"sessionName": sessionName,
	})
}

func (c *Client) uploadFile(ctx context.Context, endpoint, path string, fields map[string]string) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read spreadsheet: %w", err)
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	var res UploadResult
	if err := c.do(ctx, http.MethodPost, endpoint, &buf, mw.FormDataContentType(), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// =============================================================================
// Sessions

// SessionState is the progress query response.
type SessionState struct {
	models.ProgressReport
	Running bool                 `json:"running"`
	Session models.UploadSession `json:"session"`
}

// GetSession fetches a session's status and progress.
func (c *Client) GetSession(ctx context.Context, id string) (*SessionState, error) {
	var res SessionState
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id), nil, "", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	Kind      string
	Status    string
	CreatedBy string
	Limit     int
}

// ListSessions lists sessions, newest first.
func (c *Client) ListSessions(ctx context.Context, f SessionFilter) ([]models.UploadSession, error) {
	q := url.Values{}
	setIf(q, "kind", f.Kind)
	setIf(q, "status", f.Status)
	setIf(q, "createdBy", f.CreatedBy)
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	var res struct {
		Sessions []models.UploadSession `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/sessions"+encode(q), nil, "", &res); err != nil {
		return nil, err
	}
	return res.Sessions, nil
}

type sessionResult struct {
	SessionID string               `json:"sessionId"`
	Session   models.UploadSession `json:"session"`
}

// AssignSessionRoles re-runs assignment for a session's unassigned employees.
func (c *Client) AssignSessionRoles(ctx context.Context, sessionID string, autoAssign bool) (*models.UploadSession, error) {
	var res sessionResult
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/assign-roles"
	if err := c.doJSON(ctx, http.MethodPost, path, map[string]bool{"autoAssign": autoAssign}, &res); err != nil {
		return nil, err
	}
	return &res.Session, nil
}

// =============================================================================
// Employees

// BulkAssign starts role assignment for the given employees.
func (c *Client) BulkAssign(ctx context.Context, employeeIDs []string, autoAssign bool) (*models.UploadSession, error) {
	var res sessionResult
	payload := map[string]any{"employeeIds": employeeIDs, "autoAssign": autoAssign}
	if err := c.doJSON(ctx, http.MethodPost, "/api/employees/assign-roles", payload, &res); err != nil {
		return nil, err
	}
	return &res.Session, nil
}

// AssessSkills starts a skills assessment for the given employees.
func (c *Client) AssessSkills(ctx context.Context, employeeIDs []string) (*models.UploadSession, error) {
	var res sessionResult
	payload := map[string]any{"employeeIds": employeeIDs}
	if err := c.doJSON(ctx, http.MethodPost, "/api/employees/assess-skills", payload, &res); err != nil {
		return nil, err
	}
	return &res.Session, nil
}

// AssignRole sets an employee's standard role by hand.
func (c *Client) AssignRole(ctx context.Context, employeeID, roleID string) (*models.EmployeeRecord, error) {
	var res struct {
		Employee models.EmployeeRecord `json:"employee"`
	}
	path := "/api/employees/" + url.PathEscape(employeeID) + "/role"
	if err := c.doJSON(ctx, http.MethodPut, path, map[string]string{"roleId": roleID}, &res); err != nil {
		return nil, err
	}
	return &res.Employee, nil
}

// ListEmployees lists employees, optionally by session and assignment status.
func (c *Client) ListEmployees(ctx context.Context, sessionID, status string, limit int) ([]models.EmployeeRecord, error) {
	q := url.Values{}
	setIf(q, "sessionId", sessionID)
	setIf(q, "status", status)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var res struct {
		Employees []models.EmployeeRecord `json:"employees"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/employees"+encode(q), nil, "", &res); err != nil {
		return nil, err
	}
	return res.Employees, nil
}

// =============================================================================
// Roles

// ListRoles lists the standard role catalog.
func (c *Client) ListRoles(ctx context.Context) ([]models.StandardRole, error) {
	var res struct {
		Roles []models.StandardRole `json:"roles"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/roles", nil, "", &res); err != nil {
		return nil, err
	}
	return res.Roles, nil
}

// SeedResult reports how many catalog roles were added.
type SeedResult struct {
	Roles   []models.StandardRole `json:"roles"`
	Added   int                   `json:"added"`
	Skipped int                   `json:"skipped"`
}

// SeedRoles uploads a YAML role catalog.
func (c *Client) SeedRoles(ctx context.Context, catalog io.Reader) (*SeedResult, error) {
	var res SeedResult
	if err := c.do(ctx, http.MethodPost, "/api/roles", catalog, "application/yaml", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListMappings lists role mappings, optionally for one session.
func (c *Client) ListMappings(ctx context.Context, sessionID string) ([]models.RoleMapping, error) {
	q := url.Values{}
	setIf(q, "sessionId", sessionID)
	var res struct {
		Mappings []models.RoleMapping `json:"mappings"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/roles/mappings"+encode(q), nil, "", &res); err != nil {
		return nil, err
	}
	return res.Mappings, nil
}

// GenerateJobDescription asks the server to draft a job description.
func (c *Client) GenerateJobDescription(ctx context.Context, roleID string) (*models.JobDescription, error) {
	var res struct {
		JobDescription models.JobDescription `json:"jobDescription"`
	}
	path := "/api/roles/" + url.PathEscape(roleID) + "/job-description"
	if err := c.do(ctx, http.MethodPost, path, nil, "", &res); err != nil {
		return nil, err
	}
	return &res.JobDescription, nil
}

// ListJobDescriptions lists the job descriptions of a role.
func (c *Client) ListJobDescriptions(ctx context.Context, roleID string) ([]models.JobDescription, error) {
	var res struct {
		JobDescriptions []models.JobDescription `json:"jobDescriptions"`
	}
	path := "/api/roles/" + url.PathEscape(roleID) + "/job-descriptions"
	if err := c.do(ctx, http.MethodGet, path, nil, "", &res); err != nil {
		return nil, err
	}
	return res.JobDescriptions, nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func encode(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
