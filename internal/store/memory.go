package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xlsmart/talenthub/internal/models"
)

// Memory is a process-local Store. Data is lost on restart, so sessions
// cannot be resumed; it backs tests and the "memory" store backend.
type Memory struct {
	mu           sync.RWMutex
	sessions     map[string]*models.UploadSession
	employees    map[string]*models.EmployeeRecord
	employeeSeq  []string
	roles        map[string]*models.StandardRole
	roleSeq      []string
	mappings     map[string]*models.RoleMapping
	mappingSeq   []string
	descriptions []models.JobDescription
	now          func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions:  make(map[string]*models.UploadSession),
		employees: make(map[string]*models.EmployeeRecord),
		roles:     make(map[string]*models.StandardRole),
		mappings:  make(map[string]*models.RoleMapping),
		now:       time.Now,
	}
}

// Close is a no-op.
func (m *Memory) Close(context.Context) error { return nil }

// =============================================================================
// SESSIONS
// =============================================================================

func (m *Memory) CreateSession(_ context.Context, in models.NewSession) (*models.UploadSession, error) {
	in, err := ValidateNewSession(in)
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	s := &models.UploadSession{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Kind:      in.Kind,
		FileNames: slices.Clone(in.FileNames),
		TotalRows: in.TotalRows,
		Status:    in.Status,
		Progress:  models.Progress{Total: in.TotalRows},
		CreatedBy: in.CreatedBy,
		RecordIDs: slices.Clone(in.RecordIDs),
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return copySession(s), nil
}

func (m *Memory) GetSession(_ context.Context, id string) (*models.UploadSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return copySession(s), nil
}

func (m *Memory) ListSessions(_ context.Context, f SessionFilter) ([]models.UploadSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.UploadSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		if f.Kind != "" && s.Kind != f.Kind {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.CreatedBy != "" && s.CreatedBy != f.CreatedBy {
			continue
		}
		out = append(out, *copySession(s))
	}
	slices.SortFunc(out, func(a, b models.UploadSession) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) ListIncompleteSessions(_ context.Context) ([]models.UploadSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.UploadSession
	for _, s := range m.sessions {
		if !s.Status.Terminal() {
			out = append(out, *copySession(s))
		}
	}
	slices.SortFunc(out, func(a, b models.UploadSession) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (m *Memory) UpdateSessionStatus(_ context.Context, id string, status models.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err := CheckTransition(id, s.Status, status); err != nil {
		return err
	}
	if s.Status == status {
		return nil
	}
	s.Status = status
	s.UpdatedAt = m.now().UTC()
	return nil
}

func (m *Memory) UpdateSessionProgress(_ context.Context, id string, update models.ProgressUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	merged, err := MergeProgress(s, update)
	if err != nil {
		return err
	}
	s.Progress = merged
	s.UpdatedAt = m.now().UTC()
	return nil
}

func (m *Memory) CompleteSession(_ context.Context, id string, update models.ProgressUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err := CheckTransition(id, s.Status, models.StatusCompleted); err != nil {
		return err
	}
	merged, err := MergeProgress(s, update)
	if err != nil {
		return err
	}
	s.Progress = merged
	s.Status = models.StatusCompleted
	s.UpdatedAt = m.now().UTC()
	return nil
}

func (m *Memory) FailSession(_ context.Context, id string, status models.SessionStatus, msg string) error {
	if err := CheckFailStatus(status); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err := CheckNotTerminal(s); err != nil {
		return err
	}
	s.Status = status
	s.ErrorMessage = &msg
	s.UpdatedAt = m.now().UTC()
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) CreateEmployees(_ context.Context, employees []models.EmployeeRecord) ([]models.EmployeeRecord, error) {
	now := m.now().UTC()
	out := make([]models.EmployeeRecord, 0, len(employees))
	for _, e := range employees {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.RoleAssignmentStatus == "" {
			e.RoleAssignmentStatus = models.AssignmentPending
		}
		if err := e.Check(); err != nil {
			return nil, fmt.Errorf("%w: employee %s: %v", ErrValidation, e.EmployeeNumber, err)
		}
		e.CreatedAt, e.UpdatedAt = now, now
		out = append(out, e)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range out {
		e := copyEmployee(&out[i])
		m.employees[e.ID] = e
		m.employeeSeq = append(m.employeeSeq, e.ID)
	}
	return out, nil
}

func (m *Memory) GetEmployee(_ context.Context, id string) (*models.EmployeeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, fmt.Errorf("employee %s: %w", id, ErrNotFound)
	}
	return copyEmployee(e), nil
}

func (m *Memory) GetEmployees(_ context.Context, ids []string) ([]models.EmployeeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.EmployeeRecord, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.employees[id]; ok {
			out = append(out, *copyEmployee(e))
		}
	}
	return out, nil
}

func (m *Memory) ListEmployees(_ context.Context, f EmployeeFilter) ([]models.EmployeeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.EmployeeRecord
	for _, id := range m.employeeSeq {
		e := m.employees[id]
		if f.SessionID != "" && e.SessionID != f.SessionID {
			continue
		}
		if f.Status != "" && e.RoleAssignmentStatus != f.Status {
			continue
		}
		out = append(out, *copyEmployee(e))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) UpdateRoleAssignment(_ context.Context, id string, a models.RoleAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[id]
	if !ok {
		return fmt.Errorf("employee %s: %w", id, ErrNotFound)
	}
	if err := m.checkRoleRefs(a); err != nil {
		return err
	}
	updated := copyEmployee(e)
	if err := ApplyAssignment(updated, a); err != nil {
		return err
	}
	updated.UpdatedAt = m.now().UTC()
	m.employees[id] = updated
	return nil
}

// checkRoleRefs mirrors the foreign keys of the SQL backend. Caller holds mu.
func (m *Memory) checkRoleRefs(a models.RoleAssignment) error {
	for _, ref := range []*string{a.StandardRoleID, a.AISuggestedRoleID} {
		if ref == nil {
			continue
		}
		if _, ok := m.roles[*ref]; !ok {
			return fmt.Errorf("%w: unknown standard role %s", ErrValidation, *ref)
		}
	}
	return nil
}

func (m *Memory) UpdateSkillsAssessment(_ context.Context, id string, a models.SkillsAssessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[id]
	if !ok {
		return fmt.Errorf("employee %s: %w", id, ErrNotFound)
	}
	updated := copyEmployee(e)
	updated.SkillsAssessment = &a
	updated.UpdatedAt = m.now().UTC()
	m.employees[id] = updated
	return nil
}

// =============================================================================
// ROLES
// =============================================================================

func (m *Memory) CreateStandardRoles(_ context.Context, roles []models.StandardRole) ([]models.StandardRole, error) {
	now := m.now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.StandardRole, 0, len(roles))
	for _, r := range roles {
		if err := models.Validate(r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if _, exists := m.roles[r.ID]; exists {
			return nil, fmt.Errorf("%w: standard role %s already exists", ErrValidation, r.ID)
		}
		r.CreatedAt = now
		r.RequiredSkills = slices.Clone(r.RequiredSkills)
		stored := r
		m.roles[r.ID] = &stored
		m.roleSeq = append(m.roleSeq, r.ID)
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) GetStandardRole(_ context.Context, id string) (*models.StandardRole, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.roles[id]
	if !ok {
		return nil, fmt.Errorf("standard role %s: %w", id, ErrNotFound)
	}
	out := *r
	out.RequiredSkills = slices.Clone(r.RequiredSkills)
	return &out, nil
}

func (m *Memory) ListStandardRoles(_ context.Context) ([]models.StandardRole, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.StandardRole, 0, len(m.roleSeq))
	for _, id := range m.roleSeq {
		r := *m.roles[id]
		r.RequiredSkills = slices.Clone(r.RequiredSkills)
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) CreateRoleMappings(_ context.Context, mappings []models.RoleMapping) ([]models.RoleMapping, error) {
	now := m.now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.RoleMapping, 0, len(mappings))
	for _, rm := range mappings {
		if rm.ID == "" {
			rm.ID = uuid.New().String()
		}
		if rm.Status == "" {
			rm.Status = models.MappingPending
		}
		rm.CreatedAt = now
		stored := rm
		m.mappings[rm.ID] = &stored
		m.mappingSeq = append(m.mappingSeq, rm.ID)
		out = append(out, rm)
	}
	return out, nil
}

func (m *Memory) ListRoleMappings(_ context.Context, sessionID string) ([]models.RoleMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.RoleMapping
	for _, id := range m.mappingSeq {
		rm := m.mappings[id]
		if sessionID != "" && rm.SessionID != sessionID {
			continue
		}
		out = append(out, *rm)
	}
	return out, nil
}

func (m *Memory) UpdateRoleMapping(_ context.Context, id string, status models.MappingStatus, standardRoleID *string, confidence float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rm, ok := m.mappings[id]
	if !ok {
		return fmt.Errorf("role mapping %s: %w", id, ErrNotFound)
	}
	if status == models.MappingMapped && standardRoleID == nil {
		return fmt.Errorf("%w: mapped role mapping needs a standard role", ErrValidation)
	}
	if standardRoleID != nil {
		if _, ok := m.roles[*standardRoleID]; !ok {
			return fmt.Errorf("%w: unknown standard role %s", ErrValidation, *standardRoleID)
		}
	}
	rm.Status = status
	rm.StandardRoleID = standardRoleID
	rm.Confidence = confidence
	return nil
}

func (m *Memory) SaveJobDescription(_ context.Context, jd models.JobDescription) (*models.JobDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[jd.StandardRoleID]; !ok {
		return nil, fmt.Errorf("standard role %s: %w", jd.StandardRoleID, ErrNotFound)
	}
	if jd.ID == "" {
		jd.ID = uuid.New().String()
	}
	if jd.Status == "" {
		jd.Status = "draft"
	}
	jd.CreatedAt = m.now().UTC()
	m.descriptions = append(m.descriptions, jd)
	return &jd, nil
}

func (m *Memory) ListJobDescriptions(_ context.Context, standardRoleID string) ([]models.JobDescription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.JobDescription
	for _, jd := range m.descriptions {
		if standardRoleID == "" || jd.StandardRoleID == standardRoleID {
			out = append(out, jd)
		}
	}
	return out, nil
}

func copySession(s *models.UploadSession) *models.UploadSession {
	out := *s
	out.FileNames = slices.Clone(s.FileNames)
	out.RecordIDs = slices.Clone(s.RecordIDs)
	out.Progress.Failures = slices.Clone(s.Progress.Failures)
	if s.Progress.Extra != nil {
		out.Progress.Extra = make(map[string]any, len(s.Progress.Extra))
		for k, v := range s.Progress.Extra {
			out.Progress.Extra[k] = v
		}
	}
	return &out
}

func copyEmployee(e *models.EmployeeRecord) *models.EmployeeRecord {
	out := *e
	out.Skills = slices.Clone(e.Skills)
	out.Certifications = slices.Clone(e.Certifications)
	return &out
}
