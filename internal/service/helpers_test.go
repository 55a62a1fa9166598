package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/xlsmart/talenthub/internal/classifier"
	"github.com/xlsmart/talenthub/internal/llm"
	"github.com/xlsmart/talenthub/internal/models"
	"github.com/xlsmart/talenthub/internal/store"
)

// recordingStore counts progress writes and can fail them on demand.
type recordingStore struct {
	*store.Memory

	mu          sync.Mutex
	progress    []models.ProgressUpdate
	failOnWrite int // 1-based progress write that fails, 0 = never
	honorCtx    bool
}

// UpdateSessionStatus rejects cancelled contexts when honorCtx is set, like
// the database backends do.
func (s *recordingStore) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	if s.honorCtx {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("update session status: %w", err)
		}
	}
	return s.Memory.UpdateSessionStatus(ctx, id, status)
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Memory: store.NewMemory()}
}

func (s *recordingStore) UpdateSessionProgress(ctx context.Context, id string, u models.ProgressUpdate) error {
	s.mu.Lock()
	s.progress = append(s.progress, u)
	n := len(s.progress)
	fail := s.failOnWrite
	s.mu.Unlock()
	if fail > 0 && n == fail {
		return errors.New("database connection lost")
	}
	return s.Memory.UpdateSessionProgress(ctx, id, u)
}

func (s *recordingStore) writes() []models.ProgressUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ProgressUpdate(nil), s.progress...)
}

// scriptedGenerator answers by looking for a marker in the user prompt.
// Employees carry their marker in Position.
type scriptedGenerator struct {
	mu       sync.Mutex
	rules    map[string]func() (string, error)
	deflt    func() (string, error)
	calls    int
	inFlight int
	maxPar   int
}

func (g *scriptedGenerator) GenerateWithSystem(_ context.Context, _, user string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.inFlight++
	g.maxPar = max(g.maxPar, g.inFlight)
	reply := g.deflt
	for marker, fn := range g.rules {
		if strings.Contains(user, marker) {
			reply = fn
			break
		}
	}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.mu.Unlock()
	}()
	if reply == nil {
		return "NO_MATCH", nil
	}
	return reply()
}

func answer(s string) func() (string, error) {
	return func() (string, error) { return s, nil }
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

// providerLLM exposes a scriptedGenerator as a langchaingo model so tests can
// go through llm.Model and its provider error classification.
type providerLLM struct {
	gen *scriptedGenerator
}

func (p providerLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	var user string
	for _, m := range messages {
		if m.Role != llms.ChatMessageTypeHuman {
			continue
		}
		for _, part := range m.Parts {
			if text, ok := part.(llms.TextContent); ok {
				user += text.Text
			}
		}
	}
	out, err := p.gen.GenerateWithSystem(ctx, "", user)
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: out}}}, nil
}

func (p providerLLM) Call(ctx context.Context, prompt string, _ ...llms.CallOption) (string, error) {
	return p.gen.GenerateWithSystem(ctx, "", prompt)
}

type harness struct {
	store    *recordingStore
	gen      *scriptedGenerator
	sessions *SessionManager
	batch    *BatchProcessor
	pipeline *Pipeline
	roles    []models.StandardRole
}

func newHarness(t *testing.T, size int) *harness {
	t.Helper()
	st := newRecordingStore()
	gen := &scriptedGenerator{rules: map[string]func() (string, error){}}

	roles, err := st.CreateStandardRoles(context.Background(), []models.StandardRole{
		{Title: "Network Engineer", Level: "Senior", RequiredSkills: []string{"MPLS"}},
		{Title: "Data Analyst", Level: "Mid", RequiredSkills: []string{"SQL"}},
	})
	require.NoError(t, err)

	sessions := NewSessionManager(st, nil, nil)
	batch := NewBatchProcessor(st, BatchOptions{Size: size}, nil, nil)
	h := &harness{
		store:    st,
		gen:      gen,
		sessions: sessions,
		batch:    batch,
		pipeline: NewPipeline(st, classifier.New(gen, nil), sessions, batch, nil),
		roles:    roles,
	}
	t.Cleanup(func() { _ = sessions.Shutdown(context.Background()) })
	return h
}

// throughModel routes classifier calls through a real llm.Model.
func (h *harness) throughModel() {
	model := llm.NewModelWith(providerLLM{gen: h.gen}, "scripted", llm.Options{}, nil)
	h.pipeline = NewPipeline(h.store, classifier.New(model, nil), h.sessions, h.batch, nil)
}

func employees(n int, position func(i int) string) []models.EmployeeRecord {
	out := make([]models.EmployeeRecord, n)
	for i := range out {
		out[i] = models.EmployeeRecord{
			EmployeeNumber: fmt.Sprintf("EMP-%03d", i+1),
			Name:           fmt.Sprintf("Employee %d", i+1),
			Position:       position(i),
			Skills:         []string{"Excel"},
		}
	}
	return out
}

func (h *harness) upload(t *testing.T, emps []models.EmployeeRecord, autoAssign bool) *models.UploadSession {
	t.Helper()
	sess, err := h.pipeline.UploadEmployees(context.Background(), EmployeeUpload{
		SessionName: "merger wave 1",
		FileName:    "employees.xlsx",
		CreatedBy:   "hr-admin",
		Employees:   emps,
		AutoAssign:  autoAssign,
	})
	require.NoError(t, err)
	h.sessions.Wait()

	final, err := h.store.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	return final
}

func employeeFilter(sessionID string, status models.RoleAssignmentStatus) store.EmployeeFilter {
	return store.EmployeeFilter{SessionID: sessionID, Status: status}
}
