// Package service provides the talenthub pipeline: session runs, batch
// processing and the upload/standardize/assign entry points.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xlsmart/talenthub/internal/llm"
	"github.com/xlsmart/talenthub/internal/metrics"
	"github.com/xlsmart/talenthub/internal/models"
	"github.com/xlsmart/talenthub/internal/store"
)

// ErrSessionBusy is returned when a session already has an active runner.
var ErrSessionBusy = errors.New("session already running")

// Runner is the body of a background session run.
type Runner func(ctx context.Context) error

// SessionManager owns the background goroutines that drive sessions. A
// session id has at most one runner at a time, which keeps the runner the
// only writer of that session's progress.
type SessionManager struct {
	store   store.SessionStore
	metrics *metrics.Collector
	logger  *slog.Logger

	mu      sync.Mutex
	running map[string]models.SessionKind
	wg      sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewSessionManager creates a session manager.
func NewSessionManager(st store.SessionStore, mc *metrics.Collector, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		store:   st,
		metrics: mc,
		logger:  logger.With("component", "sessions"),
		running: make(map[string]models.SessionKind),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Start runs fn for a session in the background.
func (m *SessionManager) Start(sessionID string, kind models.SessionKind, fn Runner) error {
	if err := m.baseCtx.Err(); err != nil {
		return fmt.Errorf("session manager stopped: %w", err)
	}

	m.mu.Lock()
	if _, ok := m.running[sessionID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionBusy, sessionID)
	}
	m.running[sessionID] = kind
	m.wg.Add(1)
	m.mu.Unlock()

	m.metrics.SessionStarted()
	m.logger.Info("session run started", "session_id", sessionID, "kind", kind)

	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.running, sessionID)
			m.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("session goroutine panicked", "session_id", sessionID, "panic", r)
				m.finish(sessionID, kind, fmt.Errorf("internal panic: %v", r))
			}
		}()

		m.finish(sessionID, kind, fn(m.baseCtx))
	}()
	return nil
}

// finish records the outcome of a run. Runs interrupted by Shutdown are left
// in their current status so ResumeIncompleteSessions can pick them up.
func (m *SessionManager) finish(sessionID string, kind models.SessionKind, err error) {
	if err == nil {
		m.metrics.SessionFinished(string(kind), string(models.StatusCompleted))
		m.logger.Info("session run completed", "session_id", sessionID)
		return
	}

	if m.baseCtx.Err() != nil && errors.Is(err, context.Canceled) {
		m.metrics.SessionFinished(string(kind), "interrupted")
		m.logger.Info("session run interrupted, left for resume", "session_id", sessionID)
		return
	}

	status := failStatus(err)
	m.metrics.SessionFinished(string(kind), string(status))
	m.logger.Error("session run failed", "session_id", sessionID, "status", status, "error", err)

	// The batch processor fails its own session; a terminal error here means
	// that already happened.
	ctx := context.WithoutCancel(m.baseCtx)
	if ferr := m.store.FailSession(ctx, sessionID, status, err.Error()); ferr != nil && !errors.Is(ferr, store.ErrSessionTerminal) {
		m.logger.Warn("failed to persist session failure", "session_id", sessionID, "error", ferr)
	}
}

// failStatus maps a run error to the terminal status it leaves behind.
// Provider errors that will fail every call end in error, everything else in
// failed.
func failStatus(err error) models.SessionStatus {
	if errors.Is(err, llm.ErrFatalAPI) {
		return models.StatusError
	}
	return models.StatusFailed
}

// IsRunning reports whether sessionID has an active runner in this process.
func (m *SessionManager) IsRunning(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[sessionID]
	return ok
}

// Running returns the number of active runners.
func (m *SessionManager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// Wait blocks until every started run has returned.
func (m *SessionManager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels all runners and waits for them until ctx is done.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for session runners: %w", ctx.Err())
	}
}
