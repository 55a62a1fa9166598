package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xlsmart/talenthub/internal/llm"
	"github.com/xlsmart/talenthub/internal/metrics"
	"github.com/xlsmart/talenthub/internal/models"
	"github.com/xlsmart/talenthub/internal/store"
)

func newManagedSession(t *testing.T) (*store.Memory, *models.UploadSession) {
	t.Helper()
	st := store.NewMemory()
	sess, err := st.CreateSession(context.Background(), models.NewSession{
		Name:      "run",
		Kind:      models.KindBulkAssign,
		FileNames: []string{"manual-selection"},
		TotalRows: 1,
		CreatedBy: "tester",
	})
	require.NoError(t, err)
	return st, sess
}

func TestSessionManagerSingleRunner(t *testing.T) {
	st, sess := newManagedSession(t)
	m := NewSessionManager(st, nil, nil)

	release := make(chan struct{})
	require.NoError(t, m.Start(sess.ID, sess.Kind, func(context.Context) error {
		<-release
		return nil
	}))
	assert.True(t, m.IsRunning(sess.ID))
	assert.Equal(t, 1, m.Running())

	err := m.Start(sess.ID, sess.Kind, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrSessionBusy)

	close(release)
	m.Wait()
	assert.False(t, m.IsRunning(sess.ID))
	require.NoError(t, m.Start(sess.ID, sess.Kind, func(context.Context) error { return nil }), "free again once done")
	m.Wait()
}

func TestSessionManagerFailureStatus(t *testing.T) {
	tests := []struct {
		name    string
		run     Runner
		want    models.SessionStatus
		message string
	}{
		{
			name:    "ordinary error",
			run:     func(context.Context) error { return errors.New("load standard roles: timeout") },
			want:    models.StatusFailed,
			message: "load standard roles: timeout",
		},
		{
			name:    "fatal provider error",
			run:     func(context.Context) error { return fmt.Errorf("classify: %w: quota", llm.ErrFatalAPI) },
			want:    models.StatusError,
			message: "quota",
		},
		{
			name:    "panic",
			run:     func(context.Context) error { panic("nil map") },
			want:    models.StatusFailed,
			message: "internal panic: nil map",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, sess := newManagedSession(t)
			mc := metrics.NewCollector()
			m := NewSessionManager(st, mc, nil)

			require.NoError(t, m.Start(sess.ID, sess.Kind, tt.run))
			m.Wait()

			got, err := st.GetSession(context.Background(), sess.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			require.NotNil(t, got.ErrorMessage)
			assert.Contains(t, *got.ErrorMessage, tt.message)
			assert.Zero(t, mc.Snapshot().ActiveSessions)
		})
	}
}

func TestSessionManagerShutdownLeavesSessionForResume(t *testing.T) {
	st, sess := newManagedSession(t)
	m := NewSessionManager(st, nil, nil)

	started := make(chan struct{})
	require.NoError(t, m.Start(sess.ID, sess.Kind, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	got, err := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploading, got.Status)
	assert.Nil(t, got.ErrorMessage)

	err = m.Start(sess.ID, sess.Kind, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled, "no new runs after shutdown")
}

func TestSessionManagerShutdownTimeout(t *testing.T) {
	st, sess := newManagedSession(t)
	m := NewSessionManager(st, nil, nil)

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, m.Start(sess.ID, sess.Kind, func(context.Context) error {
		<-release // ignores cancellation
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Shutdown(ctx), context.DeadlineExceeded)
}
