package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorSnapshot(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(OpBatch, 100*time.Millisecond)
	c.RecordTiming(OpBatch, 300*time.Millisecond)
	c.RecordLLMUsage(OpLLMGenerate, 50*time.Millisecond, 120, 8)

	snap := c.Snapshot()
	require.NotNil(t, snap.Batch)
	assert.Equal(t, int64(2), snap.Batch.Count)
	assert.Equal(t, int64(100), snap.Batch.MinTimeMs)
	assert.Equal(t, int64(300), snap.Batch.MaxTimeMs)
	assert.InDelta(t, 200, snap.Batch.AvgTimeMs, 0.001)
	assert.Nil(t, snap.Batch.TotalInputTokens)

	require.NotNil(t, snap.LLMGenerate)
	require.NotNil(t, snap.LLMGenerate.TotalInputTokens)
	assert.Equal(t, int64(120), *snap.LLMGenerate.TotalInputTokens)
	assert.Nil(t, snap.Record, "no data recorded")
}

func TestCollectorActiveSessions(t *testing.T) {
	c := NewCollector()
	c.SessionStarted()
	c.SessionStarted()
	c.SessionFinished("employee_upload", "completed")

	assert.Equal(t, int64(1), c.Snapshot().ActiveSessions)
}

func TestCollectorNilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordTiming(OpBatch, time.Second)
		c.RecordOutcome("assign_role", "matched")
		c.SessionStarted()
		_ = c.Snapshot()
	})
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector()
	c.RecordOutcome("assign_role", "matched")
	c.RecordOutcome("assign_role", "error")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `talenthub_records_total{operation="assign_role",outcome="matched"} 1`)
	assert.Contains(t, string(body), "talenthub_sessions_active")
}
