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
	"github.com/xlsmart/talenthub/internal/models"
)

const unknownRoleID = "9a0b7c1e-3f2d-4b6a-8e5c-1d2f3a4b5c6d"

func TestBatchProgressWrites(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		size      int
		wantSteps []int
	}{
		{"25 rows in batches of 10", 25, 10, []int{10, 20, 25}},
		{"exact multiple", 20, 10, []int{10, 20}},
		{"single short batch", 3, 10, []int{3}},
		{"batch of one", 3, 1, []int{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.size)
			h.gen.rules["pos-match"] = answer(h.roles[0].ID)

			sess := h.upload(t, employees(tt.rows, func(int) string { return "pos-match" }), true)

			writes := h.store.writes()
			require.Len(t, writes, len(tt.wantSteps))
			for i, w := range writes {
				assert.Equal(t, tt.wantSteps[i], *w.Processed, "write %d", i)
				assert.Equal(t, tt.rows, *w.Total)
				assert.LessOrEqual(t, *w.Processed, *w.Total)
			}

			assert.Equal(t, models.StatusCompleted, sess.Status)
			assert.Equal(t, tt.rows, sess.Progress.Processed)
			assert.Equal(t, tt.rows, sess.Progress.Assigned)
			assert.Zero(t, sess.Progress.Errors)
			assert.NotNil(t, sess.Progress.CompletedAt)
			assert.LessOrEqual(t, h.gen.maxPar, tt.size)
		})
	}
}

func TestBatchRecordFailuresAreCounted(t *testing.T) {
	h := newHarness(t, 5)
	h.gen.rules["pos-match"] = answer(h.roles[1].ID)
	h.gen.rules["pos-broken"] = fail(errors.New("upstream timeout"))

	// Records 3, 7 and 11 fail.
	emps := employees(12, func(i int) string {
		if i%4 == 2 {
			return "pos-broken"
		}
		return "pos-match"
	})
	sess := h.upload(t, emps, true)

	assert.Equal(t, models.StatusCompleted, sess.Status)
	assert.Equal(t, 12, sess.Progress.Total)
	assert.Equal(t, 12, sess.Progress.Processed)
	assert.Equal(t, 3, sess.Progress.Errors)
	assert.Equal(t, 9, sess.Progress.Assigned)
	assert.Equal(t, 9, sess.Progress.Completed)
	require.Len(t, sess.Progress.Failures, 3)
	assert.Contains(t, sess.Progress.Failures[0], "upstream timeout")
	assert.Nil(t, sess.ErrorMessage)

	pending, err := h.store.ListEmployees(context.Background(), employeeFilter(sess.ID, models.AssignmentPending))
	require.NoError(t, err)
	assert.Len(t, pending, 3, "failed records are left untouched")
}

func TestBatchFailureMessagesAreCapped(t *testing.T) {
	h := newHarness(t, 10)
	h.gen.rules["pos-broken"] = fail(errors.New("bad gateway"))

	sess := h.upload(t, employees(8, func(int) string { return "pos-broken" }), true)

	assert.Equal(t, models.StatusCompleted, sess.Status)
	assert.Equal(t, 8, sess.Progress.Errors)
	assert.Len(t, sess.Progress.Failures, 5)
}

func TestBatchNeverPersistsUnknownRoles(t *testing.T) {
	h := newHarness(t, 4)
	h.gen.rules["pos-match"] = answer(h.roles[0].ID)
	h.gen.rules["pos-nomatch"] = answer("NO_MATCH")
	h.gen.rules["pos-ghost"] = answer(unknownRoleID)
	h.gen.rules["pos-prose"] = answer("I think this person is an engineer.")

	positions := []string{"pos-match", "pos-nomatch", "pos-ghost", "pos-prose", "pos-match", "pos-ghost"}
	sess := h.upload(t, employees(len(positions), func(i int) string { return positions[i] }), true)
	require.Equal(t, models.StatusCompleted, sess.Status)
	assert.Equal(t, 2, sess.Progress.Assigned)
	assert.Equal(t, 6, sess.Progress.Completed)

	valid := map[string]bool{h.roles[0].ID: true, h.roles[1].ID: true}
	all, err := h.store.ListEmployees(context.Background(), employeeFilter(sess.ID, ""))
	require.NoError(t, err)
	require.Len(t, all, len(positions))

	for _, e := range all {
		require.NoError(t, e.Check())
		switch e.Position {
		case "pos-match":
			assert.Equal(t, models.AssignmentAssigned, e.RoleAssignmentStatus)
			require.NotNil(t, e.StandardRoleID)
			assert.True(t, valid[*e.StandardRoleID])
		default:
			assert.Equal(t, models.AssignmentNoMatch, e.RoleAssignmentStatus, e.Position)
			assert.Nil(t, e.StandardRoleID)
			assert.Nil(t, e.AISuggestedRoleID)
		}
	}
}

func TestBatchSuggestMode(t *testing.T) {
	h := newHarness(t, 10)
	h.gen.rules["pos-match"] = answer(`{"role_id": "` + h.roles[1].ID + `", "confidence": 0.8}`)

	sess := h.upload(t, employees(2, func(int) string { return "pos-match" }), false)
	require.Equal(t, models.StatusCompleted, sess.Status)
	assert.Equal(t, "suggest", sess.Progress.Extra["mode"])

	all, err := h.store.ListEmployees(context.Background(), employeeFilter(sess.ID, ""))
	require.NoError(t, err)
	for _, e := range all {
		assert.Equal(t, models.AssignmentSuggested, e.RoleAssignmentStatus)
		assert.Nil(t, e.StandardRoleID)
		require.NotNil(t, e.AISuggestedRoleID)
		assert.Equal(t, h.roles[1].ID, *e.AISuggestedRoleID)
		require.NotNil(t, e.AssignmentConfidence)
		assert.InDelta(t, 0.8, *e.AssignmentConfidence, 1e-9)
	}
}

func TestBatchFatalErrorAborts(t *testing.T) {
	h := newHarness(t, 5)
	h.gen.rules["pos-any"] = fail(fmt.Errorf("%w: 401 unauthorized", llm.ErrFatalAPI))

	sess := h.upload(t, employees(12, func(int) string { return "pos-any" }), true)

	assert.Equal(t, models.StatusError, sess.Status)
	require.NotNil(t, sess.ErrorMessage)
	assert.Contains(t, *sess.ErrorMessage, "401 unauthorized")
	assert.Equal(t, 5, sess.Progress.Processed, "stops after the first batch")
	assert.Equal(t, 5, h.gen.calls)
}

func TestBatchProviderErrorsThroughModel(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus models.SessionStatus
		wantDone   int
		wantErrors int
	}{
		{"rate limited record is counted", errors.New("status code: 429: rate limit exceeded, retry later"), models.StatusCompleted, 12, 1},
		{"server error is counted", errors.New("status code: 502: bad gateway"), models.StatusCompleted, 12, 1},
		{"rejected credentials abort", errors.New("API returned unexpected status code: 401: invalid api key"), models.StatusError, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 5)
			h.throughModel()
			h.gen.rules["pos-match"] = answer(h.roles[0].ID)
			h.gen.rules["pos-flaky"] = fail(tt.err)

			sess := h.upload(t, employees(12, func(i int) string {
				if i == 2 {
					return "pos-flaky"
				}
				return "pos-match"
			}), true)

			assert.Equal(t, tt.wantStatus, sess.Status)
			assert.Equal(t, tt.wantDone, sess.Progress.Processed)
			assert.Equal(t, tt.wantErrors, sess.Progress.Errors)
			assert.LessOrEqual(t, sess.Progress.Processed, sess.Progress.Total)
		})
	}
}

func TestBatchSessionWriteFailureFailsSession(t *testing.T) {
	h := newHarness(t, 10)
	h.gen.rules["pos-match"] = answer(h.roles[0].ID)
	h.store.failOnWrite = 2

	sess := h.upload(t, employees(25, func(int) string { return "pos-match" }), true)

	assert.Equal(t, models.StatusFailed, sess.Status)
	require.NotNil(t, sess.ErrorMessage)
	assert.Contains(t, *sess.ErrorMessage, "database connection lost")
	assert.Equal(t, 10, sess.Progress.Processed)
	assert.Equal(t, 20, h.gen.calls, "the third batch never runs")
}

// intOp fails every record divisible by three and panics on 13.
type intOp struct{}

func (intOp) Name() string { return "int_op" }
func (intOp) Statuses() (models.SessionStatus, models.SessionStatus) {
	return models.StatusAnalyzing, ""
}
func (intOp) Label(n int) string { return fmt.Sprintf("rec-%d", n) }
func (intOp) Apply(_ context.Context, n int) (Outcome, error) {
	if n == 13 {
		panic("unlucky")
	}
	if n%3 == 0 {
		return OutcomeCompleted, errors.New("divisible by three")
	}
	return OutcomeCompleted, nil
}

func newSkillsSession(t *testing.T, h *harness, total int) *models.UploadSession {
	t.Helper()
	sess, err := h.store.CreateSession(context.Background(), models.NewSession{
		Name:      "direct",
		Kind:      models.KindSkillsAssessment,
		FileNames: []string{"manual-selection"},
		TotalRows: total,
		CreatedBy: "tester",
	})
	require.NoError(t, err)
	return sess
}

func TestRunBatchesGenericOperation(t *testing.T) {
	h := newHarness(t, 4)
	sess := newSkillsSession(t, h, 14)

	records := make([]int, 14)
	for i := range records {
		records[i] = i + 1
	}

	tally, err := RunBatches(context.Background(), h.batch, sess.ID, records, intOp{}, RunParams{})
	require.NoError(t, err)
	assert.Equal(t, 14, tally.Processed)
	assert.Equal(t, 5, tally.Errors, "3, 6, 9, 12 and the panic on 13")
	assert.Equal(t, 9, tally.Completed)
	assert.Zero(t, tally.Assigned)

	got, err := h.store.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Len(t, h.store.writes(), 4)
}

func TestRunBatchesResumeBase(t *testing.T) {
	h := newHarness(t, 10)
	sess := newSkillsSession(t, h, 7)

	base := Tally{Processed: 5, Completed: 4, Errors: 1, Failures: []string{"rec-0: earlier"}}
	tally, err := RunBatches(context.Background(), h.batch, sess.ID, []int{1, 2}, intOp{}, RunParams{Base: base})
	require.NoError(t, err)
	assert.Equal(t, 7, tally.Total)
	assert.Equal(t, 7, tally.Processed)
	assert.Equal(t, 6, tally.Completed)
	assert.Equal(t, []string{"rec-0: earlier"}, tally.Failures)
}

func TestRunBatchesCancelledDuringDelay(t *testing.T) {
	h := newHarness(t, 2)
	h.batch.opts.Delay = time.Hour
	sess := newSkillsSession(t, h, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := RunBatches(ctx, h.batch, sess.ID, []int{1, 2, 4, 5}, intOp{}, RunParams{})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	got, err := h.store.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAnalyzing, got.Status, "left for resume")
	assert.Equal(t, 2, got.Progress.Processed)
	assert.Nil(t, got.ErrorMessage)
}

func TestRunBatchesCancelledBeforeStart(t *testing.T) {
	h := newHarness(t, 2)
	h.store.honorCtx = true
	sess := newSkillsSession(t, h, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunBatches(ctx, h.batch, sess.ID, []int{1, 2}, intOp{}, RunParams{})
	require.ErrorIs(t, err, context.Canceled)

	got, err := h.store.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.Status, got.Status, "left for resume")
	assert.Nil(t, got.ErrorMessage)
	assert.Empty(t, h.store.writes())
}

func TestRunBatchesRejectsTerminalSession(t *testing.T) {
	h := newHarness(t, 2)
	sess := newSkillsSession(t, h, 2)
	require.NoError(t, h.store.FailSession(context.Background(), sess.ID, models.StatusFailed, "operator abort"))

	_, err := RunBatches(context.Background(), h.batch, sess.ID, []int{1, 2}, intOp{}, RunParams{})
	require.Error(t, err)
	assert.Empty(t, h.store.writes())

	got, err := h.store.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "operator abort", *got.ErrorMessage)
}
