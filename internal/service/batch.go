package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xlsmart/talenthub/internal/llm"
	"github.com/xlsmart/talenthub/internal/metrics"
	"github.com/xlsmart/talenthub/internal/models"
	"github.com/xlsmart/talenthub/internal/store"
)

// Outcome is the result of applying an operation to one record.
type Outcome int

const (
	// OutcomeCompleted is a successful record with nothing to match.
	OutcomeCompleted Outcome = iota
	// OutcomeMatched is a successful record that received a role.
	OutcomeMatched
	// OutcomeNoMatch is a successful record the classifier could not place.
	OutcomeNoMatch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeNoMatch:
		return "no_match"
	default:
		return "completed"
	}
}

// RecordOperation is the per-record strategy run by the batch processor.
type RecordOperation[T any] interface {
	// Name labels logs and metrics.
	Name() string
	// Statuses returns the session status while running and, when not empty,
	// the status to pass through before completing.
	Statuses() (running, finished models.SessionStatus)
	// Label identifies a record in failure messages.
	Label(record T) string
	Apply(ctx context.Context, record T) (Outcome, error)
}

// Tally holds the running counters of a batch run.
type Tally struct {
	Total     int
	Processed int
	Assigned  int
	Completed int
	Errors    int
	Failures  []string
}

func (t Tally) update(extra map[string]any) models.ProgressUpdate {
	u := models.Counters(t.Total, t.Processed, t.Assigned, t.Completed, t.Errors)
	u.Failures = t.Failures
	u.Extra = extra
	return u
}

// BatchOptions configures a BatchProcessor.
type BatchOptions struct {
	Size                int
	Delay               time.Duration
	MaxReportedFailures int
}

// BatchProcessor drives a RecordOperation over a session's records in fixed
// size batches, persisting progress once per batch.
type BatchProcessor struct {
	store   store.SessionStore
	opts    BatchOptions
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(st store.SessionStore, opts BatchOptions, mc *metrics.Collector, logger *slog.Logger) *BatchProcessor {
	if opts.Size <= 0 {
		opts.Size = 10
	}
	if opts.MaxReportedFailures <= 0 {
		opts.MaxReportedFailures = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		store:   st,
		opts:    opts,
		metrics: mc,
		logger:  logger.With("component", "batch"),
	}
}

// RunParams carries per-run inputs beyond the records themselves.
type RunParams struct {
	// Base holds counters from records handled before this run (resume).
	Base Tally
	// Extra is merged into the stored progress on every write.
	Extra map[string]any
}

// RunBatches applies op to every record and completes the session.
//
// Records are split into batches of the configured size. Each batch runs
// concurrently and is awaited in full before its progress is written; batches
// never overlap. A record error is counted and the run continues. A fatal
// provider error, or a failed session write, fails the session and stops.
// Cancelling ctx stops between batches without touching the session.
func RunBatches[T any](ctx context.Context, p *BatchProcessor, sessionID string, records []T, op RecordOperation[T], params RunParams) (Tally, error) {
	logger := p.logger.With("session_id", sessionID, "operation", op.Name())
	running, finished := op.Statuses()

	tally := params.Base
	tally.Total = params.Base.Processed + len(records)
	tally.Failures = append([]string(nil), params.Base.Failures...)

	if err := p.enter(ctx, sessionID, running); err != nil {
		return tally, p.fail(ctx, sessionID, fmt.Errorf("set status %s: %w", running, err))
	}

	batches := (len(records) + p.opts.Size - 1) / p.opts.Size
	logger.Info("batch run started", "records", len(records), "batches", batches, "batch_size", p.opts.Size)

	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			return tally, err
		}

		start := b * p.opts.Size
		end := min(start+p.opts.Size, len(records))
		batchStart := time.Now()

		res := runBatch(ctx, p, op, records[start:end])

		// A cancelled batch is not persisted; its records are picked up again
		// on resume.
		if err := ctx.Err(); err != nil {
			return tally, err
		}

		tally.Processed += len(res.outcomes) + len(res.failures)
		tally.Errors += len(res.failures)
		for _, o := range res.outcomes {
			tally.Completed++
			if o == OutcomeMatched {
				tally.Assigned++
			}
		}
		for _, msg := range res.failures {
			if len(tally.Failures) < p.opts.MaxReportedFailures {
				tally.Failures = append(tally.Failures, msg)
			}
		}

		writeStart := time.Now()
		err := p.store.UpdateSessionProgress(ctx, sessionID, tally.update(params.Extra))
		p.metrics.RecordTiming(metrics.OpSessionWrite, time.Since(writeStart))
		if err != nil {
			return tally, p.fail(ctx, sessionID, fmt.Errorf("update progress: %w", err))
		}
		p.metrics.RecordTiming(metrics.OpBatch, time.Since(batchStart))

		logger.Debug("batch done",
			"batch", b+1,
			"of", batches,
			"progress", fmt.Sprintf("%d/%d", tally.Processed, tally.Total),
			"errors", tally.Errors)

		if res.fatal != nil {
			return tally, p.fail(ctx, sessionID, fmt.Errorf("%s aborted: %w", op.Name(), res.fatal))
		}

		if b < batches-1 && p.opts.Delay > 0 {
			timer := time.NewTimer(p.opts.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return tally, ctx.Err()
			case <-timer.C:
			}
		}
	}

	if finished != "" {
		if err := p.store.UpdateSessionStatus(ctx, sessionID, finished); err != nil {
			return tally, p.fail(ctx, sessionID, fmt.Errorf("set status %s: %w", finished, err))
		}
	}

	final := tally.update(params.Extra)
	now := time.Now().UTC()
	final.CompletedAt = &now
	if err := p.store.CompleteSession(ctx, sessionID, final); err != nil {
		return tally, p.fail(ctx, sessionID, fmt.Errorf("complete session: %w", err))
	}

	logger.Info("batch run completed",
		"processed", tally.Processed,
		"assigned", tally.Assigned,
		"errors", tally.Errors)
	return tally, nil
}

type batchResult struct {
	outcomes []Outcome
	failures []string
	fatal    error
}

func runBatch[T any](ctx context.Context, p *BatchProcessor, op RecordOperation[T], batch []T) batchResult {
	var (
		mu  sync.Mutex
		res batchResult
		g   errgroup.Group
	)
	g.SetLimit(len(batch))

	for _, rec := range batch {
		g.Go(func() error {
			recStart := time.Now()
			outcome, err := applyRecord(ctx, op, rec)
			p.metrics.RecordTiming(metrics.OpRecord, time.Since(recStart))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.metrics.RecordOutcome(op.Name(), "error")
				p.logger.Warn("record failed", "operation", op.Name(), "record", op.Label(rec), "error", err)
				res.failures = append(res.failures, fmt.Sprintf("%s: %v", op.Label(rec), err))
				if errors.Is(err, llm.ErrFatalAPI) && res.fatal == nil {
					res.fatal = err
				}
				return nil
			}
			p.metrics.RecordOutcome(op.Name(), outcome.String())
			res.outcomes = append(res.outcomes, outcome)
			return nil
		})
	}
	_ = g.Wait() // workers never return an error
	return res
}

func applyRecord[T any](ctx context.Context, op RecordOperation[T], rec T) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return op.Apply(ctx, rec)
}

// enter moves the session to status. A resumed session that already got
// further along the forward path, e.g. one interrupted between its last batch
// and completion, keeps its status.
func (p *BatchProcessor) enter(ctx context.Context, sessionID string, status models.SessionStatus) error {
	sess, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.Status.Terminal() && sess.Status.After(status) {
		return nil
	}
	return p.store.UpdateSessionStatus(ctx, sessionID, status)
}

// fail moves the session to its failure status and returns err. When ctx is
// already cancelled the session is left as is for resume and the returned
// error carries the cancellation.
func (p *BatchProcessor) fail(ctx context.Context, sessionID string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		p.logger.Info("run cancelled, session left for resume", "session_id", sessionID, "error", err)
		return fmt.Errorf("%w: %w", cerr, err)
	}
	status := failStatus(err)
	if ferr := p.store.FailSession(context.WithoutCancel(ctx), sessionID, status, err.Error()); ferr != nil {
		p.logger.Error("failed to mark session failed", "session_id", sessionID, "error", ferr)
	}
	return err
}
