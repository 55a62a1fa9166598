package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/xlsmart/talenthub/internal/models"
	"github.com/xlsmart/talenthub/internal/store"
)

var sessionColumns = []string{
	"id", "name", "kind", "file_names", "total_rows", "status", "progress",
	"error_message", "created_by", "record_ids", "created_at", "updated_at",
}

func scanSession(row scanner) (models.UploadSession, error) {
	var (
		s        models.UploadSession
		progress []byte
		errMsg   sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.Name, &s.Kind, (*pq.StringArray)(&s.FileNames), &s.TotalRows, &s.Status,
		&progress, &errMsg, &s.CreatedBy, (*pq.StringArray)(&s.RecordIDs), &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(progress, &s.Progress); err != nil {
		return s, fmt.Errorf("decode progress: %w", err)
	}
	if errMsg.Valid {
		s.ErrorMessage = &errMsg.String
	}
	if len(s.RecordIDs) == 0 {
		s.RecordIDs = nil
	}
	return s, nil
}

func (s *Store) CreateSession(ctx context.Context, in models.NewSession) (*models.UploadSession, error) {
	in, err := store.ValidateNewSession(in)
	if err != nil {
		return nil, err
	}
	progress, err := json.Marshal(models.Progress{Total: in.TotalRows})
	if err != nil {
		return nil, fmt.Errorf("encode progress: %w", err)
	}
	recordIDs := in.RecordIDs
	if recordIDs == nil {
		recordIDs = []string{}
	}

	id := uuid.New().String()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		ins := psql.Insert("upload_sessions").
			Columns("id", "name", "kind", "file_names", "total_rows", "status", "progress", "created_by", "record_ids").
			Values(id, in.Name, in.Kind, pq.StringArray(in.FileNames), in.TotalRows, in.Status, string(progress), in.CreatedBy, pq.StringArray(recordIDs))
		if _, err := exec(ctx, tx, ins, "create session"); err != nil {
			return err
		}
		return insertEvent(ctx, tx, id, "", in.Status, "session_created")
	})
	if err != nil {
		return nil, err
	}
	return s.GetSession(ctx, id)
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.UploadSession, error) {
	return getSession(ctx, s.db, id, false)
}

func getSession(ctx context.Context, q sq.QueryerContext, id string, lock bool) (*models.UploadSession, error) {
	b := psql.Select(sessionColumns...).From("upload_sessions").Where(sq.Eq{"id": id})
	if lock {
		b = b.Suffix("FOR UPDATE")
	}
	rows, err := queryRows(ctx, q, b, "get session", scanSession)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}
	return &rows[0], nil
}

func (s *Store) ListSessions(ctx context.Context, f store.SessionFilter) ([]models.UploadSession, error) {
	b := psql.Select(sessionColumns...).From("upload_sessions").OrderBy("created_at DESC")
	if f.Kind != "" {
		b = b.Where(sq.Eq{"kind": f.Kind})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": f.Status})
	}
	if f.CreatedBy != "" {
		b = b.Where(sq.Eq{"created_by": f.CreatedBy})
	}
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	return queryRows(ctx, s.db, b, "list sessions", scanSession)
}

func (s *Store) ListIncompleteSessions(ctx context.Context) ([]models.UploadSession, error) {
	b := psql.Select(sessionColumns...).From("upload_sessions").
		Where(sq.NotEq{"status": []string{string(models.StatusCompleted), string(models.StatusFailed), string(models.StatusError)}}).
		OrderBy("created_at ASC")
	return queryRows(ctx, s.db, b, "list incomplete sessions", scanSession)
}

func (s *Store) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := getSession(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := store.CheckTransition(id, cur.Status, status); err != nil {
			return err
		}
		if cur.Status == status {
			return nil
		}
		upd := psql.Update("upload_sessions").
			Set("status", status).
			Set("updated_at", sq.Expr("NOW()")).
			Where(sq.Eq{"id": id})
		if _, err := exec(ctx, tx, upd, "update session status"); err != nil {
			return err
		}
		return insertEvent(ctx, tx, id, cur.Status, status, "status_changed")
	})
}

func (s *Store) UpdateSessionProgress(ctx context.Context, id string, update models.ProgressUpdate) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := getSession(ctx, tx, id, true)
		if err != nil {
			return err
		}
		merged, err := store.MergeProgress(cur, update)
		if err != nil {
			return err
		}
		return writeProgress(ctx, tx, id, merged, nil)
	})
}

func (s *Store) CompleteSession(ctx context.Context, id string, update models.ProgressUpdate) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := getSession(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := store.CheckTransition(id, cur.Status, models.StatusCompleted); err != nil {
			return err
		}
		merged, err := store.MergeProgress(cur, update)
		if err != nil {
			return err
		}
		done := models.StatusCompleted
		if err := writeProgress(ctx, tx, id, merged, &done); err != nil {
			return err
		}
		return insertEvent(ctx, tx, id, cur.Status, done, "completed")
	})
}

func (s *Store) FailSession(ctx context.Context, id string, status models.SessionStatus, msg string) error {
	if err := store.CheckFailStatus(status); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := getSession(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := store.CheckNotTerminal(cur); err != nil {
			return err
		}
		upd := psql.Update("upload_sessions").
			Set("status", status).
			Set("error_message", msg).
			Set("updated_at", sq.Expr("NOW()")).
			Where(sq.Eq{"id": id})
		if _, err := exec(ctx, tx, upd, "fail session"); err != nil {
			return err
		}
		return insertEvent(ctx, tx, id, cur.Status, status, msg)
	})
}

func writeProgress(ctx context.Context, tx *sql.Tx, id string, p models.Progress, status *models.SessionStatus) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	upd := psql.Update("upload_sessions").
		Set("progress", string(data)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id})
	if status != nil {
		upd = upd.Set("status", *status)
	}
	_, err = exec(ctx, tx, upd, "update session progress")
	return err
}

func insertEvent(ctx context.Context, tx *sql.Tx, id string, from, to models.SessionStatus, reason string) error {
	var fromCol any
	if from != "" {
		fromCol = from
	}
	ins := psql.Insert("session_events").
		Columns("session_id", "from_status", "to_status", "reason").
		Values(id, fromCol, to, reason)
	_, err := exec(ctx, tx, ins, "insert session event")
	return err
}

// SessionEvent is one row of a session's status history.
type SessionEvent struct {
	From   models.SessionStatus `json:"from,omitempty"`
	To     models.SessionStatus `json:"to"`
	Reason string               `json:"reason"`
	At     time.Time            `json:"at"`
}

// SessionEvents returns the status history of a session, oldest first.
func (s *Store) SessionEvents(ctx context.Context, id string) ([]SessionEvent, error) {
	b := psql.Select("from_status", "to_status", "reason", "at").
		From("session_events").
		Where(sq.Eq{"session_id": id}).
		OrderBy("at ASC", "id ASC")
	events, err := queryRows(ctx, s.db, b, "session events", func(row scanner) (SessionEvent, error) {
		var (
			ev   SessionEvent
			from sql.NullString
		)
		if err := row.Scan(&from, &ev.To, &ev.Reason, &ev.At); err != nil {
			return ev, err
		}
		ev.From = models.SessionStatus(from.String)
		return ev, nil
	})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		if _, err := s.GetSession(ctx, id); errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return events, nil
}
