package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/xlsmart/talenthub/internal/models"
	"github.com/xlsmart/talenthub/internal/store"
)

// Session writes are read-check-write: the state machine is checked in Go,
// then the UPDATE is guarded on the status that was read. An empty result
// means another writer moved the session first.

func (c *Client) CreateSession(ctx context.Context, in models.NewSession) (*models.UploadSession, error) {
	in, err := store.ValidateNewSession(in)
	if err != nil {
		return nil, err
	}
	rows, err := query[sessionRow](ctx, c, "create session", `
		CREATE type::record("upload_session", $id) CONTENT {
			name: $name,
			kind: $kind,
			file_names: $file_names,
			total_rows: $total_rows,
			status: $status,
			progress: { total: $total_rows, processed: 0, assigned: 0, completed: 0, errors: 0 },
			created_by: $created_by,
			record_ids: $record_ids
		} RETURN AFTER
	`, map[string]any{
		"id":         uuid.New().String(),
		"name":       in.Name,
		"kind":       in.Kind,
		"file_names": in.FileNames,
		"total_rows": in.TotalRows,
		"status":     in.Status,
		"created_by": in.CreatedBy,
		"record_ids": nonNil(in.RecordIDs),
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create session: no row returned")
	}
	s, err := rows[0].model()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) GetSession(ctx context.Context, id string) (*models.UploadSession, error) {
	rows, err := query[sessionRow](ctx, c, "get session",
		`SELECT * FROM type::record("upload_session", $id)`, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}
	s, err := rows[0].model()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) ListSessions(ctx context.Context, f store.SessionFilter) ([]models.UploadSession, error) {
	var where []string
	vars := map[string]any{}
	if f.Kind != "" {
		where = append(where, "kind = $kind")
		vars["kind"] = f.Kind
	}
	if f.Status != "" {
		where = append(where, "status = $status")
		vars["status"] = f.Status
	}
	if f.CreatedBy != "" {
		where = append(where, "created_by = $created_by")
		vars["created_by"] = f.CreatedBy
	}

	sql := "SELECT * FROM upload_session"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		sql += " LIMIT $limit"
		vars["limit"] = f.Limit
	}

	rows, err := query[sessionRow](ctx, c, "list sessions", sql, vars)
	if err != nil {
		return nil, err
	}
	return convert[sessionRow, models.UploadSession](rows)
}

func (c *Client) ListIncompleteSessions(ctx context.Context) ([]models.UploadSession, error) {
	rows, err := query[sessionRow](ctx, c, "list incomplete sessions", `
		SELECT * FROM upload_session
		WHERE status NOT IN ["completed", "failed", "error"]
		ORDER BY created_at ASC
	`, nil)
	if err != nil {
		return nil, err
	}
	return convert[sessionRow, models.UploadSession](rows)
}

func (c *Client) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	s, err := c.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if err := store.CheckTransition(id, s.Status, status); err != nil {
		return err
	}
	if s.Status == status {
		return nil
	}
	return c.guardedUpdate(ctx, "update session status", id, s.Status,
		"status = $status", map[string]any{"status": status})
}

func (c *Client) UpdateSessionProgress(ctx context.Context, id string, update models.ProgressUpdate) error {
	s, err := c.GetSession(ctx, id)
	if err != nil {
		return err
	}
	merged, err := store.MergeProgress(s, update)
	if err != nil {
		return err
	}
	return c.guardedUpdate(ctx, "update session progress", id, s.Status,
		"progress = $progress", map[string]any{"progress": merged})
}

func (c *Client) CompleteSession(ctx context.Context, id string, update models.ProgressUpdate) error {
	s, err := c.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if err := store.CheckTransition(id, s.Status, models.StatusCompleted); err != nil {
		return err
	}
	merged, err := store.MergeProgress(s, update)
	if err != nil {
		return err
	}
	return c.guardedUpdate(ctx, "complete session", id, s.Status,
		"status = $status, progress = $progress",
		map[string]any{"status": models.StatusCompleted, "progress": merged})
}

func (c *Client) FailSession(ctx context.Context, id string, status models.SessionStatus, msg string) error {
	if err := store.CheckFailStatus(status); err != nil {
		return err
	}
	s, err := c.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if err := store.CheckNotTerminal(s); err != nil {
		return err
	}
	return c.guardedUpdate(ctx, "fail session", id, s.Status,
		"status = $status, error_message = $message",
		map[string]any{"status": status, "message": msg})
}

// guardedUpdate applies set to the session only while it still has status
// from. It returns store.ErrConflict when nothing was updated.
func (c *Client) guardedUpdate(ctx context.Context, op, id string, from models.SessionStatus, set string, vars map[string]any) error {
	vars["id"] = id
	vars["from"] = from
	rows, err := query[sessionRow](ctx, c, op, `
		UPDATE type::record("upload_session", $id)
		SET `+set+`, updated_at = time::now()
		WHERE status = $from
		RETURN AFTER
	`, vars)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s: session %s left %s: %w", op, id, from, store.ErrConflict)
	}
	return nil
}
