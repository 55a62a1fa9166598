package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xlsmart/talenthub/internal/models"
)

// PollSession re-reads a session every interval until it is terminal.
// onUpdate, if set, sees every report including the last.
func (c *Client) PollSession(ctx context.Context, id string, interval time.Duration, onUpdate func(models.ProgressReport)) (models.ProgressReport, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state, err := c.GetSession(ctx, id)
		if err != nil {
			return models.ProgressReport{}, err
		}
		if onUpdate != nil {
			onUpdate(state.ProgressReport)
		}
		if state.Status.Terminal() {
			return state.ProgressReport, nil
		}

		select {
		case <-ctx.Done():
			return state.ProgressReport, ctx.Err()
		case <-ticker.C:
		}
	}
}

// WatchSession streams progress over the server's websocket until the
// session is terminal or ctx is cancelled.
func (c *Client) WatchSession(ctx context.Context, id string, onUpdate func(models.ProgressReport)) (models.ProgressReport, error) {
	// Convert HTTP endpoint to WebSocket endpoint
	wsEndpoint := c.baseURL
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/api/sessions/" + url.PathEscape(id) + "/watch")
	if err != nil {
		return models.ProgressReport{}, fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return models.ProgressReport{}, &APIError{StatusCode: resp.StatusCode, Message: "session " + id + " not found"}
		}
		return models.ProgressReport{}, fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON when the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var last models.ProgressReport
	for {
		var report models.ProgressReport
		if err := conn.ReadJSON(&report); err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && last.Status.Terminal() {
				return last, nil
			}
			return last, fmt.Errorf("read progress: %w", err)
		}
		last = report
		if onUpdate != nil {
			onUpdate(report)
		}
	}
}

// Follow watches a session over websocket and falls back to polling when the
// socket cannot be opened.
func (c *Client) Follow(ctx context.Context, id string, interval time.Duration, onUpdate func(models.ProgressReport)) (models.ProgressReport, error) {
	report, err := c.WatchSession(ctx, id, onUpdate)
	if err == nil || ctx.Err() != nil || IsNotFound(err) {
		return report, err
	}
	return c.PollSession(ctx, id, interval, onUpdate)
}
