package server

import (
	"context"
	"net/http"
	"reflect"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/xlsmart/talenthub/internal/models"
)

const writeWait = 10 * time.Second

// watchSession streams ProgressReports over a websocket. A report is sent
// on connect and whenever the stored session changes; the server closes
// the connection once the session is terminal.
func (s *Server) watchSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := s.deps.Store.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "session_id", id, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reads only detect the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger := s.logger.With("session_id", id)
	logger.Debug("watch started")

	last := sess.Report()
	if err := sendReport(conn, last); err != nil {
		return
	}

	ticker := time.NewTicker(s.deps.WatchInterval)
	defer ticker.Stop()

	for !last.Status.Terminal() {
		select {
		case <-ctx.Done():
			logger.Debug("watch ended by client")
			return
		case <-ticker.C:
		}

		cur, err := s.deps.Store.GetSession(ctx, id)
		if err != nil {
			logger.Warn("watch poll failed", "error", err)
			continue
		}
		report := cur.Report()
		if reflect.DeepEqual(report, last) {
			continue
		}
		if err := sendReport(conn, report); err != nil {
			logger.Debug("watch write failed", "error", err)
			return
		}
		last = report
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(last.Status)),
		time.Now().Add(writeWait))
	logger.Debug("watch finished", "status", last.Status)
}

func sendReport(conn *websocket.Conn, report models.ProgressReport) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(report)
}
