package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xlsmart/talenthub/internal/models"
)

func writeBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestGetSessionAndErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/sessions/s1":
			writeBody(w, http.StatusOK, map[string]any{
				"success":   true,
				"sessionId": "s1",
				"status":    "assigning_roles",
				"progress":  map[string]any{"total": 25, "processed": 10, "assigned": 9, "errors": 1},
				"running":   true,
			})
		default:
			writeBody(w, http.StatusNotFound, map[string]any{"success": false, "error": "session missing: not found"})
		}
	}))
	defer ts.Close()

	c := New(ts.URL, "hr-admin")
	state, err := c.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigningRoles, state.Status)
	assert.Equal(t, 10, state.Progress.Processed)
	assert.Equal(t, 1, state.Progress.Errors)
	assert.True(t, state.Running)

	_, err = c.GetSession(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestUploadEmployeesSendsMultipart(t *testing.T) {
	var gotUser, gotName, gotAuto, gotFile string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-User-ID")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotName = r.FormValue("sessionName")
		gotAuto = r.FormValue("autoAssign")
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		gotFile = header.Filename
		writeBody(w, http.StatusOK, map[string]any{
			"success":   true,
			"sessionId": "s9",
			"accepted":  2,
			"rowErrors": []map[string]any{{"line": 4, "message": "missing position"}},
		})
	}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "wave1.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,position\nSiti,NOC\n"), 0o644))

	res, err := New(ts.URL, "hr-admin").UploadEmployees(context.Background(), path, "Wave 1", true)
	require.NoError(t, err)
	assert.Equal(t, "s9", res.SessionID)
	require.Len(t, res.RowErrors, 1)
	assert.Equal(t, 4, res.RowErrors[0].Line)

	assert.Equal(t, "hr-admin", gotUser)
	assert.Equal(t, "Wave 1", gotName)
	assert.Equal(t, "true", gotAuto)
	assert.Equal(t, "wave1.csv", gotFile)
}

func TestPollSessionStopsAtTerminal(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		status := "assigning_roles"
		if n >= 3 {
			status = "completed"
		}
		writeBody(w, http.StatusOK, map[string]any{
			"success":  true,
			"status":   status,
			"progress": map[string]any{"total": 3, "processed": n},
		})
	}))
	defer ts.Close()

	var seen []int
	final, err := New(ts.URL, "").PollSession(context.Background(), "s1", time.Millisecond, func(r models.ProgressReport) {
		seen = append(seen, r.Progress.Processed)
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestWatchSession(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/s1/watch") {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for _, st := range []models.SessionStatus{models.StatusAssigningRoles, models.StatusCompleted} {
			require.NoError(t, conn.WriteJSON(models.ProgressReport{SessionID: "s1", Status: st}))
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "completed"))
	}))
	defer ts.Close()

	c := New(ts.URL, "")
	var updates int
	final, err := c.WatchSession(context.Background(), "s1", func(models.ProgressReport) { updates++ })
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Equal(t, 2, updates)

	_, err = c.WatchSession(context.Background(), "missing", nil)
	assert.True(t, IsNotFound(err))
}
