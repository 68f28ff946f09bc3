package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tomato/internal/pomodoro"
	"tomato/internal/report"
	"tomato/internal/storage"
	sqlitestore "tomato/internal/storage/sqlite"
)

var testStart = time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC)

type testServer struct {
	server *Server
	engine *pomodoro.Engine
	clock  *pomodoro.ManualClock
	store  storage.Storage
}

func newTestServer(t *testing.T, reporter Reporter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := sqlitestore.NewSQLiteStore(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })

	clock := pomodoro.NewManualClock(testStart)
	engine := pomodoro.New(
		pomodoro.NewSettingsStore(store, pomodoro.DefaultSettings()),
		pomodoro.NewProgressStore(store),
		pomodoro.Options{Clock: clock, Scheduler: clock},
	)
	require.NoError(t, engine.Load(context.Background()))
	t.Cleanup(engine.Close)

	return &testServer{
		server: NewServer(engine, reporter),
		engine: engine,
		clock:  clock,
		store:  store,
	}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) pomodoro.Snapshot {
	t.Helper()
	var snap pomodoro.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func TestGetTimer(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/timer", "")
	require.Equal(t, http.StatusOK, w.Code)

	snap := decodeSnapshot(t, w)
	assert.Equal(t, pomodoro.PhaseWork, snap.Phase)
	assert.Equal(t, 1500, snap.Remaining)
	assert.False(t, snap.Running)
}

func TestStartPauseCycle(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/timer/start", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeSnapshot(t, w).Running)

	ts.clock.Advance(90 * time.Second)

	w = ts.do(t, http.MethodPost, "/api/timer/pause", "")
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.False(t, snap.Running)
	assert.Equal(t, 1410, snap.Remaining)

	w = ts.do(t, http.MethodPost, "/api/timer/reset", "")
	assert.Equal(t, 1500, decodeSnapshot(t, w).Remaining)
}

func TestSkipAndChangeType(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/timer/skip", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pomodoro.PhaseShortBreak, decodeSnapshot(t, w).Phase)

	w = ts.do(t, http.MethodPost, "/api/timer/type", `{"phase":"long"}`)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, pomodoro.PhaseLongBreak, snap.Phase)
	assert.Equal(t, 900, snap.Remaining)
}

func TestChangeTypeRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing phase", `{}`},
		{"unknown phase", `{"phase":"nap"}`},
		{"not json", `phase=work`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/timer/type", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Equal(t, pomodoro.PhaseWork, ts.engine.State().Phase)
}

func TestSettingsEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, w.Code)
	var settings pomodoro.Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.Equal(t, pomodoro.DefaultSettings(), settings)

	w = ts.do(t, http.MethodPatch, "/api/settings", `{"workDuration":40,"autoStartBreaks":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.Equal(t, 40, settings.WorkDuration)
	assert.True(t, settings.AutoStartBreaks)
	assert.Equal(t, 2400, ts.engine.State().Remaining)

	// Persisted through the store.
	stored, err := pomodoro.NewSettingsStore(ts.store, pomodoro.DefaultSettings()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, stored.WorkDuration)
}

func TestUpdateSettingsRejectsInvalid(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPatch, "/api/settings", `{"longBreakInterval":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "longBreakInterval")
	assert.Equal(t, 4, ts.engine.Settings().LongBreakInterval)
}

func TestReport(t *testing.T) {
	var gotDays int
	ts := newTestServer(t, func(ctx context.Context, days int) (report.Summary, error) {
		gotDays = days
		return report.Summary{Pomodoros: 3}, nil
	})

	w := ts.do(t, http.MethodGet, "/api/report?days=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, gotDays)
	assert.Contains(t, w.Body.String(), `"pomodoros":3`)

	w = ts.do(t, http.MethodGet, "/api/report?days=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportError(t *testing.T) {
	ts := newTestServer(t, func(ctx context.Context, days int) (report.Summary, error) {
		return report.Summary{}, errors.New("database is closed")
	})

	w := ts.do(t, http.MethodGet, "/api/report", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReportRouteNeedsReporter(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/api/report", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t, nil)
	httpServer := httptest.NewServer(ts.server.Handler())
	defer httpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpServer.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "event:") {
				return strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			}
		}
	}

	assert.Equal(t, "snapshot", readEvent())

	ts.engine.Start()
	assert.Equal(t, string(pomodoro.EventStateChange), readEvent())
}
