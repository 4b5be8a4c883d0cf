package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/openbci/internal/acquisition"
	"github.com/banshee-data/openbci/internal/db"
	"github.com/banshee-data/openbci/internal/frame"
	"github.com/banshee-data/openbci/internal/monitoring"
	"github.com/banshee-data/openbci/internal/openbci"
	"github.com/banshee-data/openbci/internal/testutil"
	"github.com/banshee-data/openbci/internal/timeutil"
)

var wall = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	server  *Server
	mux     *http.ServeMux
	node    *openbci.Node
	session *acquisition.FakeSession
	latest  *frame.Latest
	db      *db.DB
}

func newFixture(t *testing.T, record bool) *fixture {
	t.Helper()
	f := &fixture{session: &acquisition.FakeSession{}, latest: &frame.Latest{}}

	var out frame.Port = f.latest
	if record {
		database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
		require.NoError(t, err)
		database.SetLogger(monitoring.Discard)
		t.Cleanup(func() { database.Close() })
		f.db = database
		out = frame.Multi(f.latest, db.NewRecorder(database, nil))
	}

	clock := timeutil.NewMockClock(wall)
	node, err := openbci.New(
		openbci.Config{Board: "cyton", Params: acquisition.Params{SerialPort: "/dev/ttyUSB0"}},
		&acquisition.FakeOpener{Session: f.session}, out,
		openbci.WithClock(clock), openbci.WithLogger(monitoring.Discard), openbci.WithSessionID("sess-1"),
	)
	require.NoError(t, err)
	f.node = node

	f.server = NewServer(node, f.latest, f.db)
	f.server.SetClock(clock)
	f.server.SetLogger(monitoring.Discard)
	f.mux = f.server.ServeMux()
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func (f *fixture) emit(t *testing.T, samples int) {
	t.Helper()
	f.session.Push(testutil.SampleBlock(f.node.Board().NumRows, samples))
	require.NoError(t, f.node.Update())
}

func TestShowBoard(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/board", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var info BoardInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, "cyton", info.Board)
	assert.Equal(t, 250, info.Rate)
	assert.Equal(t, 24, info.NumRows)
	assert.Equal(t, "serial", info.Transport)
	assert.Len(t, info.Labels, 24)
	assert.Equal(t, "eeg_1", info.Labels[1])
	assert.Equal(t, f.node.Command(), info.Command)
	assert.Equal(t, "sess-1", info.Session)

	w = f.do(httptest.NewRequest(http.MethodPost, "/api/board", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestLatestFrame(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/frames/latest", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)

	f.emit(t, 3)
	w = f.do(httptest.NewRequest(http.MethodGet, "/api/frames/latest", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var got frame.Frame
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.NoError(t, got.Validate())
	assert.Equal(t, 3, got.Samples())
	assert.Equal(t, 250, got.Rate())
	assert.Equal(t, "timestamp", got.Columns[22])
	assert.True(t, got.Index[2].Equal(wall))

	w = f.do(httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var stats openbci.Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.Frames)
	assert.Equal(t, int64(3), stats.Samples)
}

func TestSendCommand(t *testing.T) {
	f := newFixture(t, true)
	f.emit(t, 1) // creates the session row so commands can be recorded
	f.session.Response = "ok"

	form := strings.NewReader(url.Values{"command": {"x1160110X"}}.Encode())
	req := httptest.NewRequest(http.MethodPost, "/api/command", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := f.do(req)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var res CommandResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, CommandResult{Command: "x1160110X", Response: "ok"}, res)

	req = httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(`{"command":"d"}`))
	req.Header.Set("Content-Type", "application/json")
	testutil.AssertStatusCode(t, f.do(req).Code, http.StatusOK)

	configs := f.session.Configs()
	assert.Equal(t, []string{"x1160110X", "d"}, configs[len(configs)-2:])

	cmds, err := f.db.Commands("sess-1")
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "ok", cmds[0].Response)
	assert.True(t, cmds[0].Sent.Equal(wall))

	w = f.do(httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1/commands", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
}

func TestSendCommandErrors(t *testing.T) {
	f := newFixture(t, false)

	testutil.AssertStatusCode(t, f.do(httptest.NewRequest(http.MethodGet, "/api/command", nil)).Code, http.StatusMethodNotAllowed)
	testutil.AssertStatusCode(t, f.do(httptest.NewRequest(http.MethodPost, "/api/command", nil)).Code, http.StatusBadRequest)

	req := httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(`{"cmd":"v"}`))
	req.Header.Set("Content-Type", "application/json")
	testutil.AssertStatusCode(t, f.do(req).Code, http.StatusBadRequest)

	f.session.ConfigErr = errors.New("port closed")
	req = httptest.NewRequest(http.MethodPost, "/api/command?command=v", nil)
	testutil.AssertStatusCode(t, f.do(req).Code, http.StatusInternalServerError)

	require.NoError(t, f.node.Terminate())
	req = httptest.NewRequest(http.MethodPost, "/api/command?command=v", nil)
	testutil.AssertStatusCode(t, f.do(req).Code, http.StatusServiceUnavailable)
}

func TestSessionsWithoutRecording(t *testing.T) {
	f := newFixture(t, false)
	for _, path := range []string{"/api/sessions", "/api/sessions/x", "/api/sessions/x/samples", "/api/sessions/x/commands"} {
		w := f.do(httptest.NewRequest(http.MethodGet, path, nil))
		testutil.AssertStatusCode(t, w.Code, http.StatusServiceUnavailable)
	}
}

func TestSessionsAndSamples(t *testing.T) {
	f := newFixture(t, true)
	f.emit(t, 5)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var sessions []db.Session
	require.NoError(t, json.NewDecoder(w.Body).Decode(&sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-1", sessions[0].ID)
	assert.Equal(t, "cyton", sessions[0].Board)
	assert.Equal(t, int64(5), sessions[0].Samples)

	w = f.do(httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	w = f.do(httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)

	// samples 0..4 end at the wall clock, one second apart
	from := url.QueryEscape(wall.Add(-2 * time.Second).Format(time.RFC3339))
	w = f.do(httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1/samples?from="+from+"&limit=2", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var samples []db.Sample
	require.NoError(t, json.NewDecoder(w.Body).Decode(&samples))
	require.Len(t, samples, 2)
	assert.True(t, samples[0].Time.Equal(wall.Add(-2*time.Second)))
	assert.Equal(t, 2.0, samples[0].Values[0])

	for _, bad := range []string{"?limit=0", "?limit=x", "?from=yesterday", "?to=soon"} {
		w = f.do(httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1/samples"+bad, nil))
		testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
	}

	w = f.do(httptest.NewRequest(http.MethodGet, "/api/sessions/empty/samples", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestShowVersion(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(httptest.NewRequest(http.MethodGet, "/api/version", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Contains(t, w.Body.String(), `"version"`)
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	logf := func(format string, v ...interface{}) {
		lines = append(lines, format)
	}
	h := LoggingMiddleware(logf, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/board", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Len(t, lines, 1)
	assert.Contains(t, statusCodeColor(418), "418")
}
