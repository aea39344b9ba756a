package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/geoseek/internal/api"
	"github.com/mcoot/geoseek/internal/api/apierr"
	"github.com/mcoot/geoseek/internal/api/response"
	"github.com/mcoot/geoseek/internal/factory"
	"github.com/mcoot/geoseek/internal/model"
	"github.com/mcoot/geoseek/internal/storage/memory"
	"github.com/mcoot/geoseek/internal/testutil"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T, opts ...factory.TestOption) *testServer {
	t.Helper()

	app := factory.NewTestApp(opts...)
	return &testServer{
		handler: app.Router([]string{"https://play.example"}),
		app:     app,
	}
}

func (ts *testServer) request(method, path string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func createBody() map[string]any {
	return map[string]any{
		"name":              "A",
		"isPrivate":         false,
		"displayName":       "Alice",
		"longitude":         "10",
		"latitude":          "10",
		"radius":            "100",
		"startDelaySeconds": 0,
		"durationSeconds":   1,
	}
}

func (ts *testServer) create(t *testing.T, body map[string]any) model.SessionID {
	t.Helper()

	rr := ts.request(http.MethodPost, "/api/v1/sessions", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp response.CreateSessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.SessionID
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error.Code
}

// endSession starts the session and runs its clock out
func (ts *testServer) endSession(t *testing.T, id model.SessionID) {
	t.Helper()

	require.NoError(t, ts.app.Registry.Promote(id))
	snap, ok := ts.app.Registry.Find(id)
	require.True(t, ok)
	for i := 0; i < snap.SecondsUntilEnd; i++ {
		ts.app.Tick()
	}
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp response.Health
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Storage)
}

type downStorage struct{ *memory.Storage }

func (downStorage) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthCheckReportsStorageDown(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{
		Logger:  testutil.NopLogger(),
		Storage: downStorage{memory.New()},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"storage":"unavailable"`)
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t)

	id := ts.create(t, createBody())

	assert.Equal(t, model.SessionID("-2b1096ae"), id)
	snap, ok := ts.app.Registry.Find(id)
	require.True(t, ok)
	assert.Equal(t, model.PhasePending, snap.Phase)
	assert.Equal(t, model.PlayerID("66019dd"), snap.AdminPlayerID)
}

func TestCreateSessionAcceptsNumbers(t *testing.T) {
	ts := newTestServer(t)

	body := createBody()
	body["longitude"] = 10
	body["latitude"] = 10.5
	body["radius"] = 100

	assert.Equal(t, model.SessionID("569265eb"), ts.create(t, body))
}

func TestCreateSessionStartPolicy(t *testing.T) {
	ts := newTestServer(t, factory.WithDefaultStartPolicy(model.StartAuto))

	id := ts.create(t, createBody())
	snap, _ := ts.app.Registry.Find(id)
	assert.Equal(t, model.StartAuto, snap.StartPolicy)

	body := createBody()
	body["name"] = "B"
	body["startPolicy"] = "manual"
	id = ts.create(t, body)
	snap, _ = ts.app.Registry.Find(id)
	assert.Equal(t, model.StartManual, snap.StartPolicy)
}

func TestCreateSessionValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(b map[string]any)
		code   string
	}{
		{"missing name", func(b map[string]any) { delete(b, "name") }, apierr.CodeMissingFields},
		{"missing display name", func(b map[string]any) { b["displayName"] = "" }, apierr.CodeMissingFields},
		{"missing radius", func(b map[string]any) { delete(b, "radius") }, apierr.CodeMissingFields},
		{"private without password", func(b map[string]any) { b["isPrivate"] = true }, apierr.CodeMissingPassword},
		{"missing duration", func(b map[string]any) { delete(b, "durationSeconds") }, apierr.CodeMissingDuration},
		{"non-numeric latitude", func(b map[string]any) { b["latitude"] = "north" }, apierr.CodeInvalidRequest},
		{"latitude out of range", func(b map[string]any) { b["latitude"] = "95" }, apierr.CodeInvalidFields},
		{"unknown start policy", func(b map[string]any) { b["startPolicy"] = "eventually" }, apierr.CodeInvalidFields},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			body := createBody()
			tt.modify(body)

			rr := ts.request(http.MethodPost, "/api/v1/sessions", body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.code, errorCode(t, rr))
			assert.Empty(t, ts.app.Registry.List())
		})
	}
}

func TestCreateSessionMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/sessions", "{not json")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))
}

func TestCreateSessionDuplicate(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, createBody())

	// A different creator does not change the identity of the play area
	body := createBody()
	body["displayName"] = "Bob"
	rr := ts.request(http.MethodPost, "/api/v1/sessions", body)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeSessionExists, errorCode(t, rr))
	assert.Contains(t, rr.Body.String(), "already exists")
}

func TestGetSession(t *testing.T) {
	ts := newTestServer(t)
	body := createBody()
	body["isPrivate"] = true
	body["password"] = "hunter2"
	id := ts.create(t, body)

	rr := ts.request(http.MethodGet, "/api/v1/sessions/"+string(id), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var snap model.SessionSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, id, snap.ID)
	assert.True(t, snap.IsPrivate)
	require.Len(t, snap.Roster, 1)
	assert.NotContains(t, rr.Body.String(), "hunter2")
	assert.NotContains(t, strings.ToLower(rr.Body.String()), "password")
}

func TestGetSessionNotFound(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/sessions/nope", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeSessionNotFound, errorCode(t, rr))
}

func TestListSessions(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"sessions":[]}`, rr.Body.String())

	public := createBody()
	public["name"] = "Zebra"
	ts.create(t, public)

	first := createBody()
	first["name"] = "Alpha"
	ts.create(t, first)

	private := createBody()
	private["name"] = "Hidden"
	private["isPrivate"] = true
	private["password"] = "x"
	ts.create(t, private)

	rr = ts.request(http.MethodGet, "/api/v1/sessions", nil)
	var list response.SessionList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Sessions, 2)
	assert.Equal(t, "Alpha", list.Sessions[0].Name)
	assert.Equal(t, "Zebra", list.Sessions[1].Name)
	assert.Equal(t, 1, list.Sessions[0].PlayerCount)
}

func TestListSessionsFollowsLateJoinPolicy(t *testing.T) {
	for _, policy := range []model.LateJoinPolicy{model.LateJoinReject, model.LateJoinAllow} {
		t.Run(string(policy), func(t *testing.T) {
			ts := newTestServer(t, factory.WithLateJoinPolicy(policy))
			id := ts.create(t, createBody())
			require.NoError(t, ts.app.Registry.Promote(id))

			rr := ts.request(http.MethodGet, "/api/v1/sessions", nil)
			var list response.SessionList
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))

			if policy == model.LateJoinAllow {
				assert.Len(t, list.Sessions, 1)
			} else {
				assert.Empty(t, list.Sessions)
			}
		})
	}
}

func TestSessionSummary(t *testing.T) {
	ts := newTestServer(t, factory.WithReaper(time.Minute))
	id := ts.create(t, createBody())

	rr := ts.request(http.MethodGet, "/api/v1/sessions/"+string(id)+"/summary", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	ts.endSession(t, id)

	// Resident ended session
	rr = ts.request(http.MethodGet, "/api/v1/sessions/"+string(id)+"/summary", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var summary model.SessionSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, "A", summary.Name)
	assert.True(t, ts.app.MockClock.Now().Equal(summary.EndedAt))

	// Archived session
	ts.app.MockClock.Advance(2 * time.Minute)
	require.Equal(t, 1, ts.app.Reaper.Sweep(context.Background()))

	rr = ts.request(http.MethodGet, "/api/v1/sessions/"+string(id), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = ts.request(http.MethodGet, "/api/v1/sessions/"+string(id)+"/summary", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/summaries", nil)
	var list response.SummaryList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Summaries, 1)
	assert.Equal(t, id, list.Summaries[0].ID)
}

func TestSessionSummaryNotFound(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/sessions/nope/summary", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeSummaryNotFound, errorCode(t, rr))
}

func TestListSummariesLimit(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/summaries?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/summaries?limit=2", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"summaries":[]}`, rr.Body.String())
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://play.example")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, "https://play.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
