package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamehub-engine/internal/config"
	"github.com/gamehub-engine/internal/domain"
	"github.com/gamehub-engine/internal/engine"
	"github.com/gamehub-engine/internal/engine/rules"
)

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(&config.EngineConfig{
		TickInterval:      time.Second,
		AutoStartDelay:    5 * time.Second,
		AIBackfillPercent: 30,
		AdvisorTimeout:    time.Second,
		SettleTimeout:     time.Second,
		RewardBaseURI:     "https://meta.example.test/rewards",
	}, rules.NewRegistry(), engine.Dependencies{}, logger)
	t.Cleanup(eng.Stop)

	h := NewHandler(eng, nil, nil, nil, logger)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv, eng
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func createTestSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, out := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions", CreateSessionRequest{
		GameType:        domain.GameTypeQuantumDAO,
		MinPlayers:      2,
		MaxPlayers:      8,
		DurationSeconds: 600,
		Creator:         domain.Player{ID: "creator", Name: "Creator"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, out.Success)
	id := out.Data.(map[string]interface{})["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func joinTestPlayer(t *testing.T, srv *httptest.Server, sessionID, playerID string) {
	t.Helper()
	resp, out := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/sessions/%s/join", srv.URL, sessionID),
		domain.Player{ID: playerID, Name: "Player " + playerID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, out.Success)
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		resp, out := doJSON(t, http.MethodGet, srv.URL+path, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, out.Success)
	}
}

func TestListGameTypes(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, out := doJSON(t, http.MethodGet, srv.URL+"/api/v1/games", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	games := out.Data.([]interface{})
	assert.Len(t, games, len(domain.GameTypes))
	first := games[0].(map[string]interface{})
	assert.Contains(t, first, "game_type")
	assert.Contains(t, first, "win_threshold")
	assert.Contains(t, first, "actions")
}

func TestCreateSessionValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []CreateSessionRequest{
		{GameType: "chess", MinPlayers: 2, MaxPlayers: 4, DurationSeconds: 60},
		{GameType: domain.GameTypeQuantumDAO, MinPlayers: 0, MaxPlayers: 4, DurationSeconds: 60},
		{GameType: domain.GameTypeQuantumDAO, MinPlayers: 5, MaxPlayers: 4, DurationSeconds: 60},
		{GameType: domain.GameTypeQuantumDAO, MinPlayers: 2, MaxPlayers: 4, DurationSeconds: 0},
	}
	for _, req := range cases {
		resp, out := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions", req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.False(t, out.Success)
		assert.NotEmpty(t, out.Error)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createTestSession(t, srv)

	joinTestPlayer(t, srv, id, "p1")
	joinTestPlayer(t, srv, id, "p2")

	// Duplicate join conflicts
	resp, _ := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/sessions/%s/join", srv.URL, id),
		domain.Player{ID: "p1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, out := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/sessions/%s/start", srv.URL, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := out.Data.(map[string]interface{})
	assert.Equal(t, string(domain.StatusActive), snap["status"])

	resp, out = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/sessions/%s/actions", srv.URL, id),
		domain.Action{Type: "vote", PlayerID: "p1", Data: map[string]interface{}{"weight": 40}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := out.Data.(map[string]interface{})
	assert.Equal(t, float64(1), result["turn_count"])

	resp, out = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/v1/sessions/%s/leaderboard", srv.URL, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := out.Data.([]interface{})
	require.NotEmpty(t, entries)
	top := entries[0].(map[string]interface{})
	assert.Equal(t, "p1", top["player_id"])
	assert.Equal(t, float64(40), top["score"])
}

func TestSubmitActionValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createTestSession(t, srv)
	joinTestPlayer(t, srv, id, "p1")

	// Structurally invalid action
	resp, _ := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/sessions/%s/actions", srv.URL, id),
		domain.Action{Type: "", PlayerID: "p1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Valid action against a session that is not active yet
	resp, _ = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/sessions/%s/actions", srv.URL, id),
		domain.Action{Type: "vote", PlayerID: "p1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUnknownSessionReturns404(t *testing.T) {
	srv, _ := newTestServer(t)

	paths := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, "/api/v1/sessions/nope", nil},
		{http.MethodPost, "/api/v1/sessions/nope/join", domain.Player{ID: "p1"}},
		{http.MethodPost, "/api/v1/sessions/nope/start", nil},
		{http.MethodPost, "/api/v1/sessions/nope/cancel", nil},
		{http.MethodPost, "/api/v1/sessions/nope/actions", domain.Action{Type: "vote", PlayerID: "p1"}},
		{http.MethodGet, "/api/v1/sessions/nope/leaderboard", nil},
	}
	for _, tc := range paths {
		resp, out := doJSON(t, tc.method, srv.URL+tc.path, tc.body)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "%s %s", tc.method, tc.path)
		assert.False(t, out.Success)
	}
}

func TestListSessionsFilterByStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createTestSession(t, srv)

	resp, out := doJSON(t, http.MethodGet, srv.URL+"/api/v1/sessions?status=waiting", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessions := out.Data.([]interface{})
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].(map[string]interface{})["id"])

	resp, out = doJSON(t, http.MethodGet, srv.URL+"/api/v1/sessions?status=active", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, out.Data)
}

func TestCancelSessionOverHTTP(t *testing.T) {
	srv, eng := newTestServer(t)
	id := createTestSession(t, srv)

	resp, out := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/sessions/%s/cancel", srv.URL, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Success)

	eng.Stop()
	_, ok := eng.Session(id)
	assert.False(t, ok)
}

func TestDisabledSubsystemsReturn503(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/leaderboards/quantum_dao/top", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/archive/sessions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
