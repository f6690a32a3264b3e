package statusserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holotable/swgoh-autopilot/internal/config"
	"github.com/holotable/swgoh-autopilot/internal/recovery"
)

func newTestServer(t *testing.T, sources Sources) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.ServerConfig{Enabled: true, Host: "127.0.0.1", Port: 8090}
	s, err := NewServer(cfg, sources, logger.WithField("component", "status"))
	require.NoError(t, err)
	return s
}

func TestNewServerRejectsInvalidConfig(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	_, err := NewServer(&config.ServerConfig{Host: "127.0.0.1", Port: 0}, Sources{}, logger.WithField("component", "status"))
	assert.ErrorContains(t, err, "invalid server config")
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, Sources{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestStatusEndpointIncludesErrorSummary(t *testing.T) {
	s := newTestServer(t, Sources{
		ErrorSummary: func() map[string]any {
			return map[string]any{"total_errors": 7}
		},
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	errors, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(7), errors["total_errors"])
}

func TestErrorsEndpointHonorsCount(t *testing.T) {
	var requested int
	s := newTestServer(t, Sources{
		RecentErrors: func(count int) []recovery.ErrorRecord {
			requested = count
			return nil
		},
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/errors?count=5", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, requested)
}

func TestErrorsEndpointDefaultsCount(t *testing.T) {
	var requested int
	s := newTestServer(t, Sources{
		RecentErrors: func(count int) []recovery.ErrorRecord {
			requested = count
			return nil
		},
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/errors?count=bogus", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, requested)
}

func TestStatsEndpointWithoutSource(t *testing.T) {
	s := newTestServer(t, Sources{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/stats", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebSocketBroadcast(t *testing.T) {
	s := newTestServer(t, Sources{})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// 等待连接注册完成
	require.Eventually(t, func() bool {
		return s.Hub().ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	s.Hub().Broadcast("battle_completed", map[string]any{"mode": "regular"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "battle_completed", event.Type)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	s := newTestServer(t, Sources{})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return s.Hub().ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	s.Hub().Close()
	assert.Zero(t, s.Hub().ClientCount())

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "connection closed by server")
}
