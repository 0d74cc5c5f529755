// ABOUTME: Tests for the HTTP and websocket surface using httptest servers
// ABOUTME: Covers dispatch, page-message filtering, health, and live pushes

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glidescope/glidescope/internal/capture"
	"github.com/glidescope/glidescope/internal/kvstore"
	"github.com/glidescope/glidescope/internal/model"
	"github.com/glidescope/glidescope/internal/notify"
	"github.com/glidescope/glidescope/internal/relay"
	"github.com/glidescope/glidescope/internal/settings"
	"github.com/glidescope/glidescope/internal/store"
)

const testOrigin = "https://dev12345.service-now.com"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	db, err := store.New(filepath.Join(dir, "glidescope.db"), store.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	state, err := kvstore.Open(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	b := notify.NewBroadcaster(nil)
	t.Cleanup(b.Close)

	d := relay.NewDispatcher(db, settings.New(db, state), state, b, nil)
	return New(d, relay.NewRelay(testOrigin, d), b, db, ":0")
}

func postJSON(t *testing.T, handler http.Handler, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) *relay.Response {
	t.Helper()
	var resp relay.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["logs"])
}

func TestMessageEndpoint_Success(t *testing.T) {
	s := newTestServer(t)

	w := postJSON(t, s.Handler(), "/api/message", relay.Request{
		Action:   relay.ActionLogCaptured,
		LogEntry: &model.LogEntry{Timestamp: 1, Level: model.LevelInfo, Message: "hello"},
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	require.True(t, resp.OK())
}

func TestMessageEndpoint_UnknownActionStill200(t *testing.T) {
	s := newTestServer(t)

	w := postJSON(t, s.Handler(), "/api/message", relay.Request{Action: "BOGUS"}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	require.False(t, resp.OK())
	assert.Equal(t, relay.CodeUnknownAction, resp.Error.Code)
}

func TestPageMessageEndpoint_AcceptedAndStored(t *testing.T) {
	s := newTestServer(t)

	entry, _ := json.Marshal(model.LogEntry{Timestamp: 1, Level: model.LevelError, Message: "page error"})
	w := postJSON(t, s.Handler(), "/api/page-message", relay.PageMessage{
		Type: relay.MessageLog,
		Data: entry,
	}, map[string]string{"Origin": testOrigin})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	assert.True(t, resp.OK())

	w = postJSON(t, s.Handler(), "/api/message", relay.Request{Action: relay.ActionSearchLogs}, nil)
	resp = decodeEnvelope(t, w)
	data, _ := resp.Data.(map[string]any)
	logs, _ := data["logs"].([]any)
	assert.Len(t, logs, 1)
}

func TestPageMessageEndpoint_ForeignOriginDropped(t *testing.T) {
	s := newTestServer(t)

	entry, _ := json.Marshal(model.LogEntry{Timestamp: 1, Level: model.LevelInfo, Message: "spoof"})
	w := postJSON(t, s.Handler(), "/api/page-message", relay.PageMessage{
		Type: relay.MessageLog,
		Data: entry,
	}, map[string]string{"Origin": "https://evil.example.com"})

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestPageMessageEndpoint_UnprefixedDropped(t *testing.T) {
	s := newTestServer(t)

	w := postJSON(t, s.Handler(), "/api/page-message", relay.PageMessage{
		Type: "PAGE_NOISE",
	}, map[string]string{"Origin": testOrigin})

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocket_DispatchRoundTrip(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialWS(t, srv, "/ws?topics=status")

	req, _ := json.Marshal(relay.Request{Action: relay.ActionGetStatus})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, req))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame wsFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "response", frame.Kind)
	require.NotNil(t, frame.Response)
	assert.Equal(t, relay.TypeSuccess, frame.Response.Type)
}

func TestWebSocket_ReceivesPushedEvents(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialWS(t, srv, "/ws?topics=logs")

	// Give the session time to register its subscription
	require.Eventually(t, func() bool {
		w := postJSON(t, s.Handler(), "/api/message", relay.Request{
			Action:   relay.ActionLogCaptured,
			LogEntry: &model.LogEntry{Timestamp: 1, Level: model.LevelWarn, Message: "pushed"},
		}, nil)
		if w.Code != http.StatusOK {
			return false
		}
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return false
		}
		return frame.Kind == "event" &&
			frame.Event != nil &&
			frame.Event.Action == relay.ActionLogCaptured
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWebSocket_DebuggerControlTogglesFollowerHooks(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var emitted atomic.Int64
	agentHooks := capture.NewHooks(capture.EmitterFuncs{
		Log: func(*model.LogEntry) { emitted.Add(1) },
	}, nil, &capture.RecordClient{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?topics=status"
	go relay.FollowStatus(ctx, url, agentHooks, nil)

	require.True(t, agentHooks.Enabled())

	// Repost until the follower's subscription is live and the event lands
	require.Eventually(t, func() bool {
		postJSON(t, s.Handler(), "/api/message", relay.Request{Action: relay.ActionDisableDebugger}, nil)
		return !agentHooks.Enabled()
	}, 5*time.Second, 50*time.Millisecond)

	// Disabled hooks stop emitting even though calls still pass through
	before := emitted.Load()
	agentHooks.Console.Info("suppressed while disabled")
	assert.Equal(t, before, emitted.Load())

	require.Eventually(t, func() bool {
		postJSON(t, s.Handler(), "/api/message", relay.Request{Action: relay.ActionEnableDebugger}, nil)
		return agentHooks.Enabled()
	}, 5*time.Second, 50*time.Millisecond)

	agentHooks.Console.Info("captured again")
	assert.Greater(t, emitted.Load(), before)
}
