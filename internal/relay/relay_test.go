// ABOUTME: Tests for the page-message relay: origin and prefix filtering,
// ABOUTME: and forwarding into the capture actions

package relay

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glidescope/glidescope/internal/model"
)

const testOrigin = "https://dev12345.service-now.com"

func pageMessage(t *testing.T, msgType string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	msg, err := json.Marshal(PageMessage{Type: msgType, Data: raw})
	require.NoError(t, err)
	return msg
}

func TestAccepts(t *testing.T) {
	r := NewRelay(testOrigin, nil)

	assert.True(t, r.Accepts(testOrigin, "SN_DEBUG_LOG"))
	assert.False(t, r.Accepts("https://evil.example.com", "SN_DEBUG_LOG"), "foreign origin")
	assert.False(t, r.Accepts(testOrigin, "ANALYTICS_PING"), "missing prefix")

	open := NewRelay("", nil)
	assert.True(t, open.Accepts("https://anything.example.com", "SN_DEBUG_PERFORMANCE"))
}

func TestForward_LogMessage(t *testing.T) {
	d := newTestDispatcher(t)
	r := NewRelay(testOrigin, d)
	ctx := context.Background()

	entry := model.LogEntry{Timestamp: 1000, Level: model.LevelError, Message: "broken"}
	resp, ok := r.Forward(ctx, testOrigin, pageMessage(t, MessageLog, entry))
	require.True(t, ok)
	require.True(t, resp.OK())

	got := dataMap(t, d.Dispatch(ctx, &Request{Action: ActionSearchLogs}))
	logs, _ := got["logs"].([]model.LogEntry)
	require.Len(t, logs, 1)
	assert.Equal(t, "broken", logs[0].Message)
}

func TestForward_ConsoleMessageStoresAsLog(t *testing.T) {
	d := newTestDispatcher(t)
	r := NewRelay(testOrigin, d)
	ctx := context.Background()

	entry := model.LogEntry{Timestamp: 1000, Level: model.LevelWarn, Message: "careful"}
	_, ok := r.Forward(ctx, testOrigin, pageMessage(t, MessageConsole, entry))
	require.True(t, ok)

	got := dataMap(t, d.Dispatch(ctx, &Request{Action: ActionSearchLogs}))
	logs, _ := got["logs"].([]model.LogEntry)
	assert.Len(t, logs, 1)
}

func TestForward_PerformanceMessage(t *testing.T) {
	d := newTestDispatcher(t)
	r := NewRelay(testOrigin, d)
	ctx := context.Background()

	m := model.Measurement{Timestamp: 1000, Type: model.TypeFetch, Duration: 120}
	resp, ok := r.Forward(ctx, testOrigin, pageMessage(t, MessagePerformance, m))
	require.True(t, ok)
	require.True(t, resp.OK())

	got := dataMap(t, d.Dispatch(ctx, &Request{Action: ActionGetPerformanceData}))
	measurements, _ := got["measurements"].([]model.Measurement)
	assert.Len(t, measurements, 1)
}

func TestForward_DropsForeignOrigin(t *testing.T) {
	d := newTestDispatcher(t)
	r := NewRelay(testOrigin, d)
	ctx := context.Background()

	entry := model.LogEntry{Timestamp: 1, Level: model.LevelInfo, Message: "spoofed"}
	_, ok := r.Forward(ctx, "https://evil.example.com", pageMessage(t, MessageLog, entry))
	assert.False(t, ok)

	got := dataMap(t, d.Dispatch(ctx, &Request{Action: ActionSearchLogs}))
	logs, _ := got["logs"].([]model.LogEntry)
	assert.Empty(t, logs)
}

func TestForward_DropsUnprefixedType(t *testing.T) {
	d := newTestDispatcher(t)
	r := NewRelay(testOrigin, d)

	_, ok := r.Forward(context.Background(), testOrigin, pageMessage(t, "PAGE_EVENT", nil))
	assert.False(t, ok)
}

func TestForward_DropsUnhandledDebugType(t *testing.T) {
	d := newTestDispatcher(t)
	r := NewRelay(testOrigin, d)

	_, ok := r.Forward(context.Background(), testOrigin, pageMessage(t, "SN_DEBUG_FROM_CONTENT", nil))
	assert.False(t, ok)
}

func TestForward_DropsMalformedPayload(t *testing.T) {
	d := newTestDispatcher(t)
	r := NewRelay(testOrigin, d)

	_, ok := r.Forward(context.Background(), testOrigin, []byte("{not json"))
	assert.False(t, ok)
}
