// ABOUTME: Tests for the capture hooks: console formatting, transport timing,
// ABOUTME: record instrumentation, and enable/disable pass-through

package capture

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glidescope/glidescope/internal/model"
	"github.com/glidescope/glidescope/internal/query"
)

// collector is a thread-safe Emitter for assertions.
type collector struct {
	mu           sync.Mutex
	logs         []*model.LogEntry
	measurements []*model.Measurement
}

func (c *collector) EmitLog(entry *model.LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, entry)
}

func (c *collector) EmitMeasurement(m *model.Measurement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.measurements = append(c.measurements, m)
}

func (c *collector) logCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.logs)
}

func TestTableFromURL(t *testing.T) {
	assert.Equal(t, "incident", tableFromURL("https://dev.service-now.com/api/now/table/incident?sysparm_limit=10"))
	assert.Equal(t, "sys_user", tableFromURL("/api/now/table/sys_user/abc123"))
	assert.Empty(t, tableFromURL("https://dev.service-now.com/api/now/attachment"))
	assert.Empty(t, tableFromURL("https://example.com/unrelated"))
}

func TestConsole_FormatsMixedArgs(t *testing.T) {
	col := &collector{}
	c := NewConsole(col)

	c.Log("saved", map[string]any{"table": "incident"}, 3)

	require.Len(t, col.logs, 1)
	assert.Equal(t, model.LevelLog, col.logs[0].Level)
	assert.Equal(t, `saved {"table":"incident"} 3`, col.logs[0].Message)
}

func TestConsole_EveryLevelCapturesStack(t *testing.T) {
	col := &collector{}
	c := NewConsole(col)

	c.Debug("d")
	c.Log("l")
	c.Info("i")
	c.Warn("w")
	c.Error("boom", errors.New("db down"))

	require.Len(t, col.logs, 5)
	for _, entry := range col.logs {
		assert.NotEmptyf(t, entry.StackTrace, "level %q captured with empty stack trace", entry.Level)
		assert.NotContains(t, entry.StackTrace, "captureStack", "stack should start past the hook frames")
	}
	assert.Equal(t, "boom db down", col.logs[4].Message)
}

func TestConsole_DisabledStopsCapture(t *testing.T) {
	col := &collector{}
	c := NewConsole(col)
	c.Disable()

	c.Info("quiet")
	assert.Zero(t, col.logCount())

	c.Enable()
	c.Info("loud")
	assert.Equal(t, 1, col.logCount())
}

func TestConsole_PageContextAttached(t *testing.T) {
	col := &collector{}
	c := NewConsole(col)
	c.SetPageContext("https://dev.service-now.com/now", "admin")

	c.Warn("heads up")

	require.Len(t, col.logs, 1)
	assert.Equal(t, "https://dev.service-now.com/now", col.logs[0].URL)
	assert.Equal(t, "admin", col.logs[0].Context.User)
}

func TestTransport_MeasuresSuccessfulCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	col := &collector{}
	tr := NewTransport(nil, col, nil)
	client := &http.Client{Transport: tr}

	resp, err := client.Get(srv.URL + "/api/now/table/incident")
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, col.measurements, 1)
	m := col.measurements[0]
	assert.Equal(t, model.TypeFetch, m.Type)
	assert.Equal(t, http.StatusOK, m.Status)
	assert.Equal(t, "GET", m.Method)
	assert.Equal(t, "incident", m.Context.Table)
	assert.Greater(t, m.Duration, 0.0)
}

func TestTransport_SlowCallWarns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	col := &collector{}
	// Threshold of zero classifies every call as slow
	tr := NewTransport(nil, col, func() query.Thresholds {
		return query.Thresholds{SlowQuery: 0, SlowAPI: 0}
	})
	client := &http.Client{Transport: tr}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, col.logs, 1)
	assert.Equal(t, model.LevelWarn, col.logs[0].Level)
	assert.Contains(t, col.logs[0].Message, "Slow Fetch API call")
}

func TestTransport_FailurePropagatesAndLogs(t *testing.T) {
	col := &collector{}
	tr := NewTransport(nil, col, nil)
	client := &http.Client{Transport: tr}

	// Closed server: the dial fails
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := client.Get(url)
	require.Error(t, err)

	require.Len(t, col.measurements, 1)
	assert.NotEmpty(t, col.measurements[0].Error)
	require.Len(t, col.logs, 1)
	assert.Equal(t, model.LevelError, col.logs[0].Level)
}

func TestTransport_DisabledPassesThroughSilently(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	col := &collector{}
	tr := NewTransport(nil, col, nil)
	tr.Disable()
	client := &http.Client{Transport: tr}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, col.measurements)
	assert.Empty(t, col.logs)
}

func TestXHRClient_TwoPhaseSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	col := &collector{}
	c := NewXHRClient(nil, col, nil)

	req := c.Open(http.MethodPost, srv.URL+"/api/now/table/incident")
	req.SetHeader("Accept", "application/json")

	assert.Empty(t, col.measurements, "open must not issue a request")

	resp, err := req.Send(context.Background(), nil)
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, col.measurements, 1)
	m := col.measurements[0]
	assert.Equal(t, model.TypeXHR, m.Type)
	assert.Equal(t, http.StatusCreated, m.Status)
	assert.Equal(t, "incident", m.Context.Table)
}

func TestRecordRecorder_QueryMeasurement(t *testing.T) {
	col := &collector{}
	base := &RecordClient{
		QueryFn: func(ctx context.Context, table, q string) ([]map[string]any, error) {
			return []map[string]any{{"sys_id": "1"}, {"sys_id": "2"}}, nil
		},
	}
	r := NewRecordRecorder(base, col)

	records, err := r.Query(context.Background(), "incident", "active=true")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	require.Len(t, col.measurements, 1)
	m := col.measurements[0]
	assert.Equal(t, model.TypeRecordQuery, m.Type)
	assert.Equal(t, "incident", m.Context.Table)
	assert.Equal(t, "active=true", m.Context.Query)
	assert.Equal(t, 2, m.Context.RecordCount)
	assert.NotEmpty(t, m.StackTrace)
}

func TestRecordRecorder_DeleteAuditEntry(t *testing.T) {
	col := &collector{}
	base := &RecordClient{
		DeleteFn: func(ctx context.Context, table, recordID string) error { return nil },
	}
	r := NewRecordRecorder(base, col)

	require.NoError(t, r.Delete(context.Background(), "incident", "abc123"))

	require.Len(t, col.measurements, 1)
	assert.Equal(t, model.TypeRecordDelete, col.measurements[0].Type)

	require.Len(t, col.logs, 1)
	assert.Equal(t, model.LevelWarn, col.logs[0].Level)
	assert.Equal(t, "Record deleted: incident [abc123]", col.logs[0].Message)
	assert.Equal(t, "abc123", col.logs[0].Context.RecordID)
}

func TestRecordRecorder_ErrorPropagates(t *testing.T) {
	col := &collector{}
	wantErr := errors.New("acl denied")
	base := &RecordClient{
		UpdateFn: func(ctx context.Context, table, recordID string, fields map[string]any) error {
			return wantErr
		},
	}
	r := NewRecordRecorder(base, col)

	err := r.Update(context.Background(), "incident", "abc", map[string]any{"state": 2})
	assert.ErrorIs(t, err, wantErr)

	require.Len(t, col.measurements, 1)
	assert.Equal(t, "acl denied", col.measurements[0].Error)
}

func TestHooks_ToggleAll(t *testing.T) {
	col := &collector{}
	h := NewHooks(col, nil, &RecordClient{})
	require.True(t, h.Enabled())

	h.Disable()
	assert.False(t, h.Enabled())
	h.Console.Info("nothing")
	assert.Zero(t, col.logCount())

	h.Enable()
	h.Console.Info("something")
	assert.Equal(t, 1, col.logCount())
}

func TestRestore_ReturnsWrapped(t *testing.T) {
	col := &collector{}

	base := http.DefaultTransport
	assert.Same(t, base, NewTransport(base, col, nil).Restore())

	backend := &RecordClient{}
	assert.Same(t, backend, NewRecordRecorder(backend, col).Restore().(*RecordClient))

	client := &http.Client{}
	assert.Same(t, client, NewXHRClient(client, col, nil).Restore())
}
