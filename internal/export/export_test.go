// ABOUTME: Tests for export serialization: JSON round-trip, CSV escaping,
// ABOUTME: ISO timestamp rendering, and zstd archive round-trip

package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glidescope/glidescope/internal/model"
)

func TestLogs_JSONRoundTrip(t *testing.T) {
	entries := []model.LogEntry{
		{ID: "a", Timestamp: 1700000000000, Level: model.LevelError, Message: "boom",
			Context: model.LogContext{Table: "incident", User: "admin"}},
		{ID: "b", Timestamp: 1700000001000, Level: model.LevelInfo, Message: "ok"},
	}

	out, err := Logs(entries, FormatJSON)
	require.NoError(t, err)

	var back []model.LogEntry
	require.NoError(t, json.Unmarshal([]byte(out), &back))
	assert.Equal(t, entries, back)
}

func TestLogs_CSVHeaderAndTimestamp(t *testing.T) {
	entries := []model.LogEntry{
		{ID: "a", Timestamp: 1700000000000, Level: model.LevelWarn, Message: "slow page",
			URL: "https://dev.service-now.com/now"},
	}

	out, err := Logs(entries, FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ID,Timestamp,Level,Message,Table,Record ID,User,URL", lines[0])
	assert.Contains(t, lines[1], "2023-11-14T22:13:20.000Z")
}

func TestLogs_CSVQuoteEscaping(t *testing.T) {
	entries := []model.LogEntry{
		{ID: "a", Timestamp: 0, Level: model.LevelLog, Message: `said "hello", twice`},
	}

	out, err := Logs(entries, FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, out, `"said ""hello"", twice"`)
}

func TestMeasurements_CSVDurationPrecision(t *testing.T) {
	ms := []model.Measurement{
		{ID: "m1", Timestamp: 1700000000000, Type: model.TypeRecordQuery, Duration: 123.456,
			Context: model.MeasurementContext{Table: "incident", RecordCount: 25}},
	}

	out, err := Measurements(ms, FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ID,Timestamp,Type,Duration (ms),URL,Method,Status,Table,Record Count", lines[0])
	assert.Contains(t, lines[1], "123.46")
	assert.Contains(t, lines[1], "incident")
	assert.Contains(t, lines[1], "25")
}

func TestMeasurements_JSONRoundTrip(t *testing.T) {
	ms := []model.Measurement{
		{ID: "m1", Timestamp: 1, Type: model.TypeFetch, Duration: 42, Method: "GET", Status: 200},
	}

	out, err := Measurements(ms, FormatJSON)
	require.NoError(t, err)

	var back []model.Measurement
	require.NoError(t, json.Unmarshal([]byte(out), &back))
	assert.Equal(t, ms, back)
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := Logs(nil, "xml")
	assert.Error(t, err)
	_, err = Measurements(nil, "xml")
	assert.Error(t, err)
}

func TestCompressRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("performance export payload ", 100))

	packed, err := Compress(payload)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(payload))

	back, err := Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, payload, back)
}
