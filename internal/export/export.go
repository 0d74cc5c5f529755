// ABOUTME: Serializes log and performance collections for download
// ABOUTME: JSON pretty output, CSV with ISO timestamps, zstd-compressed archives

package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/glidescope/glidescope/internal/model"
)

// FormatJSON and FormatCSV name the supported export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

var logHeader = []string{"ID", "Timestamp", "Level", "Message", "Table", "Record ID", "User", "URL"}

var measurementHeader = []string{"ID", "Timestamp", "Type", "Duration (ms)", "URL", "Method", "Status", "Table", "Record Count"}

// isoTime renders an epoch-milliseconds timestamp as UTC ISO 8601 with
// millisecond precision.
func isoTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}

// Logs serializes log entries in the requested format.
func Logs(entries []model.LogEntry, format string) (string, error) {
	switch format {
	case FormatCSV:
		return logsCSV(entries)
	case FormatJSON, "":
		return prettyJSON(entries)
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

// Measurements serializes measurements in the requested format.
func Measurements(ms []model.Measurement, format string) (string, error) {
	switch format {
	case FormatCSV:
		return measurementsCSV(ms)
	case FormatJSON, "":
		return prettyJSON(ms)
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

func prettyJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding export: %w", err)
	}
	return string(data), nil
}

func logsCSV(entries []model.LogEntry) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(logHeader); err != nil {
		return "", fmt.Errorf("writing csv header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.ID,
			isoTime(e.Timestamp),
			e.Level,
			e.Message,
			e.Context.Table,
			e.Context.RecordID,
			e.Context.User,
			e.URL,
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing csv: %w", err)
	}
	return buf.String(), nil
}

func measurementsCSV(ms []model.Measurement) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(measurementHeader); err != nil {
		return "", fmt.Errorf("writing csv header: %w", err)
	}
	for _, m := range ms {
		status := ""
		if m.Status != 0 {
			status = strconv.Itoa(m.Status)
		}
		count := ""
		if m.Context.RecordCount != 0 {
			count = strconv.Itoa(m.Context.RecordCount)
		}
		row := []string{
			m.ID,
			isoTime(m.Timestamp),
			m.Type,
			strconv.FormatFloat(m.Duration, 'f', 2, 64),
			m.URL,
			m.Method,
			status,
			m.Context.Table,
			count,
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing csv: %w", err)
	}
	return buf.String(), nil
}

// Compress produces a zstd-compressed archive of an export payload.
func Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating decompressor: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing export: %w", err)
	}
	return out, nil
}
