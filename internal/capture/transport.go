// ABOUTME: HTTP transport hook: measures every round trip as a fetch event
// ABOUTME: Slow calls emit a warn entry, failures an error entry; errors re-raise

package capture

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/glidescope/glidescope/internal/model"
)

// Transport decorates an http.RoundTripper, timing each request and
// emitting a fetch-typed measurement. The response and error of the
// underlying transport pass through unchanged.
type Transport struct {
	base       http.RoundTripper
	emitter    Emitter
	thresholds ThresholdSource
	enabled    atomic.Bool
}

// NewTransport wraps base (http.DefaultTransport when nil). The threshold
// source decides when a call is slow enough to also warn about.
func NewTransport(base http.RoundTripper, emitter Emitter, thresholds ThresholdSource) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if thresholds == nil {
		thresholds = staticThresholds
	}
	t := &Transport{base: base, emitter: emitter, thresholds: thresholds}
	t.enabled.Store(true)
	return t
}

// Enable turns capture on.
func (t *Transport) Enable() { t.enabled.Store(true) }

// Disable turns capture off; requests still pass through.
func (t *Transport) Disable() { t.enabled.Store(false) }

// Restore returns the wrapped transport so callers can uninstall the hook.
func (t *Transport) Restore() http.RoundTripper { return t.base }

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.enabled.Load() {
		return t.base.RoundTrip(req)
	}

	url := req.URL.String()
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	duration := float64(time.Since(start).Microseconds()) / 1000.0

	m := &model.Measurement{
		Timestamp: time.Now().UnixMilli(),
		Type:      model.TypeFetch,
		Duration:  duration,
		URL:       url,
		Method:    req.Method,
		Context:   model.MeasurementContext{Table: tableFromURL(url)},
	}

	if err != nil {
		m.Error = err.Error()
		t.emitter.EmitMeasurement(m)
		t.emitter.EmitLog(&model.LogEntry{
			Timestamp: time.Now().UnixMilli(),
			Level:     model.LevelError,
			Message:   fmt.Sprintf("Fetch API error: %v", err),
			URL:       url,
		})
		return resp, err
	}

	m.Status = resp.StatusCode
	t.emitter.EmitMeasurement(m)

	if duration >= t.thresholds().SlowAPI {
		t.emitter.EmitLog(&model.LogEntry{
			Timestamp: time.Now().UnixMilli(),
			Level:     model.LevelWarn,
			Message:   fmt.Sprintf("Slow Fetch API call: %.2fms", duration),
			URL:       url,
			Context:   model.LogContext{Table: tableFromURL(url)},
		})
	}

	return resp, nil
}
