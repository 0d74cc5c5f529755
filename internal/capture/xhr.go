// ABOUTME: Two-phase request hook mirroring the open-then-send call shape
// ABOUTME: Timing runs from send to completion and emits an xhr measurement

package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/glidescope/glidescope/internal/model"
)

// XHRClient issues requests in two phases: Open prepares a request, Send
// executes and measures it. Measurements carry the xhr type so they are
// classified against the API threshold, like fetch.
type XHRClient struct {
	client     *http.Client
	emitter    Emitter
	thresholds ThresholdSource
	enabled    atomic.Bool
}

// XHRRequest is a prepared request awaiting Send.
type XHRRequest struct {
	client *XHRClient
	method string
	url    string
	header http.Header
}

// NewXHRClient builds an enabled client. A nil http.Client uses the
// default client.
func NewXHRClient(client *http.Client, emitter Emitter, thresholds ThresholdSource) *XHRClient {
	if client == nil {
		client = http.DefaultClient
	}
	if thresholds == nil {
		thresholds = staticThresholds
	}
	c := &XHRClient{client: client, emitter: emitter, thresholds: thresholds}
	c.enabled.Store(true)
	return c
}

// Enable turns capture on.
func (c *XHRClient) Enable() { c.enabled.Store(true) }

// Disable turns capture off; sends still execute.
func (c *XHRClient) Disable() { c.enabled.Store(false) }

// Restore returns the underlying client so callers can uninstall the hook.
func (c *XHRClient) Restore() *http.Client { return c.client }

// Open prepares a request. No network activity happens until Send.
func (c *XHRClient) Open(method, url string) *XHRRequest {
	return &XHRRequest{
		client: c,
		method: method,
		url:    url,
		header: make(http.Header),
	}
}

// SetHeader sets a header on the prepared request.
func (r *XHRRequest) SetHeader(key, value string) {
	r.header.Set(key, value)
}

// Send executes the prepared request and emits its measurement. The
// response and any transport error pass through unchanged.
func (r *XHRRequest) Send(ctx context.Context, body io.Reader) (*http.Response, error) {
	c := r.client

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header = r.header

	if !c.enabled.Load() {
		return c.client.Do(req)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	duration := float64(time.Since(start).Microseconds()) / 1000.0

	m := &model.Measurement{
		Timestamp: time.Now().UnixMilli(),
		Type:      model.TypeXHR,
		Duration:  duration,
		URL:       r.url,
		Method:    r.method,
		Context:   model.MeasurementContext{Table: tableFromURL(r.url)},
	}

	if err != nil {
		m.Error = err.Error()
		c.emitter.EmitMeasurement(m)
		c.emitter.EmitLog(&model.LogEntry{
			Timestamp: time.Now().UnixMilli(),
			Level:     model.LevelError,
			Message:   fmt.Sprintf("XHR error: %v", err),
			URL:       r.url,
		})
		return resp, err
	}

	m.Status = resp.StatusCode
	c.emitter.EmitMeasurement(m)

	if duration >= c.thresholds().SlowAPI {
		c.emitter.EmitLog(&model.LogEntry{
			Timestamp: time.Now().UnixMilli(),
			Level:     model.LevelWarn,
			Message:   fmt.Sprintf("Slow XHR call: %.2fms", duration),
			URL:       r.url,
			Context:   model.LogContext{Table: tableFromURL(r.url)},
		})
	}

	return resp, nil
}
