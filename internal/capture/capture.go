// ABOUTME: Capture hook plumbing shared by the console, network, and record hooks
// ABOUTME: Hooks emit entries and measurements through an Emitter when enabled

package capture

import (
	"regexp"
	"sync/atomic"

	"github.com/glidescope/glidescope/internal/model"
	"github.com/glidescope/glidescope/internal/query"
)

// Emitter receives captured events. The serving pipeline implements it by
// persisting to the event store and pushing to subscribers.
type Emitter interface {
	EmitLog(entry *model.LogEntry)
	EmitMeasurement(m *model.Measurement)
}

// EmitterFuncs adapts two functions to the Emitter interface.
type EmitterFuncs struct {
	Log     func(entry *model.LogEntry)
	Measure func(m *model.Measurement)
}

func (e EmitterFuncs) EmitLog(entry *model.LogEntry) {
	if e.Log != nil {
		e.Log(entry)
	}
}

func (e EmitterFuncs) EmitMeasurement(m *model.Measurement) {
	if e.Measure != nil {
		e.Measure(m)
	}
}

// ThresholdSource supplies the current slow thresholds so the hooks follow
// settings changes without re-wiring.
type ThresholdSource func() query.Thresholds

func staticThresholds() query.Thresholds { return query.DefaultThresholds() }

var tableAPIPattern = regexp.MustCompile(`/api/now/table/([^/?]+)`)

// tableFromURL extracts the ServiceNow table name from a Table API URL,
// empty when the URL is not a Table API call.
func tableFromURL(url string) string {
	m := tableAPIPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// Hooks groups the capture hooks so they can be toggled together, which is
// how the enable and disable operations act on them.
type Hooks struct {
	Console   *Console
	Transport *Transport
	Records   *RecordRecorder

	enabled atomic.Bool
}

// NewHooks wires the three hooks to one emitter and enables them.
func NewHooks(emitter Emitter, thresholds ThresholdSource, base *RecordClient) *Hooks {
	h := &Hooks{
		Console:   NewConsole(emitter),
		Transport: NewTransport(nil, emitter, thresholds),
		Records:   NewRecordRecorder(base, emitter),
	}
	h.Enable()
	return h
}

// Enable turns all capture on.
func (h *Hooks) Enable() {
	h.enabled.Store(true)
	h.Console.Enable()
	h.Transport.Enable()
	h.Records.Enable()
}

// Disable turns all capture off. Hooked calls still pass through to their
// underlying targets; they just stop emitting.
func (h *Hooks) Disable() {
	h.enabled.Store(false)
	h.Console.Disable()
	h.Transport.Disable()
	h.Records.Disable()
}

// Enabled reports whether capture is on.
func (h *Hooks) Enabled() bool {
	return h.enabled.Load()
}

// ConfigureMasking reloads the console masker from a full settings
// document, so masking rules follow settings changes.
func (h *Hooks) ConfigureMasking(doc map[string]any) {
	if section, ok := doc["masking"].(map[string]any); ok {
		h.Console.Masker().Configure(section)
	}
}
