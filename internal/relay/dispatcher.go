// ABOUTME: Action dispatcher: routes typed requests to storage, settings,
// ABOUTME: export, and capture control, answering with response envelopes

package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/glidescope/glidescope/internal/capture"
	"github.com/glidescope/glidescope/internal/export"
	"github.com/glidescope/glidescope/internal/kvstore"
	"github.com/glidescope/glidescope/internal/model"
	"github.com/glidescope/glidescope/internal/notify"
	"github.com/glidescope/glidescope/internal/settings"
	"github.com/glidescope/glidescope/internal/store"
)

// Actions the dispatcher understands.
const (
	ActionLogCaptured = "LOG_CAPTURED"
	ActionGetLogs     = "GET_LOGS"
	ActionSearchLogs  = "SEARCH_LOGS"
	ActionClearLogs   = "CLEAR_LOGS"
	ActionExportLogs  = "EXPORT_LOGS"

	ActionPerformanceCaptured  = "PERFORMANCE_CAPTURED"
	ActionGetPerformanceData   = "GET_PERFORMANCE_DATA"
	ActionGetPerformanceStats  = "GET_PERFORMANCE_STATS"
	ActionClearPerformanceData = "CLEAR_PERFORMANCE_DATA"
	ActionExportPerformance    = "EXPORT_PERFORMANCE"

	ActionGetSnippets    = "GET_SNIPPETS"
	ActionSaveSnippet    = "SAVE_SNIPPET"
	ActionUpdateSnippet  = "UPDATE_SNIPPET"
	ActionDeleteSnippet  = "DELETE_SNIPPET"
	ActionImportSnippets = "IMPORT_SNIPPETS"
	ActionExportSnippets = "EXPORT_SNIPPETS"

	ActionGetSettings    = "GET_SETTINGS"
	ActionUpdateSettings = "UPDATE_SETTINGS"
	ActionGetSetting     = "GET_SETTING"
	ActionUpdateSetting  = "UPDATE_SETTING"
	ActionImportSettings = "IMPORT_SETTINGS"
	ActionExportSettings = "EXPORT_SETTINGS"
	ActionResetSettings  = "RESET_SETTINGS"

	ActionEnableDebugger  = "ENABLE_DEBUGGER"
	ActionDisableDebugger = "DISABLE_DEBUGGER"
	ActionGetStatus       = "GET_STATUS"
	ActionGetInstanceInfo = "GET_INSTANCE_INFO"
)

// Request is one dispatched message. Only the fields relevant to the
// action are populated; the rest stay zero.
type Request struct {
	Action string `json:"action"`

	LogEntry    *model.LogEntry    `json:"logEntry,omitempty"`
	Measurement *model.Measurement `json:"measurement,omitempty"`
	Filters     json.RawMessage    `json:"filters,omitempty"`
	Limit       int                `json:"limit,omitempty"`
	Offset      int                `json:"offset,omitempty"`
	Format      string             `json:"format,omitempty"`
	BucketSize  int64              `json:"bucketSize,omitempty"`

	Snippet         *model.Snippet `json:"snippet,omitempty"`
	ID              int64          `json:"id,omitempty"`
	IDs             []int64        `json:"ids,omitempty"`
	JSONData        string         `json:"jsonData,omitempty"`
	ReplaceExisting bool           `json:"replaceExisting,omitempty"`

	Settings map[string]any  `json:"settings,omitempty"`
	Path     string          `json:"path,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`

	Hostname     string                `json:"hostname,omitempty"`
	InstanceInfo *kvstore.InstanceInfo `json:"instanceInfo,omitempty"`
}

// Dispatcher routes requests to the storage and settings layers. Every
// outcome is an envelope; handler errors never escape as Go errors.
type Dispatcher struct {
	db          *store.Store
	settings    *settings.Manager
	state       *kvstore.Store
	broadcaster *notify.Broadcaster
	hooks       *capture.Hooks
	logger      *slog.Logger
}

// NewDispatcher wires the dispatcher. Broadcaster and hooks may be nil; the
// corresponding notifications and capture toggles become no-ops.
func NewDispatcher(db *store.Store, mgr *settings.Manager, state *kvstore.Store, b *notify.Broadcaster, hooks *capture.Hooks) *Dispatcher {
	return &Dispatcher{
		db:          db,
		settings:    mgr,
		state:       state,
		broadcaster: b,
		hooks:       hooks,
		logger:      slog.Default().With("component", "dispatcher"),
	}
}

// Dispatch handles one request and always returns an envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	d.logger.Debug("dispatching", "action", req.Action)

	data, err := d.handle(ctx, req)
	if err != nil {
		d.logger.Warn("action failed", "action", req.Action, "error", err)
		return Failure(classify(err), err.Error())
	}
	return Success(data)
}

// DispatchRaw decodes a JSON request and dispatches it.
func (d *Dispatcher) DispatchRaw(ctx context.Context, raw []byte) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Failure(CodeValidationError, fmt.Sprintf("malformed request: %v", err))
	}
	return d.Dispatch(ctx, &req)
}

var errUnknownAction = errors.New("unknown action")

func classify(err error) string {
	switch {
	case errors.Is(err, store.ErrValidation):
		return CodeValidationError
	case errors.Is(err, store.ErrNotFound), errors.Is(err, kvstore.ErrNotFound):
		return CodeStorageError
	case errors.Is(err, errUnknownAction):
		return CodeUnknownAction
	default:
		return CodeUnknownError
	}
}

func (d *Dispatcher) handle(ctx context.Context, req *Request) (any, error) {
	switch req.Action {
	case ActionLogCaptured:
		return d.logCaptured(ctx, req)
	case ActionGetLogs:
		return d.getLogs(ctx, req)
	case ActionSearchLogs:
		return d.searchLogs(ctx, req)
	case ActionClearLogs:
		if err := d.db.ClearLogs(ctx); err != nil {
			return nil, err
		}
		d.publish(notify.TopicLogs, ActionClearLogs, nil)
		return map[string]any{"success": true}, nil
	case ActionExportLogs:
		return d.exportLogs(ctx, req)

	case ActionPerformanceCaptured:
		return d.performanceCaptured(ctx, req)
	case ActionGetPerformanceData:
		return d.getPerformanceData(ctx, req)
	case ActionGetPerformanceStats:
		return d.getPerformanceStats(ctx, req)
	case ActionClearPerformanceData:
		if err := d.db.ClearMeasurements(ctx); err != nil {
			return nil, err
		}
		d.publish(notify.TopicPerformance, ActionClearPerformanceData, nil)
		return map[string]any{"success": true}, nil
	case ActionExportPerformance:
		return d.exportPerformance(ctx, req)

	case ActionGetSnippets:
		return d.getSnippets(ctx, req)
	case ActionSaveSnippet, ActionUpdateSnippet:
		return d.saveSnippet(ctx, req)
	case ActionDeleteSnippet:
		return map[string]any{"success": d.db.DeleteSnippet(ctx, req.ID)}, nil
	case ActionImportSnippets:
		count, err := d.db.ImportSnippets(ctx, req.JSONData, req.ReplaceExisting)
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": count}, nil
	case ActionExportSnippets:
		data, err := d.db.ExportSnippets(ctx, req.IDs)
		if err != nil {
			return nil, err
		}
		return map[string]any{"data": data}, nil

	case ActionGetSettings:
		return map[string]any{"settings": d.settings.Get(ctx)}, nil
	case ActionUpdateSettings:
		return d.updateSettings(ctx, req)
	case ActionGetSetting:
		value, _ := d.settings.GetSetting(ctx, req.Path)
		return map[string]any{"path": req.Path, "value": value}, nil
	case ActionUpdateSetting:
		return d.updateSetting(ctx, req)
	case ActionImportSettings:
		if err := d.settings.Import(ctx, req.JSONData); err != nil {
			return nil, err
		}
		d.publish(notify.TopicSettings, ActionImportSettings, nil)
		return map[string]any{"success": true}, nil
	case ActionExportSettings:
		data, err := d.settings.Export(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"data": data}, nil
	case ActionResetSettings:
		doc, err := d.settings.Reset(ctx)
		if err != nil {
			return nil, err
		}
		d.publish(notify.TopicSettings, ActionResetSettings, nil)
		return map[string]any{"settings": doc}, nil

	case ActionEnableDebugger:
		return d.setDebugger(ctx, true)
	case ActionDisableDebugger:
		return d.setDebugger(ctx, false)
	case ActionGetStatus:
		return d.getStatus(ctx)
	case ActionGetInstanceInfo:
		return d.getInstanceInfo(req)

	default:
		return nil, fmt.Errorf("%w: %s", errUnknownAction, req.Action)
	}
}

func (d *Dispatcher) publish(topic, action string, payload any) {
	if d.broadcaster != nil {
		d.broadcaster.Publish(topic, action, payload)
	}
}

func (d *Dispatcher) logCaptured(ctx context.Context, req *Request) (any, error) {
	if req.LogEntry == nil {
		return nil, fmt.Errorf("%w: logEntry is required", store.ErrValidation)
	}
	id, err := d.db.SaveLog(ctx, req.LogEntry)
	if err != nil {
		return nil, err
	}
	d.publish(notify.TopicLogs, ActionLogCaptured, map[string]any{"id": id, "logEntry": req.LogEntry})
	return map[string]any{"id": id}, nil
}

func (d *Dispatcher) getLogs(ctx context.Context, req *Request) (any, error) {
	filters, err := decodeFilters[model.LogFilters](req.Filters)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 {
		filters.Limit = req.Limit
	}
	if req.Offset > 0 {
		filters.Offset = req.Offset
	}

	logs, err := d.db.SearchLogs(ctx, filters)
	if err != nil {
		return nil, err
	}
	stats := d.db.LogStats(ctx, model.LogFilters{})
	return map[string]any{"logs": logs, "stats": stats}, nil
}

func (d *Dispatcher) searchLogs(ctx context.Context, req *Request) (any, error) {
	filters, err := decodeFilters[model.LogFilters](req.Filters)
	if err != nil {
		return nil, err
	}
	logs, err := d.db.SearchLogs(ctx, filters)
	if err != nil {
		return nil, err
	}
	return map[string]any{"logs": logs}, nil
}

func (d *Dispatcher) exportLogs(ctx context.Context, req *Request) (any, error) {
	filters, err := decodeFilters[model.LogFilters](req.Filters)
	if err != nil {
		return nil, err
	}
	logs, err := d.db.SearchLogs(ctx, filters)
	if err != nil {
		return nil, err
	}
	data, err := export.Logs(logs, req.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	return d.finishExport(ctx, data)
}

// finishExport honors the export.compressData setting: when set, the
// payload goes out zstd-compressed and base64-encoded, flagged so the
// consumer knows to decode it.
func (d *Dispatcher) finishExport(ctx context.Context, data string) (any, error) {
	if flag, ok := d.settings.GetSetting(ctx, "export.compressData"); ok {
		if compress, _ := flag.(bool); compress {
			packed, err := export.Compress([]byte(data))
			if err != nil {
				return nil, fmt.Errorf("compressing export: %w", err)
			}
			return map[string]any{
				"data":       base64.StdEncoding.EncodeToString(packed),
				"compressed": true,
			}, nil
		}
	}
	return map[string]any{"data": data}, nil
}

func (d *Dispatcher) performanceCaptured(ctx context.Context, req *Request) (any, error) {
	if req.Measurement == nil {
		return nil, fmt.Errorf("%w: measurement is required", store.ErrValidation)
	}
	id, err := d.db.SaveMeasurement(ctx, req.Measurement)
	if err != nil {
		return nil, err
	}
	if id != "" {
		d.publish(notify.TopicPerformance, ActionPerformanceCaptured,
			map[string]any{"id": id, "measurement": req.Measurement})
	}
	return map[string]any{"id": id}, nil
}

func (d *Dispatcher) getPerformanceData(ctx context.Context, req *Request) (any, error) {
	filters, err := decodeFilters[model.MeasurementFilters](req.Filters)
	if err != nil {
		return nil, err
	}
	measurements, err := d.db.SearchMeasurements(ctx, filters)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"measurements": measurements,
		"stats":        d.db.PerfStats(ctx, filters),
		"slowQueries":  d.db.TopSlowQueries(ctx, 10),
	}, nil
}

func (d *Dispatcher) getPerformanceStats(ctx context.Context, req *Request) (any, error) {
	filters, err := decodeFilters[model.MeasurementFilters](req.Filters)
	if err != nil {
		return nil, err
	}
	bucket := req.BucketSize
	if bucket <= 0 {
		bucket = model.DefaultBucketSize
	}
	return map[string]any{
		"stats":      d.db.PerfStats(ctx, filters),
		"tableStats": d.db.TableStats(ctx),
		"timeSeries": d.db.TimeSeries(ctx, filters, bucket),
	}, nil
}

func (d *Dispatcher) exportPerformance(ctx context.Context, req *Request) (any, error) {
	filters, err := decodeFilters[model.MeasurementFilters](req.Filters)
	if err != nil {
		return nil, err
	}
	measurements, err := d.db.SearchMeasurements(ctx, filters)
	if err != nil {
		return nil, err
	}
	data, err := export.Measurements(measurements, req.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	return d.finishExport(ctx, data)
}

func (d *Dispatcher) getSnippets(ctx context.Context, req *Request) (any, error) {
	filters, err := decodeFilters[model.SnippetFilters](req.Filters)
	if err != nil {
		return nil, err
	}
	snippets, err := d.db.SearchSnippets(ctx, filters)
	if err != nil {
		return nil, err
	}
	return map[string]any{"snippets": snippets, "tags": d.db.AllTags(ctx)}, nil
}

func (d *Dispatcher) saveSnippet(ctx context.Context, req *Request) (any, error) {
	if req.Snippet == nil {
		return nil, fmt.Errorf("%w: snippet is required", store.ErrValidation)
	}
	id, err := d.db.SaveSnippet(ctx, req.Snippet)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id}, nil
}

func (d *Dispatcher) updateSettings(ctx context.Context, req *Request) (any, error) {
	switch {
	case req.Path != "" && len(req.Value) > 0:
		var value any
		if err := json.Unmarshal(req.Value, &value); err != nil {
			return nil, fmt.Errorf("%w: decoding setting value: %v", store.ErrValidation, err)
		}
		if err := d.settings.SetSetting(ctx, req.Path, value); err != nil {
			return nil, err
		}
	case req.Settings != nil:
		if _, err := d.settings.Update(ctx, req.Settings); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: settings or path and value are required", store.ErrValidation)
	}

	d.publish(notify.TopicSettings, ActionUpdateSettings, nil)
	return map[string]any{"success": true}, nil
}

func (d *Dispatcher) updateSetting(ctx context.Context, req *Request) (any, error) {
	if req.Path == "" {
		return nil, fmt.Errorf("%w: path is required", store.ErrValidation)
	}
	var value any
	if err := json.Unmarshal(req.Value, &value); err != nil {
		return nil, fmt.Errorf("%w: decoding setting value: %v", store.ErrValidation, err)
	}
	if err := d.settings.SetSetting(ctx, req.Path, value); err != nil {
		return nil, err
	}
	d.publish(notify.TopicSettings, ActionUpdateSetting, map[string]any{"path": req.Path})
	return map[string]any{"success": true}, nil
}

func (d *Dispatcher) setDebugger(ctx context.Context, enabled bool) (any, error) {
	if err := d.settings.SetSetting(ctx, "logs.enabled", enabled); err != nil {
		return nil, err
	}
	if err := d.settings.SetSetting(ctx, "performance.enabled", enabled); err != nil {
		return nil, err
	}
	if d.hooks != nil {
		if enabled {
			d.hooks.Enable()
		} else {
			d.hooks.Disable()
		}
	}
	if d.state != nil {
		if err := d.state.Set(kvstore.KeySettingsEnabled, enabled); err != nil {
			d.logger.Warn("recording enabled state failed", "error", err)
		}
	}
	action := ActionDisableDebugger
	if enabled {
		action = ActionEnableDebugger
	}
	d.publish(notify.TopicStatus, action, map[string]any{"enabled": enabled})
	return map[string]any{"enabled": enabled}, nil
}

func (d *Dispatcher) getStatus(ctx context.Context) (any, error) {
	logsEnabled := settingBool(d.settings, ctx, "logs.enabled")
	perfEnabled := settingBool(d.settings, ctx, "performance.enabled")

	logCount := d.db.CountLogs(ctx)
	snippets, err := d.db.SearchSnippets(ctx, model.SnippetFilters{})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"enabled":            logsEnabled && perfEnabled,
		"logsEnabled":        logsEnabled,
		"performanceEnabled": perfEnabled,
		"logCount":           logCount,
		"snippetCount":       len(snippets),
	}, nil
}

func (d *Dispatcher) getInstanceInfo(req *Request) (any, error) {
	if d.state == nil {
		return nil, fmt.Errorf("%w: instance cache unavailable", kvstore.ErrNotFound)
	}
	if req.InstanceInfo != nil {
		if err := d.state.PutInstanceInfo(req.InstanceInfo); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
		return map[string]any{"instanceInfo": req.InstanceInfo}, nil
	}
	info, err := d.state.GetInstanceInfo(req.Hostname)
	if err != nil {
		return nil, err
	}
	return map[string]any{"instanceInfo": info}, nil
}

func settingBool(mgr *settings.Manager, ctx context.Context, path string) bool {
	v, ok := mgr.GetSetting(ctx, path)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// decodeFilters parses a raw filter bag, tolerating its absence.
func decodeFilters[T any](raw json.RawMessage) (T, error) {
	var filters T
	if len(raw) == 0 {
		return filters, nil
	}
	if err := json.Unmarshal(raw, &filters); err != nil {
		return filters, fmt.Errorf("%w: decoding filters: %v", store.ErrValidation, err)
	}
	return filters, nil
}
