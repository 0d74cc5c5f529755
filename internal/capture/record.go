// ABOUTME: Record-operation hook: instruments table CRUD calls as measurements
// ABOUTME: Deletes additionally leave a warn-level audit entry

package capture

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/glidescope/glidescope/internal/model"
)

// RecordOps is the table CRUD surface the recorder instruments.
type RecordOps interface {
	Query(ctx context.Context, table, encodedQuery string) ([]map[string]any, error)
	Insert(ctx context.Context, table string, fields map[string]any) (string, error)
	Update(ctx context.Context, table, recordID string, fields map[string]any) error
	Delete(ctx context.Context, table, recordID string) error
}

// RecordClient is a plain RecordOps implementation over function hooks.
// The agent substitutes its transport-backed implementation; tests plug in
// fakes.
type RecordClient struct {
	QueryFn  func(ctx context.Context, table, encodedQuery string) ([]map[string]any, error)
	InsertFn func(ctx context.Context, table string, fields map[string]any) (string, error)
	UpdateFn func(ctx context.Context, table, recordID string, fields map[string]any) error
	DeleteFn func(ctx context.Context, table, recordID string) error
}

func (c *RecordClient) Query(ctx context.Context, table, encodedQuery string) ([]map[string]any, error) {
	if c == nil || c.QueryFn == nil {
		return nil, nil
	}
	return c.QueryFn(ctx, table, encodedQuery)
}

func (c *RecordClient) Insert(ctx context.Context, table string, fields map[string]any) (string, error) {
	if c == nil || c.InsertFn == nil {
		return "", nil
	}
	return c.InsertFn(ctx, table, fields)
}

func (c *RecordClient) Update(ctx context.Context, table, recordID string, fields map[string]any) error {
	if c == nil || c.UpdateFn == nil {
		return nil
	}
	return c.UpdateFn(ctx, table, recordID, fields)
}

func (c *RecordClient) Delete(ctx context.Context, table, recordID string) error {
	if c == nil || c.DeleteFn == nil {
		return nil
	}
	return c.DeleteFn(ctx, table, recordID)
}

// RecordRecorder decorates RecordOps, timing each operation and emitting a
// typed measurement. Results and errors pass through unchanged.
type RecordRecorder struct {
	base    RecordOps
	emitter Emitter
	enabled atomic.Bool
}

// NewRecordRecorder wraps base with instrumentation.
func NewRecordRecorder(base *RecordClient, emitter Emitter) *RecordRecorder {
	r := &RecordRecorder{base: base, emitter: emitter}
	r.enabled.Store(true)
	return r
}

// Enable turns capture on.
func (r *RecordRecorder) Enable() { r.enabled.Store(true) }

// Disable turns capture off; operations still execute.
func (r *RecordRecorder) Disable() { r.enabled.Store(false) }

// Restore returns the wrapped client so callers can uninstall the hook.
func (r *RecordRecorder) Restore() RecordOps { return r.base }

// Query runs and measures a table query. The record count rides along in
// the measurement context.
func (r *RecordRecorder) Query(ctx context.Context, table, encodedQuery string) ([]map[string]any, error) {
	start := time.Now()
	records, err := r.base.Query(ctx, table, encodedQuery)
	r.emit(model.TypeRecordQuery, start, model.MeasurementContext{
		Table:       table,
		Query:       encodedQuery,
		RecordCount: len(records),
	}, err)
	return records, err
}

// Insert runs and measures a record insert.
func (r *RecordRecorder) Insert(ctx context.Context, table string, fields map[string]any) (string, error) {
	start := time.Now()
	recordID, err := r.base.Insert(ctx, table, fields)
	r.emit(model.TypeRecordInsert, start, model.MeasurementContext{
		Table:    table,
		RecordID: recordID,
	}, err)
	return recordID, err
}

// Update runs and measures a record update.
func (r *RecordRecorder) Update(ctx context.Context, table, recordID string, fields map[string]any) error {
	start := time.Now()
	err := r.base.Update(ctx, table, recordID, fields)
	r.emit(model.TypeRecordUpdate, start, model.MeasurementContext{
		Table:    table,
		RecordID: recordID,
	}, err)
	return err
}

// Delete runs and measures a record delete, and leaves a warn-level audit
// entry naming the table and record.
func (r *RecordRecorder) Delete(ctx context.Context, table, recordID string) error {
	start := time.Now()
	err := r.base.Delete(ctx, table, recordID)
	r.emit(model.TypeRecordDelete, start, model.MeasurementContext{
		Table:    table,
		RecordID: recordID,
	}, err)

	if r.enabled.Load() && err == nil {
		r.emitter.EmitLog(&model.LogEntry{
			Timestamp: time.Now().UnixMilli(),
			Level:     model.LevelWarn,
			Message:   fmt.Sprintf("Record deleted: %s [%s]", table, recordID),
			Context:   model.LogContext{Table: table, RecordID: recordID},
		})
	}
	return err
}

func (r *RecordRecorder) emit(opType string, start time.Time, mctx model.MeasurementContext, err error) {
	if !r.enabled.Load() {
		return
	}
	m := &model.Measurement{
		Timestamp:  time.Now().UnixMilli(),
		Type:       opType,
		Duration:   float64(time.Since(start).Microseconds()) / 1000.0,
		Context:    mctx,
		StackTrace: string(debug.Stack()),
	}
	if err != nil {
		m.Error = err.Error()
	}
	r.emitter.EmitMeasurement(m)
}
