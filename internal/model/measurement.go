// ABOUTME: Measurement entity, type constants, and performance filter/stats types
// ABOUTME: Includes the type-dependent slow classification used by aggregates

package model

// Measurement types. Record operations come from the record-client hook,
// fetch/xhr from the network hooks, the rest from browser observers.
const (
	TypeRecordQuery      = "record_query"
	TypeRecordInsert     = "record_insert"
	TypeRecordUpdate     = "record_update"
	TypeRecordDelete     = "record_delete"
	TypeFetch            = "fetch"
	TypeXHR              = "xhr"
	TypeLongTask         = "long_task"
	TypeLayoutShift      = "layout_shift"
	TypeLCP              = "largest_contentful_paint"
	TypeFID              = "first_input_delay"
	TypePageLoad         = "page_load"
	TypeNavigationTiming = "navigation_timing"
	TypeSlowResource     = "slow_resource"
	TypeMemoryUsage      = "memory_usage"
)

// MeasurementContext carries record-operation context for a measurement.
type MeasurementContext struct {
	Table       string `json:"table,omitempty"`
	Query       string `json:"query,omitempty"`
	RecordID    string `json:"recordId,omitempty"`
	RecordCount int    `json:"recordCount,omitempty"`
}

// Measurement is a single captured timing sample. Immutable once written.
type Measurement struct {
	ID         string             `json:"id"`
	Timestamp  int64              `json:"timestamp"` // epoch milliseconds
	Type       string             `json:"type"`
	Duration   float64            `json:"duration"` // milliseconds
	URL        string             `json:"url,omitempty"`
	Method     string             `json:"method,omitempty"`
	Status     int                `json:"status,omitempty"`
	Error      string             `json:"error,omitempty"`
	Context    MeasurementContext `json:"context"`
	StackTrace string             `json:"stackTrace,omitempty"`
}

// IsSlow reports whether the measurement exceeds the type-dependent slow
// threshold. Record queries compare against slowQuery, network calls against
// slowAPI; every other type is never classified slow.
func (m *Measurement) IsSlow(slowQuery, slowAPI float64) bool {
	switch m.Type {
	case TypeRecordQuery:
		return m.Duration >= slowQuery
	case TypeFetch, TypeXHR:
		return m.Duration >= slowAPI
	default:
		return false
	}
}

// MeasurementFilters is a conjunctive predicate bag for measurement searches.
type MeasurementFilters struct {
	Type        string  `json:"type,omitempty"` // exact match, index-accelerated
	StartTime   int64   `json:"startTime,omitempty"`
	EndTime     int64   `json:"endTime,omitempty"`
	MinDuration float64 `json:"minDuration,omitempty"`
	SlowOnly    bool    `json:"slowOnly,omitempty"` // type-dependent thresholds
	Table       string  `json:"table,omitempty"`
	URL         string  `json:"url,omitempty"` // substring match
	Limit       int     `json:"limit,omitempty"`
	Offset      int     `json:"offset,omitempty"`
}

// PerfStats are aggregate statistics over a filtered set of measurements.
type PerfStats struct {
	Total         int            `json:"total"`
	ByType        map[string]int `json:"byType"`
	SlowQueries   int            `json:"slowQueries"`
	SlowAPICalls  int            `json:"slowAPICalls"`
	AvgDuration   float64        `json:"avgDuration"`
	MaxDuration   float64        `json:"maxDuration"`
	MinDuration   float64        `json:"minDuration"` // 0 for an empty set
	TotalDuration float64        `json:"totalDuration"`
}

// TableStats aggregates record-query measurements for a single table.
type TableStats struct {
	Count         int     `json:"count"`
	TotalDuration float64 `json:"totalDuration"`
	AvgDuration   float64 `json:"avgDuration"`
	MaxDuration   float64 `json:"maxDuration"`
	SlowCount     int     `json:"slowCount"`
}

// TimeBucket is one fixed-width bucket of a time-series aggregation.
type TimeBucket struct {
	Timestamp     int64   `json:"timestamp"` // bucket start, epoch ms
	Count         int     `json:"count"`
	AvgDuration   float64 `json:"avgDuration"`
	MaxDuration   float64 `json:"maxDuration"`
	TotalDuration float64 `json:"totalDuration"`
}
