// ABOUTME: LogEntry entity, level constants, and log filter/stats types
// ABOUTME: Captured log records are immutable once written

package model

// Log levels match the hooked console method names.
const (
	LevelDebug = "debug"
	LevelLog   = "log"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Levels lists all valid log levels.
var Levels = []string{LevelDebug, LevelLog, LevelInfo, LevelWarn, LevelError}

// LogContext carries host-page context captured alongside a log entry.
// All fields are optional.
type LogContext struct {
	Table     string `json:"table,omitempty"`
	RecordID  string `json:"recordId,omitempty"`
	User      string `json:"user,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// LogEntry is a single captured log record. Entries are write-once: they are
// never mutated, only deleted by id, by full clear, or by retention sweep.
type LogEntry struct {
	ID         string     `json:"id"`
	Timestamp  int64      `json:"timestamp"` // epoch milliseconds
	Level      string     `json:"level"`
	Message    string     `json:"message"`
	StackTrace string     `json:"stackTrace,omitempty"`
	URL        string     `json:"url,omitempty"`
	Context    LogContext `json:"context"`
}

// LogFilters is a conjunctive predicate bag for log searches.
// Zero-valued fields impose no constraint.
type LogFilters struct {
	Levels    []string `json:"levels,omitempty"`    // level membership
	Keyword   string   `json:"keyword,omitempty"`   // case-insensitive, message or stack trace
	Table     string   `json:"table,omitempty"`     // exact context table match
	StartTime int64    `json:"startTime,omitempty"` // inclusive
	EndTime   int64    `json:"endTime,omitempty"`   // inclusive
	Limit     int      `json:"limit,omitempty"`
	Offset    int      `json:"offset,omitempty"`
}

// LogStats are aggregate counts over a filtered set of log entries.
type LogStats struct {
	Total           int            `json:"total"`
	ByLevel         map[string]int `json:"byLevel"`
	ByTable         map[string]int `json:"byTable"`
	OldestTimestamp int64          `json:"oldestTimestamp"`
	NewestTimestamp int64          `json:"newestTimestamp"`
}
