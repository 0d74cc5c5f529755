// ABOUTME: Shared retention, cap, threshold, and sampling defaults
// ABOUTME: Mirrored by the settings document; stores fall back to these

package model

import "time"

// Retention and cap defaults for the append-heavy collections.
const (
	DefaultLogRetention  = 7 * 24 * time.Hour
	DefaultPerfRetention = 7 * 24 * time.Hour

	DefaultMaxLogs         = 10000
	DefaultMaxMeasurements = 10000
)

// Slow-operation thresholds in milliseconds. Record queries and network
// calls carry different cutoffs; other measurement types have none.
const (
	DefaultSlowQueryThreshold = 500.0
	DefaultSlowAPIThreshold   = 1000.0
)

// DefaultSamplingRate persists every measurement.
const DefaultSamplingRate = 1.0

// DefaultBucketSize is the time-series bucket width in milliseconds.
const DefaultBucketSize int64 = 60000
