// ABOUTME: Aggregate statistics over filtered log and measurement sets
// ABOUTME: Slow counts follow the type-dependent threshold rule

package query

import "github.com/glidescope/glidescope/internal/model"

// LogStats computes aggregate counts over a set of log entries.
func LogStats(entries []model.LogEntry) model.LogStats {
	stats := model.LogStats{
		Total:   len(entries),
		ByLevel: make(map[string]int),
		ByTable: make(map[string]int),
	}

	for _, e := range entries {
		stats.ByLevel[e.Level]++
		if e.Context.Table != "" {
			stats.ByTable[e.Context.Table]++
		}
		if stats.OldestTimestamp == 0 || e.Timestamp < stats.OldestTimestamp {
			stats.OldestTimestamp = e.Timestamp
		}
		if e.Timestamp > stats.NewestTimestamp {
			stats.NewestTimestamp = e.Timestamp
		}
	}

	return stats
}

// PerfStats computes aggregate statistics over a set of measurements.
// SlowQueries counts record_query entries at or above the slow-query
// threshold; SlowAPICalls counts fetch/xhr entries at or above the slow-API
// threshold. Other types never contribute to either count. MinDuration is 0
// for an empty set.
func PerfStats(ms []model.Measurement, th Thresholds) model.PerfStats {
	stats := model.PerfStats{
		Total:  len(ms),
		ByType: make(map[string]int),
	}

	first := true
	for _, m := range ms {
		stats.ByType[m.Type]++

		switch m.Type {
		case model.TypeRecordQuery:
			if m.Duration >= th.SlowQuery {
				stats.SlowQueries++
			}
		case model.TypeFetch, model.TypeXHR:
			if m.Duration >= th.SlowAPI {
				stats.SlowAPICalls++
			}
		}

		stats.TotalDuration += m.Duration
		if m.Duration > stats.MaxDuration {
			stats.MaxDuration = m.Duration
		}
		if first || m.Duration < stats.MinDuration {
			stats.MinDuration = m.Duration
			first = false
		}
	}

	if stats.Total > 0 {
		stats.AvgDuration = stats.TotalDuration / float64(stats.Total)
	}

	return stats
}

// TableStats groups measurement statistics per table, over record_query
// entries exclusively. Entries without a table are skipped.
func TableStats(ms []model.Measurement, th Thresholds) map[string]model.TableStats {
	out := make(map[string]model.TableStats)

	for _, m := range ms {
		if m.Type != model.TypeRecordQuery || m.Context.Table == "" {
			continue
		}

		ts := out[m.Context.Table]
		ts.Count++
		ts.TotalDuration += m.Duration
		if m.Duration > ts.MaxDuration {
			ts.MaxDuration = m.Duration
		}
		if m.Duration >= th.SlowQuery {
			ts.SlowCount++
		}
		out[m.Context.Table] = ts
	}

	for table, ts := range out {
		ts.AvgDuration = ts.TotalDuration / float64(ts.Count)
		out[table] = ts
	}

	return out
}

// TimeSeries divides the measurements' timestamp span into fixed-width
// buckets and computes per-bucket count and duration statistics. A
// non-positive bucketSize falls back to the default width. Returns nil for
// an empty input set.
func TimeSeries(ms []model.Measurement, bucketSize int64) []model.TimeBucket {
	if len(ms) == 0 {
		return nil
	}
	if bucketSize <= 0 {
		bucketSize = model.DefaultBucketSize
	}

	minTS := ms[0].Timestamp
	maxTS := ms[0].Timestamp
	for _, m := range ms[1:] {
		if m.Timestamp < minTS {
			minTS = m.Timestamp
		}
		if m.Timestamp > maxTS {
			maxTS = m.Timestamp
		}
	}

	n := int((maxTS-minTS)/bucketSize) + 1
	buckets := make([]model.TimeBucket, n)
	for i := range buckets {
		buckets[i].Timestamp = minTS + int64(i)*bucketSize
	}

	for _, m := range ms {
		i := int((m.Timestamp - minTS) / bucketSize)
		buckets[i].Count++
		buckets[i].TotalDuration += m.Duration
		if m.Duration > buckets[i].MaxDuration {
			buckets[i].MaxDuration = m.Duration
		}
	}

	for i := range buckets {
		if buckets[i].Count > 0 {
			buckets[i].AvgDuration = buckets[i].TotalDuration / float64(buckets[i].Count)
		}
	}

	return buckets
}
