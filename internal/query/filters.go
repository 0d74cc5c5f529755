// ABOUTME: Conjunctive predicate filtering for logs, measurements, and snippets
// ABOUTME: Keyword matches are case-insensitive substring checks

package query

import (
	"slices"
	"strings"

	"github.com/glidescope/glidescope/internal/model"
)

// Thresholds carries the type-dependent slow cutoffs used by the slowOnly
// filter and the aggregate slow counts.
type Thresholds struct {
	SlowQuery float64 // record_query measurements, milliseconds
	SlowAPI   float64 // fetch/xhr measurements, milliseconds
}

// DefaultThresholds returns the built-in slow cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SlowQuery: model.DefaultSlowQueryThreshold,
		SlowAPI:   model.DefaultSlowAPIThreshold,
	}
}

// FilterLogs returns the entries matching every provided predicate in f.
// Limit and Offset are ignored here; see Paginate.
func FilterLogs(entries []model.LogEntry, f model.LogFilters) []model.LogEntry {
	filtered := entries

	if len(f.Levels) > 0 {
		filtered = keep(filtered, func(e model.LogEntry) bool {
			return slices.Contains(f.Levels, e.Level)
		})
	}

	if f.Keyword != "" {
		kw := strings.ToLower(f.Keyword)
		filtered = keep(filtered, func(e model.LogEntry) bool {
			return strings.Contains(strings.ToLower(e.Message), kw) ||
				(e.StackTrace != "" && strings.Contains(strings.ToLower(e.StackTrace), kw))
		})
	}

	if f.Table != "" {
		filtered = keep(filtered, func(e model.LogEntry) bool {
			return e.Context.Table == f.Table
		})
	}

	if f.StartTime != 0 {
		filtered = keep(filtered, func(e model.LogEntry) bool {
			return e.Timestamp >= f.StartTime
		})
	}
	if f.EndTime != 0 {
		filtered = keep(filtered, func(e model.LogEntry) bool {
			return e.Timestamp <= f.EndTime
		})
	}

	return filtered
}

// FilterMeasurements returns the measurements matching every provided
// predicate in f. The slowOnly predicate uses the type-dependent thresholds:
// measurement types outside record_query/fetch/xhr never match it.
func FilterMeasurements(ms []model.Measurement, f model.MeasurementFilters, th Thresholds) []model.Measurement {
	filtered := ms

	if f.Type != "" {
		filtered = keep(filtered, func(m model.Measurement) bool {
			return m.Type == f.Type
		})
	}

	if f.StartTime != 0 {
		filtered = keep(filtered, func(m model.Measurement) bool {
			return m.Timestamp >= f.StartTime
		})
	}
	if f.EndTime != 0 {
		filtered = keep(filtered, func(m model.Measurement) bool {
			return m.Timestamp <= f.EndTime
		})
	}

	if f.SlowOnly {
		filtered = keep(filtered, func(m model.Measurement) bool {
			return m.IsSlow(th.SlowQuery, th.SlowAPI)
		})
	}

	if f.MinDuration > 0 {
		filtered = keep(filtered, func(m model.Measurement) bool {
			return m.Duration >= f.MinDuration
		})
	}

	if f.Table != "" {
		filtered = keep(filtered, func(m model.Measurement) bool {
			return m.Context.Table == f.Table
		})
	}

	if f.URL != "" {
		filtered = keep(filtered, func(m model.Measurement) bool {
			return strings.Contains(m.URL, f.URL)
		})
	}

	return filtered
}

// FilterSnippets returns the snippets matching every provided predicate in f.
func FilterSnippets(snippets []model.Snippet, f model.SnippetFilters) []model.Snippet {
	filtered := snippets

	if f.Tag != "" {
		filtered = keep(filtered, func(s model.Snippet) bool {
			return slices.Contains(s.Tags, f.Tag)
		})
	}

	if f.Category != "" {
		filtered = keep(filtered, func(s model.Snippet) bool {
			return s.Category == f.Category
		})
	}

	if f.Search != "" {
		kw := strings.ToLower(f.Search)
		filtered = keep(filtered, func(s model.Snippet) bool {
			if strings.Contains(strings.ToLower(s.Title), kw) ||
				strings.Contains(strings.ToLower(s.Description), kw) ||
				strings.Contains(strings.ToLower(s.Code), kw) {
				return true
			}
			for _, tag := range s.Tags {
				if strings.Contains(strings.ToLower(tag), kw) {
					return true
				}
			}
			return false
		})
	}

	if f.FavoriteOnly {
		filtered = keep(filtered, func(s model.Snippet) bool {
			return s.IsFavorite
		})
	}

	return filtered
}

// Paginate slices an already-filtered, already-sorted result set.
// A limit of 0 returns the whole set.
func Paginate[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		return items
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func keep[T any](items []T, pred func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}
