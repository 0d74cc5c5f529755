// ABOUTME: Result ordering for search results
// ABOUTME: Logs/measurements are always newest-first; snippets sort by caller choice

package query

import (
	"sort"
	"strings"

	"github.com/glidescope/glidescope/internal/model"
)

// SortLogsNewestFirst orders entries by timestamp descending, in place.
// This ordering overrides any index iteration order from retrieval.
func SortLogsNewestFirst(entries []model.LogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})
}

// SortMeasurementsNewestFirst orders measurements by timestamp descending.
func SortMeasurementsNewestFirst(ms []model.Measurement) {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].Timestamp > ms[j].Timestamp
	})
}

// SortMeasurementsByDuration orders measurements slowest-first.
func SortMeasurementsByDuration(ms []model.Measurement) {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].Duration > ms[j].Duration
	})
}

// SortSnippets orders snippets by the requested field and direction.
// Defaults are updated/descending. Title comparison is case-insensitive.
func SortSnippets(snippets []model.Snippet, sortBy, sortOrder string) {
	if sortBy == "" {
		sortBy = model.SnippetSortUpdated
	}
	if sortOrder == "" {
		sortOrder = model.SortDesc
	}

	less := func(a, b model.Snippet) bool {
		switch sortBy {
		case model.SnippetSortTitle:
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		case model.SnippetSortCreated:
			return a.Created < b.Created
		default:
			return a.Updated < b.Updated
		}
	}

	sort.SliceStable(snippets, func(i, j int) bool {
		if sortOrder == model.SortAsc {
			return less(snippets[i], snippets[j])
		}
		return less(snippets[j], snippets[i])
	})
}
