// ABOUTME: Canonical default settings tree and the deep-merge used to
// ABOUTME: overlay stored values; new keys appear automatically for old docs

package settings

import "github.com/glidescope/glidescope/internal/model"

// Defaults returns a fresh copy of the full default settings document.
// Stored settings are merged over this tree, so keys added in later
// versions get their defaults without a migration.
func Defaults() map[string]any {
	return map[string]any{
		"logs": map[string]any{
			"enabled":       true,
			"retentionDays": 7,
			"maxLogs":       model.DefaultMaxLogs,
			"defaultLevels": []any{model.LevelLog, model.LevelInfo, model.LevelWarn, model.LevelError},
			"autoCleanup":   true,
		},
		"performance": map[string]any{
			"enabled":            true,
			"samplingRate":       model.DefaultSamplingRate,
			"slowQueryThreshold": model.DefaultSlowQueryThreshold,
			"slowAPIThreshold":   model.DefaultSlowAPIThreshold,
			"retentionDays":      7,
			"maxMeasurements":    model.DefaultMaxMeasurements,
		},
		"ui": map[string]any{
			"theme":          "auto",
			"defaultTab":     "logs",
			"pageSize":       50,
			"showTimestamps": true,
			"compactMode":    false,
		},
		"masking": map[string]any{
			"enabled": true,
			"sensitivePatterns": []any{
				"password", "passwd", "pwd", "secret", "token",
				"api[_-]?key", "auth", "ssn", "social[_-]?security",
				"credit[_-]?card", "cvv",
			},
			"maskChar":   "*",
			"maskLength": 8,
		},
		"snippets": map[string]any{
			"defaultCategory":    model.CategoryRecordQuery,
			"autoSave":           true,
			"syntaxHighlighting": true,
		},
		"notifications": map[string]any{
			"enabled":         true,
			"showSlowQueries": true,
			"showErrors":      true,
			"sound":           false,
		},
		"export": map[string]any{
			"defaultFormat":    "json",
			"includeTimestamp": true,
			"compressData":     false,
		},
		"advanced": map[string]any{
			"debugMode":      false,
			"verboseLogging": false,
			"disableCache":   false,
		},
	}
}

// deepMerge overlays src onto dst recursively and returns dst. Nested maps
// merge key by key; any other stored value replaces the default outright.
func deepMerge(dst, src map[string]any) map[string]any {
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				dst[k] = deepMerge(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}
