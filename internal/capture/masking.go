// ABOUTME: Masks sensitive values in captured messages before they are emitted
// ABOUTME: Key patterns and mask shape are driven by the masking settings section

package capture

import (
	"regexp"
	"strings"
	"sync"
)

// Patterns the defaults ship with; the settings document can replace them.
var defaultSensitivePatterns = []string{
	"password", "passwd", "pwd", "secret", "token",
	"api[_-]?key", "auth", "ssn", "social[_-]?security",
	"credit[_-]?card", "cvv",
}

// Value patterns always apply when masking is on: these match sensitive
// data by shape rather than by field name.
var valuePatterns = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "***-**-****"},
	{regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`), "****-****-****-****"},
	{regexp.MustCompile(`[a-zA-Z0-9._%+-]+@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`), "***@$1"},
}

// pairPattern finds key/value pairs in both JSON-shaped and key=value
// message text; the key decides whether the value gets masked.
var pairPattern = regexp.MustCompile(`"?([A-Za-z0-9_-]+)"?\s*[:=]\s*("([^"]*)"|[^\s,}\]]+)`)

// Masker rewrites sensitive values in captured text. Safe for concurrent
// use; Configure swaps the rule set while captures are in flight.
type Masker struct {
	mu          sync.RWMutex
	enabled     bool
	keyPatterns []*regexp.Regexp
	mask        string
}

// NewMasker builds a masker with the default rule set, enabled.
func NewMasker() *Masker {
	m := &Masker{}
	m.apply(true, defaultSensitivePatterns, "*", 8)
	return m
}

// Configure reloads the rules from a masking settings section. Unknown or
// malformed fields keep their current values; invalid patterns are skipped.
func (m *Masker) Configure(section map[string]any) {
	if section == nil {
		return
	}

	m.mu.RLock()
	enabled := m.enabled
	m.mu.RUnlock()

	if v, ok := section["enabled"].(bool); ok {
		enabled = v
	}

	patterns := defaultSensitivePatterns
	if raw, ok := section["sensitivePatterns"].([]any); ok {
		patterns = make([]string, 0, len(raw))
		for _, p := range raw {
			if s, ok := p.(string); ok && s != "" {
				patterns = append(patterns, s)
			}
		}
	}

	maskChar := "*"
	if v, ok := section["maskChar"].(string); ok && v != "" {
		maskChar = v
	}
	maskLength := 8
	switch v := section["maskLength"].(type) {
	case float64:
		if v > 0 {
			maskLength = int(v)
		}
	case int:
		if v > 0 {
			maskLength = v
		}
	}

	m.apply(enabled, patterns, maskChar, maskLength)
}

func (m *Masker) apply(enabled bool, patterns []string, maskChar string, maskLength int) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			continue
		}
		compiled = append(compiled, re)
	}

	m.mu.Lock()
	m.enabled = enabled
	m.keyPatterns = compiled
	m.mask = strings.Repeat(maskChar, maskLength)
	m.mu.Unlock()
}

// Mask rewrites sensitive key/value pairs and recognizable sensitive value
// shapes in message. Returns message unchanged when masking is off.
func (m *Masker) Mask(message string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.enabled || message == "" {
		return message
	}

	masked := pairPattern.ReplaceAllStringFunc(message, func(match string) string {
		sub := pairPattern.FindStringSubmatch(match)
		if sub == nil || !m.sensitiveKey(sub[1]) {
			return match
		}
		prefix := match[:len(match)-len(sub[2])]
		if strings.HasPrefix(sub[2], `"`) {
			return prefix + `"` + m.mask + `"`
		}
		return prefix + m.mask
	})

	for _, vp := range valuePatterns {
		masked = vp.pattern.ReplaceAllString(masked, vp.replacement)
	}
	return masked
}

func (m *Masker) sensitiveKey(key string) bool {
	for _, re := range m.keyPatterns {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}
