// ABOUTME: Tests for sensitive value masking in captured messages
// ABOUTME: Covers key-driven pairs, value shapes, settings reconfiguration

package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMasker_SensitiveKeysMasked(t *testing.T) {
	m := NewMasker()

	masked := m.Mask(`login attempt {"user":"admin","password":"hunter2"}`)
	assert.Equal(t, `login attempt {"user":"admin","password":"********"}`, masked)

	masked = m.Mask("api_key=abc123 retries=3")
	assert.Equal(t, "api_key=******** retries=3", masked)
}

func TestMasker_ValueShapesMasked(t *testing.T) {
	m := NewMasker()

	assert.Equal(t, "ssn ***-**-**** on file", m.Mask("ssn 123-45-6789 on file"))
	assert.Equal(t, "card ****-****-****-****", m.Mask("card 4111-1111-1111-1111"))
	assert.Equal(t, "notify ***@example.com", m.Mask("notify alice@example.com"))
}

func TestMasker_DisabledPassesThrough(t *testing.T) {
	m := NewMasker()
	m.Configure(map[string]any{"enabled": false})

	msg := `password=letmein ssn 123-45-6789`
	assert.Equal(t, msg, m.Mask(msg))
}

func TestMasker_ConfigureReplacesRules(t *testing.T) {
	m := NewMasker()
	m.Configure(map[string]any{
		"enabled":           true,
		"sensitivePatterns": []any{"badge[_-]?id"},
		"maskChar":          "#",
		"maskLength":        float64(4),
	})

	assert.Equal(t, "badge_id=#### password=letmein", m.Mask("badge_id=77421 password=letmein"))
}

func TestConsole_MasksCapturedMessage(t *testing.T) {
	col := &collector{}
	c := NewConsole(col)

	c.Warn(`session token: "eyJhbGciOi"`)

	require.Len(t, col.logs, 1)
	assert.Equal(t, `session token: "********"`, col.logs[0].Message)
}

func TestHooks_ConfigureMaskingFromSettingsDoc(t *testing.T) {
	col := &collector{}
	h := NewHooks(col, nil, &RecordClient{})
	h.ConfigureMasking(map[string]any{
		"masking": map[string]any{"enabled": false},
	})

	h.Console.Info("password=plain")

	require.Len(t, col.logs, 1)
	assert.Equal(t, "password=plain", col.logs[0].Message)
}
