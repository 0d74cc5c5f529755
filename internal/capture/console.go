// ABOUTME: Console hook: captures leveled log calls as LogEntry records
// ABOUTME: Calls always pass through to the underlying logger, captured or not

package capture

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/glidescope/glidescope/internal/model"
)

// Console intercepts leveled log calls. Every call is formatted into a
// LogEntry and emitted, then forwarded to the underlying logger so the
// original output still appears.
type Console struct {
	emitter Emitter
	forward *slog.Logger
	masker  *Masker
	enabled atomic.Bool

	// URL and user attached to captured entries, set from page context.
	pageURL string
	user    string
}

// NewConsole builds an enabled console hook forwarding to slog.Default.
func NewConsole(emitter Emitter) *Console {
	c := &Console{
		emitter: emitter,
		forward: slog.Default().With("component", "console-hook"),
		masker:  NewMasker(),
	}
	c.enabled.Store(true)
	return c
}

// Masker exposes the masker so its rules can follow settings changes.
func (c *Console) Masker() *Masker { return c.masker }

// SetPageContext attaches the page URL and user to subsequent captures.
func (c *Console) SetPageContext(url, user string) {
	c.pageURL = url
	c.user = user
}

// Enable turns capture on.
func (c *Console) Enable() { c.enabled.Store(true) }

// Disable turns capture off. Forwarding continues either way.
func (c *Console) Disable() { c.enabled.Store(false) }

// Restore returns the underlying logger so callers can uninstall the hook.
func (c *Console) Restore() *slog.Logger { return c.forward }

// Debug captures and forwards a debug-level call.
func (c *Console) Debug(args ...any) { c.capture(model.LevelDebug, args) }

// Log captures and forwards a log-level call.
func (c *Console) Log(args ...any) { c.capture(model.LevelLog, args) }

// Info captures and forwards an info-level call.
func (c *Console) Info(args ...any) { c.capture(model.LevelInfo, args) }

// Warn captures and forwards a warn-level call.
func (c *Console) Warn(args ...any) { c.capture(model.LevelWarn, args) }

// Error captures and forwards an error-level call. Error captures include
// a stack trace.
func (c *Console) Error(args ...any) { c.capture(model.LevelError, args) }

func (c *Console) capture(level string, args []any) {
	message := formatArgs(args)

	if c.enabled.Load() {
		// Stack is taken synchronously for every level so keyword
		// filters can match over it later.
		c.emitter.EmitLog(&model.LogEntry{
			Timestamp:  time.Now().UnixMilli(),
			Level:      level,
			Message:    c.masker.Mask(message),
			StackTrace: captureStack(),
			URL:        c.pageURL,
			Context:    model.LogContext{User: c.user},
		})
	}

	switch level {
	case model.LevelDebug:
		c.forward.Debug(message)
	case model.LevelWarn:
		c.forward.Warn(message)
	case model.LevelError:
		c.forward.Error(message)
	default:
		c.forward.Info(message)
	}
}

// captureStack returns the current goroutine stack with the hook-internal
// frames trimmed, so entries start at the instrumented call site.
func captureStack() string {
	lines := strings.Split(string(debug.Stack()), "\n")
	// goroutine header plus three internal frames of two lines each
	if len(lines) > 7 {
		return lines[0] + "\n" + strings.Join(lines[7:], "\n")
	}
	return strings.Join(lines, "\n")
}

// formatArgs renders call arguments the way the captured output should
// read: strings verbatim, structured values as JSON, anything that fails
// to encode via plain formatting. Arguments join with single spaces.
func formatArgs(args []any) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			parts = append(parts, v)
		case error:
			parts = append(parts, v.Error())
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			} else {
				parts = append(parts, fmt.Sprintf("%v", v))
			}
		}
	}
	return strings.Join(parts, " ")
}
