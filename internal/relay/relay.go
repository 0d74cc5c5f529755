// ABOUTME: Page-message relay: filters raw window messages and forwards the
// ABOUTME: debug-prefixed ones to the dispatcher as capture actions

package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/glidescope/glidescope/internal/model"
)

// Page message types the hooks post.
const (
	messagePrefix = "SN_DEBUG_"

	MessageLog         = "SN_DEBUG_LOG"
	MessageConsole     = "SN_DEBUG_CONSOLE"
	MessagePerformance = "SN_DEBUG_PERFORMANCE"
)

// PageMessage is the raw shape posted by the capture hooks.
type PageMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Relay sits between the page and the dispatcher. Only messages from the
// expected origin whose type carries the debug prefix pass; everything else
// is dropped silently.
type Relay struct {
	origin     string
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewRelay builds a relay accepting messages from origin. An empty origin
// accepts any origin.
func NewRelay(origin string, dispatcher *Dispatcher) *Relay {
	return &Relay{
		origin:     origin,
		dispatcher: dispatcher,
		logger:     slog.Default().With("component", "relay"),
	}
}

// Accepts reports whether a message from the given origin with the given
// type would be relayed.
func (r *Relay) Accepts(origin, msgType string) bool {
	if r.origin != "" && origin != r.origin {
		return false
	}
	return strings.HasPrefix(msgType, messagePrefix)
}

// Forward filters one raw page message and, when it passes, dispatches the
// corresponding capture action. The second return is false when the message
// was dropped.
func (r *Relay) Forward(ctx context.Context, origin string, raw []byte) (*Response, bool) {
	var msg PageMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.logger.Debug("dropping malformed page message", "error", err)
		return nil, false
	}

	if !r.Accepts(origin, msg.Type) {
		return nil, false
	}

	switch msg.Type {
	case MessageLog, MessageConsole:
		var entry model.LogEntry
		if err := json.Unmarshal(msg.Data, &entry); err != nil {
			r.logger.Debug("dropping undecodable log message", "error", err)
			return nil, false
		}
		return r.dispatcher.Dispatch(ctx, &Request{
			Action:   ActionLogCaptured,
			LogEntry: &entry,
		}), true

	case MessagePerformance:
		var m model.Measurement
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			r.logger.Debug("dropping undecodable measurement message", "error", err)
			return nil, false
		}
		return r.dispatcher.Dispatch(ctx, &Request{
			Action:      ActionPerformanceCaptured,
			Measurement: &m,
		}), true

	default:
		r.logger.Debug("ignoring unhandled page message", "type", msg.Type)
		return nil, false
	}
}
