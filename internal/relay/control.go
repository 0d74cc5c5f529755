// ABOUTME: Agent-side control channel: follows debugger status events from
// ABOUTME: the collector's websocket feed and toggles the local capture hooks

package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/glidescope/glidescope/internal/capture"
	"github.com/glidescope/glidescope/internal/notify"
)

// controlFrame mirrors the server's websocket frame shape for pushes.
type controlFrame struct {
	Kind  string        `json:"kind"`
	Event *notify.Event `json:"event"`
}

// ApplyControlEvent toggles hooks according to a status event. Returns true
// when the event was a debugger control event; other events are ignored.
func ApplyControlEvent(hooks *capture.Hooks, ev *notify.Event) bool {
	if ev == nil || ev.Topic != notify.TopicStatus {
		return false
	}
	switch ev.Action {
	case ActionEnableDebugger:
		hooks.Enable()
		return true
	case ActionDisableDebugger:
		hooks.Disable()
		return true
	}
	return false
}

// FollowStatus connects to the collector's websocket feed and applies
// debugger enable and disable events to hooks. Blocks until the context is
// cancelled or the connection drops.
func FollowStatus(ctx context.Context, wsURL string, hooks *capture.Hooks, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default().With("component", "control")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dialing control feed: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var frame controlFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading control feed: %w", err)
		}
		if frame.Kind != "event" {
			continue
		}
		if ApplyControlEvent(hooks, frame.Event) {
			logger.Info("capture toggled by collector",
				"action", frame.Event.Action,
				"enabled", hooks.Enabled())
		}
	}
}
