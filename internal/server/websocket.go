// ABOUTME: Websocket session: dispatch requests inbound, push notifications
// ABOUTME: outbound over one connection with a single writer

package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/glidescope/glidescope/internal/notify"
	"github.com/glidescope/glidescope/internal/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsFrame is what the session writes: either a dispatch response or a push
// notification, tagged so the client can tell them apart.
type wsFrame struct {
	Kind     string          `json:"kind"` // "response" or "event"
	Response *relay.Response `json:"response,omitempty"`
	Event    *notify.Event   `json:"event,omitempty"`
}

// handleWebSocket upgrades the connection and runs the session. The client
// picks topics with ?topics=logs,performance; omitting the parameter
// subscribes to everything.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	outbound := make(chan *wsFrame, 64)

	topics := parseTopics(c.Query("topics"))
	for _, topic := range topics {
		ch, _ := s.broadcaster.Subscribe(ctx, topic)
		go func(ch <-chan *notify.Event) {
			for ev := range ch {
				select {
				case outbound <- &wsFrame{Kind: "event", Event: ev}:
				case <-ctx.Done():
					return
				}
			}
		}(ch)
	}

	// Read pump: each inbound message is a dispatch request.
	go func() {
		defer cancel()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			resp := s.dispatcher.DispatchRaw(ctx, raw)
			select {
			case outbound <- &wsFrame{Kind: "response", Response: resp}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Write pump: single writer for the connection.
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-outbound:
			if err := conn.WriteJSON(frame); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func parseTopics(raw string) []string {
	if raw == "" {
		return []string{notify.TopicLogs, notify.TopicPerformance, notify.TopicSettings, notify.TopicStatus}
	}
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}
