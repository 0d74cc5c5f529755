// ABOUTME: HTTP surface: message dispatch, page-message ingress, health, and
// ABOUTME: the websocket endpoint for live subscriptions

package server

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/glidescope/glidescope/internal/notify"
	"github.com/glidescope/glidescope/internal/relay"
	"github.com/glidescope/glidescope/internal/store"
)

// Server exposes the dispatcher over HTTP and websocket.
type Server struct {
	engine      *gin.Engine
	dispatcher  *relay.Dispatcher
	relay       *relay.Relay
	broadcaster *notify.Broadcaster
	db          *store.Store
	logger      *slog.Logger
	addr        string
}

// New builds the server around an already-wired dispatcher and relay.
func New(dispatcher *relay.Dispatcher, pageRelay *relay.Relay, b *notify.Broadcaster, db *store.Store, addr string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		engine:      engine,
		dispatcher:  dispatcher,
		relay:       pageRelay,
		broadcaster: b,
		db:          db,
		logger:      slog.Default().With("component", "server"),
		addr:        addr,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.POST("/api/message", s.handleMessage)
	s.engine.POST("/api/page-message", s.handlePageMessage)
	s.engine.GET("/ws", s.handleWebSocket)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"logs":         s.db.CountLogs(ctx),
		"measurements": s.db.CountMeasurements(ctx),
	})
}

// handleMessage dispatches one action request. The envelope always rides a
// 200; callers distinguish outcomes by the envelope type, not HTTP status.
func (s *Server) handleMessage(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, relay.Failure(relay.CodeValidationError, "reading request body failed"))
		return
	}
	c.JSON(http.StatusOK, s.dispatcher.DispatchRaw(c.Request.Context(), raw))
}

// handlePageMessage feeds a raw page message through the relay. Dropped
// messages answer 204 so hooks never see errors for foreign traffic.
func (s *Server) handlePageMessage(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusNoContent)
		return
	}

	resp, ok := s.relay.Forward(c.Request.Context(), c.GetHeader("Origin"), raw)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Handler exposes the routing tree, used by tests and embedding callers.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the server. Blocks until the listener fails.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.addr)
	return s.engine.Run(s.addr)
}
