package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kandev/a2a/internal/common/logger"
	"github.com/kandev/a2a/pkg/a2a"
	"github.com/kandev/a2a/pkg/jsonrpc"
)

// HTTPConfig holds the HTTP binding configuration.
type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// HTTPServer serves the JSON-RPC surface over HTTP: POST / for calls (with
// SSE framing for streaming methods), the well-known agent card path, and a
// health endpoint.
type HTTPServer struct {
	router *Router
	card   a2a.AgentCard
	log    *logger.Logger
	srv    *http.Server
}

// NewHTTPServer creates the HTTP binding. Extra mounts (the WebSocket
// endpoint, debug routes) are applied to the engine before it starts.
func NewHTTPServer(cfg HTTPConfig, router *Router, card a2a.AgentCard, log *logger.Logger, mounts ...func(*gin.Engine)) *HTTPServer {
	if log == nil {
		log = logger.Default()
	}
	s := &HTTPServer{
		router: router,
		card:   card,
		log:    log.WithComponent("http"),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelTracing("a2a-server"))

	engine.POST("/", s.handleRPC)
	engine.GET(a2a.AgentCardPath, s.handleAgentCard)
	engine.GET("/health", s.handleHealth)

	for _, mount := range mounts {
		mount(engine)
	}

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the underlying http.Handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) handleRPC(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, jsonrpc.NewErrorResponse(jsonrpc.ID{}, a2a.Errorf(a2a.CodeParseError, "failed to read request body")))
		return
	}
	req, perr := jsonrpc.ParseRequest(body)
	if perr != nil {
		c.JSON(http.StatusOK, jsonrpc.NewErrorResponse(jsonrpc.ID{}, perr))
		return
	}

	if s.router.IsStreaming(req.Method) {
		s.streamSSE(c, req)
		return
	}
	c.JSON(http.StatusOK, s.router.Handle(c.Request.Context(), req))
}

// streamSSE writes one response envelope per event as a server-sent events
// frame.
func (s *HTTPServer) streamSSE(c *gin.Context, req *jsonrpc.Request) {
	ctx := c.Request.Context()

	frames, errResp := s.router.HandleStream(ctx, req)
	if errResp != nil {
		c.JSON(http.StatusOK, errResp)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	for frame := range frames {
		payload, err := json.Marshal(frame)
		if err != nil {
			s.log.WithError(err).Error("failed to marshal stream frame")
			return
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			// Client went away; the producer keeps running for resubscribe.
			s.log.WithError(err).Debug("stream subscriber disconnected")
			return
		}
		c.Writer.Flush()
	}
}

func (s *HTTPServer) handleAgentCard(c *gin.Context) {
	c.JSON(http.StatusOK, s.card)
}

func (s *HTTPServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
