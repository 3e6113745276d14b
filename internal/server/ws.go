package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kandev/a2a/internal/common/logger"
	"github.com/kandev/a2a/pkg/jsonrpc"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler serves the JSON-RPC surface over a WebSocket connection. Each
// text frame carries one request envelope; streaming methods produce one
// response frame per event on the same connection.
type WSHandler struct {
	router *Router
	log    *logger.Logger
}

// NewWSHandler creates the WebSocket binding.
func NewWSHandler(router *Router, log *logger.Logger) *WSHandler {
	if log == nil {
		log = logger.Default()
	}
	return &WSHandler{router: router, log: log.WithComponent("ws")}
}

// Register mounts the WebSocket endpoint on the gin engine.
func (h *WSHandler) Register(engine *gin.Engine) {
	engine.GET("/ws", h.handleConnection)
}

func (h *WSHandler) handleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("failed to upgrade connection")
		return
	}
	defer conn.Close()

	h.log.Debug("websocket connection established",
		zap.String("remote_addr", c.Request.RemoteAddr))

	// Concurrent streams share the connection; writes are serialized. A
	// failed write tears down every in-flight stream via the group context.
	g, ctx := errgroup.WithContext(c.Request.Context())
	defer g.Wait() //nolint:errcheck

	var writeMu sync.Mutex
	writeJSON := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.WithError(err).Debug("websocket read failed")
			}
			return
		}

		req, perr := jsonrpc.ParseRequest(data)
		if perr != nil {
			if werr := writeJSON(jsonrpc.NewErrorResponse(jsonrpc.ID{}, perr)); werr != nil {
				return
			}
			continue
		}

		if h.router.IsStreaming(req.Method) {
			frames, errResp := h.router.HandleStream(ctx, req)
			if errResp != nil {
				if werr := writeJSON(errResp); werr != nil {
					return
				}
				continue
			}
			g.Go(func() error {
				for frame := range frames {
					if werr := writeJSON(frame); werr != nil {
						return werr
					}
				}
				return nil
			})
			continue
		}

		if werr := writeJSON(h.router.Handle(ctx, req)); werr != nil {
			return
		}
	}
}
