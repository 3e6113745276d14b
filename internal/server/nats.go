package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kandev/a2a/internal/common/logger"
	"github.com/kandev/a2a/pkg/a2a"
	"github.com/kandev/a2a/pkg/jsonrpc"
)

// NATSConfig holds the NATS binding configuration.
type NATSConfig struct {
	URL           string
	Subject       string
	QueueGroup    string
	ClientName    string
	MaxReconnects int
}

// NATSServer serves the JSON-RPC surface over NATS request/reply. A
// request's reply subject receives exactly one envelope for plain methods;
// streaming methods publish one envelope per event to the reply subject and
// finish with an empty closing message.
type NATSServer struct {
	cfg    NATSConfig
	router *Router
	log    *logger.Logger
	conn   *nats.Conn
	sub    *nats.Subscription
}

// NewNATSServer creates the NATS binding.
func NewNATSServer(cfg NATSConfig, router *Router, log *logger.Logger) *NATSServer {
	if log == nil {
		log = logger.Default()
	}
	if cfg.Subject == "" {
		cfg.Subject = "a2a.rpc"
	}
	return &NATSServer{cfg: cfg, router: router, log: log.WithComponent("nats")}
}

// Start connects and subscribes. Members of the same queue group share the
// request load.
func (s *NATSServer) Start() error {
	conn, err := nats.Connect(s.cfg.URL,
		nats.Name(s.cfg.ClientName),
		nats.MaxReconnects(s.cfg.MaxReconnects),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return err
	}
	s.conn = conn

	sub, err := conn.QueueSubscribe(s.cfg.Subject, s.cfg.QueueGroup, s.handleMessage)
	if err != nil {
		conn.Close()
		return err
	}
	s.sub = sub

	s.log.Info("nats binding listening",
		zap.String("url", s.cfg.URL),
		zap.String("subject", s.cfg.Subject))
	return nil
}

// Shutdown drains the subscription and closes the connection.
func (s *NATSServer) Shutdown(ctx context.Context) error {
	if s.sub != nil {
		if err := s.sub.Drain(); err != nil {
			s.log.WithError(err).Warn("failed to drain nats subscription")
		}
	}
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func (s *NATSServer) handleMessage(msg *nats.Msg) {
	if msg.Reply == "" {
		s.log.Warn("dropping nats request without reply subject")
		return
	}

	go func() {
		ctx := context.Background()

		req, perr := jsonrpc.ParseRequest(msg.Data)
		if perr != nil {
			s.respond(msg.Reply, jsonrpc.NewErrorResponse(jsonrpc.ID{}, perr))
			return
		}

		if s.router.IsStreaming(req.Method) {
			frames, errResp := s.router.HandleStream(ctx, req)
			if errResp != nil {
				s.respond(msg.Reply, errResp)
				return
			}
			for frame := range frames {
				s.respond(msg.Reply, frame)
			}
			// Empty payload marks the end of the stream.
			if err := s.conn.Publish(msg.Reply, nil); err != nil {
				s.log.WithError(err).Warn("failed to publish stream terminator")
			}
			return
		}

		s.respond(msg.Reply, s.router.Handle(ctx, req))
	}()
}

func (s *NATSServer) respond(subject string, resp *jsonrpc.Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.log.WithError(err).Error("failed to marshal nats response")
		payload, _ = json.Marshal(jsonrpc.NewErrorResponse(resp.ID, a2a.Internalf("failed to marshal response")))
	}
	if err := s.conn.Publish(subject, payload); err != nil {
		s.log.WithError(err).Warn("failed to publish nats response")
	}
}
