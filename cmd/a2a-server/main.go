package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kandev/a2a/internal/common/config"
	"github.com/kandev/a2a/internal/common/logger"
	"github.com/kandev/a2a/internal/common/tracing"
	"github.com/kandev/a2a/internal/eventqueue"
	"github.com/kandev/a2a/internal/handler"
	"github.com/kandev/a2a/internal/push"
	"github.com/kandev/a2a/internal/server"
	"github.com/kandev/a2a/internal/taskstore"
	"github.com/kandev/a2a/pkg/a2a"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting A2A server...")

	// 3. Open the task store
	store, err := openStore(cfg)
	if err != nil {
		log.Fatal("Failed to open task store", zap.Error(err))
	}
	defer store.Close()
	log.Info("Task store ready", zap.String("driver", cfg.Store.Driver))

	// 4. Event queue fabric
	queues := eventqueue.NewManager(cfg.Queue.Capacity, log)

	// 5. Push notifications
	opts := []handler.Option{
		handler.WithPollerStartTimeout(cfg.Queue.PollerStartTimeoutDuration()),
	}
	if cfg.Push.Enabled {
		pushStore := push.NewMemoryConfigStore()
		opts = append(opts,
			handler.WithPushConfigStore(pushStore),
			handler.WithPushSender(push.NewHTTPSender(pushStore, cfg.Push.TimeoutDuration(), log)),
		)
	}

	// 6. Request handler with the built-in echo executor
	h := handler.New(&echoExecutor{}, store, queues, log, opts...)
	router := server.NewRouter(h, log)

	card := a2a.AgentCard{
		Name:               cfg.Agent.Name,
		Description:        cfg.Agent.Description,
		URL:                cfg.Agent.URL,
		Version:            cfg.Agent.Version,
		ProtocolVersion:    "0.3.0",
		PreferredTransport: "JSONRPC",
		Capabilities: a2a.AgentCapabilities{
			Streaming:         true,
			PushNotifications: cfg.Push.Enabled,
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills: []a2a.AgentSkill{{
			ID:          "echo",
			Name:        "Echo",
			Description: "Echoes the inbound message back as an artifact",
			Tags:        []string{"demo"},
		}},
	}

	// 7. Transport bindings
	ws := server.NewWSHandler(router, log)
	httpSrv := server.NewHTTPServer(server.HTTPConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}, router, card, log, ws.Register)

	var natsSrv *server.NATSServer
	if cfg.NATS.URL != "" {
		natsSrv = server.NewNATSServer(server.NATSConfig{
			URL:           cfg.NATS.URL,
			Subject:       cfg.NATS.Subject,
			QueueGroup:    cfg.NATS.QueueGroup,
			ClientName:    cfg.NATS.ClientID,
			MaxReconnects: cfg.NATS.MaxReconnects,
		}, router, log)
		if err := natsSrv.Start(); err != nil {
			log.Fatal("Failed to start NATS binding", zap.Error(err))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Start()
	}()

	// 8. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", zap.Error(err))
		}
	case sig := <-quit:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if natsSrv != nil {
		if err := natsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("NATS shutdown failed", zap.Error(err))
		}
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", zap.Error(err))
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracing shutdown failed", zap.Error(err))
	}
	log.Info("Server stopped")
}

func openStore(cfg *config.Config) (taskstore.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return taskstore.NewSQLiteStore(cfg.Store.Path)
	case "postgres":
		return taskstore.NewPostgresStore(cfg.Store.DSN(), cfg.Store.MaxConns, cfg.Store.MinConns)
	default:
		return taskstore.NewMemoryStore(), nil
	}
}

// echoExecutor is the built-in demo agent: it completes every task with a
// single artifact echoing the inbound text.
type echoExecutor struct{}

func (e *echoExecutor) Execute(ctx context.Context, rc *handler.RequestContext, queue *eventqueue.Queue) error {
	task := a2a.NewTask(rc.TaskID, rc.ContextID)
	queue.Enqueue(task)
	queue.Enqueue(a2a.NewStatusUpdateEvent(task.ID, task.ContextID, a2a.TaskStateWorking, false))

	var texts []string
	if rc.Message != nil {
		for _, part := range rc.Message.Parts {
			if tp, ok := part.(a2a.TextPart); ok {
				texts = append(texts, tp.Text)
			}
		}
	}
	artifact := a2a.NewArtifact("echo", a2a.NewTextPart(strings.Join(texts, " ")))
	queue.Enqueue(a2a.NewArtifactUpdateEvent(task.ID, task.ContextID, artifact))
	queue.Enqueue(a2a.NewStatusUpdateEvent(task.ID, task.ContextID, a2a.TaskStateCompleted, true))
	return nil
}

func (e *echoExecutor) Cancel(ctx context.Context, rc *handler.RequestContext, queue *eventqueue.Queue) error {
	queue.Enqueue(a2a.NewStatusUpdateEvent(rc.TaskID, rc.ContextID, a2a.TaskStateCanceled, true))
	return nil
}
