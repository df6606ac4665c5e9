// Package main is the entry point for the support chat server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-chat/internal/api"
	"github.com/capitalize-ai/support-chat/internal/config"
	"github.com/capitalize-ai/support-chat/internal/handler"
	"github.com/capitalize-ai/support-chat/internal/identity"
	natsclient "github.com/capitalize-ai/support-chat/internal/nats"
	"github.com/capitalize-ai/support-chat/internal/realtime"
	"github.com/capitalize-ai/support-chat/internal/service"
	"github.com/capitalize-ai/support-chat/internal/store"
	"github.com/capitalize-ai/support-chat/pkg/logger"
	"github.com/capitalize-ai/support-chat/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.Development())
	if err != nil {
		os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting chat server", zap.String("store", cfg.StoreDriver))

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "support-chat", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	st, err := store.Open(openCtx, store.Options{
		Driver:        cfg.StoreDriver,
		DatabaseURL:   cfg.DatabaseURL,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	})
	cancel()
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close(context.Background())

	if cfg.PartiesSeedFile != "" {
		n, err := identity.LoadSeed(ctx, st, cfg.PartiesSeedFile)
		if err != nil {
			log.Fatal("failed to seed parties", zap.String("file", cfg.PartiesSeedFile), zap.Error(err))
		}
		log.Info("parties seeded", zap.Int("count", n))
	}

	// Event log is optional; the store stays authoritative without it.
	var (
		events      service.EventPublisher
		eventsCheck handler.ConnChecker
	)
	if cfg.EventsEnabled {
		natsCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		natsClient, err := natsclient.Connect(natsCtx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log.Named("nats"))
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		eventLog := natsclient.NewEventLog(natsClient)
		err = eventLog.EnsureStream(natsCtx)
		cancel()
		if err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		events = eventLog
		eventsCheck = natsClient
	}

	// Services
	resolver := identity.NewResolver(st)
	hub := realtime.NewHub(log.Named("hub"))
	conversationSvc := service.NewConversationService(st, resolver, log.Named("conversations"))
	messageSvc := service.NewMessageService(st, conversationSvc, events, log.Named("messages"))
	coordinator := service.NewCoordinator(conversationSvc, messageSvc, hub, events, log.Named("ingest"))

	router := api.NewRouter(api.Handlers{
		Health:        handler.NewHealthHandler(st, eventsCheck),
		Conversations: handler.NewConversationHandler(conversationSvc, log),
		Messages:      handler.NewMessageHandler(messageSvc, coordinator, log),
		Parties:       handler.NewPartyHandler(resolver, log),
		Stream:        handler.NewStreamHandler(conversationSvc, hub, cfg.SSEHeartbeat, cfg.WSSendBuffer, log.Named("sse")),
		WebSocket:     realtime.NewWebSocketServer(hub, coordinator, cfg.WSSendBuffer, log.Named("ws")),
	}, api.Options{
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	}, log)

	// Streaming endpoints hold the connection open, so no write timeout.
	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: cfg.ServerReadTimeout,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
