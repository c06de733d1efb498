package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caseline-io/caseline-backend/internal/api"
	"github.com/caseline-io/caseline-backend/internal/config"
	"github.com/caseline-io/caseline-backend/internal/counter"
	"github.com/caseline-io/caseline-backend/internal/database"
	"github.com/caseline-io/caseline-backend/internal/docrequest"
	"github.com/caseline-io/caseline-backend/internal/logger"
	"github.com/caseline-io/caseline-backend/internal/messaging"
	"github.com/caseline-io/caseline-backend/internal/queue"
	"github.com/caseline-io/caseline-backend/internal/thread"
	ws "github.com/caseline-io/caseline-backend/internal/websocket"
)

func main() {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(log)
	cfg.LogConfig(log)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		log.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	hub := ws.NewHub(log)
	go hub.Run()

	tasks := queue.New(cfg.QueueWorkers, cfg.QueueMaxRetries, log)
	tasks.Handle(counter.TaskCountChanged, func(ctx context.Context, task queue.Task) error {
		event, ok := task.Payload.(counter.CountEvent)
		if !ok {
			return fmt.Errorf("unexpected payload for %s: %T", task.Name, task.Payload)
		}
		hub.BroadcastUnreadCount(event.InboxID, event.Count)
		return nil
	})
	tasks.Handle(messaging.TaskMessageFanout, func(ctx context.Context, task queue.Task) error {
		event, ok := task.Payload.(messaging.MessageEvent)
		if !ok {
			return fmt.Errorf("unexpected payload for %s: %T", task.Name, task.Payload)
		}
		hub.BroadcastMessageEvent(event.InboxID, event.MessageID, event.Kind)
		return nil
	})
	router := api.NewRouter(&api.RouterConfig{
		DB:             db,
		Hub:            hub,
		Queue:          tasks,
		Payments:       docrequest.NewAcceptAllProcessor(log),
		Logger:         log,
		Audit:          logger.NewAuditLogger(),
		AllowedOrigins: cfg.Origins(),
		ThreadBounds: thread.Config{
			RootDepth:    cfg.ThreadRootDepth,
			CollectDepth: cfg.ThreadCollectDepth,
		},
	})
	tasks.Start()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		log.Info("starting API server", slog.String("addr", addr))
		if err := router.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error("API server stopped", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := router.Shutdown(ctx); err != nil {
		log.Warn("API server shutdown error", slog.Any("error", err))
	}
	if err := tasks.Shutdown(ctx); err != nil {
		log.Warn("task queue shutdown error", slog.Any("error", err))
	}

	log.Info("server stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
