package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caseline-io/caseline-backend/internal/api/handlers"
	"github.com/caseline-io/caseline-backend/internal/api/middleware"
	"github.com/caseline-io/caseline-backend/internal/counter"
	"github.com/caseline-io/caseline-backend/internal/docrequest"
	"github.com/caseline-io/caseline-backend/internal/logger"
	"github.com/caseline-io/caseline-backend/internal/messaging"
	"github.com/caseline-io/caseline-backend/internal/queue"
	"github.com/caseline-io/caseline-backend/internal/repository"
	"github.com/caseline-io/caseline-backend/internal/routing"
	"github.com/caseline-io/caseline-backend/internal/thread"
	ws "github.com/caseline-io/caseline-backend/internal/websocket"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB             *gorm.DB
	Hub            *ws.Hub
	Queue          *queue.Queue
	Payments       docrequest.PaymentProcessor
	Logger         *slog.Logger
	Audit          *logger.AuditLogger
	AllowedOrigins []string
	ThreadBounds   thread.Config
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.SecureHeaders())
	e.Use(middleware.CORS(cfg.AllowedOrigins))
	e.Use(middleware.RateLimiter(cfg.Logger))
	if cfg.Logger != nil {
		e.Use(middleware.RequestLogger(cfg.Logger))
	}

	// Repositories
	userRepo := repository.NewUserRepository(cfg.DB)
	mailboxRepo := repository.NewMailboxRepository(cfg.DB)
	messageRepo := repository.NewMessageRepository(cfg.DB)
	requestRepo := repository.NewDocumentRequestRepository(cfg.DB)

	// Services
	resolver := thread.NewResolver(messageRepo, cfg.ThreadBounds)
	engine := routing.NewEngine(userRepo, resolver, routing.NewRoleCache(), cfg.Audit)
	counterSvc := counter.NewService(mailboxRepo, messageRepo, counter.NewMemoryCache(), cfg.Queue, cfg.Audit, cfg.Logger)
	messenger := messaging.NewService(messageRepo, mailboxRepo, engine, counterSvc, cfg.Queue, cfg.Logger)
	requestSvc := docrequest.NewService(requestRepo, userRepo, messenger, cfg.Payments, cfg.Audit, cfg.Logger)

	// Delivery runs after the display fan-out has been broadcast
	if cfg.Queue != nil {
		cfg.Queue.Handle(messaging.TaskMessageDeliver, func(ctx context.Context, task queue.Task) error {
			event, ok := task.Payload.(messaging.DeliverEvent)
			if !ok {
				return fmt.Errorf("unexpected payload for %s: %T", task.Name, task.Payload)
			}
			return messenger.MarkDelivered(ctx, event.MessageID)
		})
	}

	// Handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB)
	messageHandler := handlers.NewMessageHandler(messageRepo, messenger, resolver)
	inboxHandler := handlers.NewInboxHandler(mailboxRepo, messageRepo, counterSvc, messenger)
	requestHandler := handlers.NewDocumentRequestHandler(requestSvc, requestRepo)
	wsHandler := handlers.NewWSHandler(cfg.Hub, ws.NewSecureUpgrader(cfg.AllowedOrigins, cfg.Logger), cfg.Logger)

	// Health routes (no actor required)
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)

	// WebSocket endpoint
	e.GET("/ws", wsHandler.Connect)

	// API routes
	api := e.Group("/api")
	api.Use(middleware.ActorResolver(userRepo, cfg.Logger))

	// Message routes
	messages := api.Group("/messages")
	messages.POST("", messageHandler.Send)
	messages.POST("/read", messageHandler.BulkRead)
	messages.GET("/:id", messageHandler.Get)
	messages.GET("/:id/thread", messageHandler.Thread)
	messages.PATCH("/:id/read", messageHandler.MarkAsRead)

	// Mailbox routes
	inboxes := api.Group("/inboxes")
	inboxes.GET("/:id/unread", inboxHandler.UnreadCount)
	inboxes.GET("/:id/messages", inboxHandler.ListMessages)
	inboxes.POST("/:id/read-all", inboxHandler.MarkAllRead)

	outboxes := api.Group("/outboxes")
	outboxes.GET("/:id/messages", inboxHandler.ListSent)

	// Document request routes
	requests := api.Group("/document-requests")
	requests.POST("", requestHandler.Create)
	requests.GET("", requestHandler.List)
	requests.POST("/:id/pay", requestHandler.Pay)
	requests.POST("/:id/fulfill", requestHandler.Fulfill)
	requests.POST("/:id/reject", requestHandler.Reject)

	return e
}
