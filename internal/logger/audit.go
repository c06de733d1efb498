// Package logger provides the structured audit log for the messaging core.
package logger

import (
	"log/slog"
	"os"
	"time"
)

// AuditLogger records routing decisions, counter corrections and payment
// outcomes as structured events. Message bodies are never logged.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates an AuditLogger with JSON output.
func NewAuditLogger() *AuditLogger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &AuditLogger{
		logger: slog.New(handler),
	}
}

// NewAuditLoggerWithHandler creates an AuditLogger with a custom handler.
func NewAuditLoggerWithHandler(handler slog.Handler) *AuditLogger {
	return &AuditLogger{
		logger: slog.New(handler),
	}
}

// RoutingDecision logs a resolved recipient for a send.
func (a *AuditLogger) RoutingDecision(senderRole string, reply bool, recipientID uint, recipientRole string) {
	a.logger.Info("routing_decision",
		slog.String("event_type", "routing_decision"),
		slog.String("sender_role", senderRole),
		slog.Bool("reply", reply),
		slog.Uint64("recipient_id", uint64(recipientID)),
		slog.String("recipient_role", recipientRole),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// RoutingFailure logs a send that found no eligible recipient.
func (a *AuditLogger) RoutingFailure(senderRole, reason string) {
	a.logger.Warn("routing_failure",
		slog.String("event_type", "routing_failure"),
		slog.String("sender_role", senderRole),
		slog.String("reason", reason),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// CounterDrift logs a cached unread count that disagreed with a recount.
func (a *AuditLogger) CounterDrift(inboxID uint, cached, actual int64) {
	a.logger.Warn("counter_drift",
		slog.String("event_type", "counter_drift"),
		slog.Uint64("inbox_id", uint64(inboxID)),
		slog.Int64("cached", cached),
		slog.Int64("actual", actual),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// CacheDegraded logs a counter operation that fell back to a direct
// recount because the cache was unreachable.
func (a *AuditLogger) CacheDegraded(inboxID uint, reason string) {
	a.logger.Warn("cache_degraded",
		slog.String("event_type", "cache_degraded"),
		slog.Uint64("inbox_id", uint64(inboxID)),
		slog.String("reason", reason),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// PaymentOutcome logs the result of charging a document request.
func (a *AuditLogger) PaymentOutcome(requestID uint, succeeded bool) {
	a.logger.Info("payment_outcome",
		slog.String("event_type", "payment_outcome"),
		slog.Uint64("request_id", uint64(requestID)),
		slog.Bool("succeeded", succeeded),
		slog.Time("timestamp", time.Now().UTC()),
	)
}
