// Package counter keeps each inbox's cached unread count consistent with
// ground truth under concurrent mutation and asynchronous fan-out.
package counter

import (
	"context"
	"log/slog"

	"github.com/caseline-io/caseline-backend/internal/logger"
	"github.com/caseline-io/caseline-backend/internal/repository"
)

// TaskCountChanged is the queue task that broadcasts a new unread count
const TaskCountChanged = "counter.fanout"

// CountEvent is the payload published when an inbox's unread count changes
type CountEvent struct {
	InboxID uint  `json:"inbox_id"`
	Count   int64 `json:"count"`
}

// Enqueuer is the slice of the task queue the service needs
type Enqueuer interface {
	Enqueue(name string, payload interface{}) <-chan struct{}
}

// Update describes one committed counter mutation. Broadcast closes once
// the fan-out notification for this change has been delivered; dependent
// notifications order themselves on it instead of sleeping.
type Update struct {
	Count     int64
	Broadcast <-chan struct{}
}

// Service maintains per-inbox unread counters. Every mutation persists the
// new count first, then updates the cache, then enqueues a fan-out, so the
// cache and the stored value never diverge for longer than one operation.
type Service struct {
	mailboxes repository.MailboxRepository
	messages  repository.MessageRepository
	cache     CountCache
	tasks     Enqueuer
	audit     *logger.AuditLogger
	logger    *slog.Logger
}

// NewService creates a counter Service
func NewService(mailboxes repository.MailboxRepository, messages repository.MessageRepository, cache CountCache, tasks Enqueuer, audit *logger.AuditLogger, log *slog.Logger) *Service {
	return &Service{
		mailboxes: mailboxes,
		messages:  messages,
		cache:     cache,
		tasks:     tasks,
		audit:     audit,
		logger:    log,
	}
}

// Increment adds one to an inbox's unread count
func (s *Service) Increment(ctx context.Context, inboxID uint) (Update, error) {
	return s.adjust(ctx, inboxID, 1)
}

// Decrement subtracts one, clamped at zero inside the persisted update so
// concurrent reads can never drive the stored count negative.
func (s *Service) Decrement(ctx context.Context, inboxID uint) (Update, error) {
	return s.adjust(ctx, inboxID, -1)
}

func (s *Service) adjust(ctx context.Context, inboxID uint, delta int64) (Update, error) {
	count, err := s.mailboxes.AdjustUnread(ctx, inboxID, delta)
	if err != nil {
		return Update{}, err
	}
	return s.committed(inboxID, count), nil
}

// Reset sets the count to zero
func (s *Service) Reset(ctx context.Context, inboxID uint) (Update, error) {
	return s.Set(ctx, inboxID, 0)
}

// Set overwrites the count, flooring at zero
func (s *Service) Set(ctx context.Context, inboxID uint, count int64) (Update, error) {
	stored, err := s.mailboxes.SetUnread(ctx, inboxID, count)
	if err != nil {
		return Update{}, err
	}
	return s.committed(inboxID, stored), nil
}

// Recalculate replaces the counter with an authoritative recount from
// storage. Incremental math may drift; this is the correction point.
func (s *Service) Recalculate(ctx context.Context, inboxID uint) (Update, error) {
	actual, err := s.messages.CountUnread(ctx, inboxID)
	if err != nil {
		return Update{}, err
	}

	if cached, ok, cacheErr := s.cache.Get(inboxID); cacheErr == nil && ok && cached != actual && s.audit != nil {
		s.audit.CounterDrift(inboxID, cached, actual)
	}

	stored, err := s.mailboxes.SetUnread(ctx, inboxID, actual)
	if err != nil {
		return Update{}, err
	}
	return s.committed(inboxID, stored), nil
}

// Get returns the unread count, answering from the cache when possible.
// A miss recounts from storage and refills the cache, so a miss is
// self-healing rather than a silent stale zero. A failing cache degrades
// to the recount and is logged, never surfaced as an error.
func (s *Service) Get(ctx context.Context, inboxID uint) (int64, error) {
	count, ok, err := s.cache.Get(inboxID)
	if err != nil {
		s.degraded(inboxID, err)
	} else if ok {
		return count, nil
	}

	actual, err := s.messages.CountUnread(ctx, inboxID)
	if err != nil {
		return 0, err
	}
	if err := s.cache.Set(inboxID, actual); err != nil {
		s.degraded(inboxID, err)
	}
	return actual, nil
}

// committed runs the post-persist half of a mutation: cache write, then
// fan-out enqueue. Cache failures only log.
func (s *Service) committed(inboxID uint, count int64) Update {
	if err := s.cache.Set(inboxID, count); err != nil {
		s.degraded(inboxID, err)
	}

	var broadcast <-chan struct{}
	if s.tasks != nil {
		broadcast = s.tasks.Enqueue(TaskCountChanged, CountEvent{InboxID: inboxID, Count: count})
	} else {
		closed := make(chan struct{})
		close(closed)
		broadcast = closed
	}

	return Update{Count: count, Broadcast: broadcast}
}

func (s *Service) degraded(inboxID uint, err error) {
	if s.audit != nil {
		s.audit.CacheDegraded(inboxID, err.Error())
	}
	if s.logger != nil {
		s.logger.Warn("count cache unavailable",
			slog.Uint64("inbox_id", uint64(inboxID)),
			slog.Any("error", err))
	}
}
