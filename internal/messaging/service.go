// Package messaging orchestrates message creation and read-state
// transitions, wiring routing, persistence, the unread counter and the
// asynchronous fan-out in the right order.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/caseline-io/caseline-backend/internal/counter"
	apperrors "github.com/caseline-io/caseline-backend/internal/errors"
	"github.com/caseline-io/caseline-backend/internal/models"
	"github.com/caseline-io/caseline-backend/internal/repository"
	"github.com/caseline-io/caseline-backend/internal/routing"
	"github.com/caseline-io/caseline-backend/internal/validator"
)

// Queue task names for message-level fan-out and delivery
const (
	TaskMessageFanout  = "message.fanout"
	TaskMessageDeliver = "message.deliver"
)

// MessageEvent is the payload published for per-message display updates
type MessageEvent struct {
	Kind      string `json:"kind"` // "new" or "read"
	InboxID   uint   `json:"inbox_id"`
	MessageID uint   `json:"message_id"`
}

// DeliverEvent is the payload for the queued sent-to-delivered transition
type DeliverEvent struct {
	MessageID uint `json:"message_id"`
}

// Enqueuer is the slice of the task queue the coordinator needs
type Enqueuer interface {
	Enqueue(name string, payload interface{}) <-chan struct{}
	EnqueueAfter(after <-chan struct{}, name string, payload interface{}) <-chan struct{}
}

// SendParams are the caller-supplied fields of a new message
type SendParams struct {
	Body              string
	ParentMessageID   *uint
	RoutingType       models.RoutingType
	DocumentRequestID *uint
}

// Service is the message lifecycle coordinator
type Service struct {
	messages  repository.MessageRepository
	mailboxes repository.MailboxRepository
	engine    *routing.Engine
	counter   *counter.Service
	tasks     Enqueuer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a messaging Service
func NewService(messages repository.MessageRepository, mailboxes repository.MailboxRepository, engine *routing.Engine, counterSvc *counter.Service, tasks Enqueuer, log *slog.Logger) *Service {
	return &Service{
		messages:  messages,
		mailboxes: mailboxes,
		engine:    engine,
		counter:   counterSvc,
		tasks:     tasks,
		logger:    log,
		now:       time.Now,
	}
}

// Send validates, routes and persists a new message, then increments the
// recipient's unread counter and queues the display fan-out behind the
// counter broadcast. Routing failures collapse to ErrNoRecipients here;
// the caller learns that routing failed, not why.
func (s *Service) Send(ctx context.Context, params SendParams, sender *models.User) (*models.Message, error) {
	if err := validator.ValidateBody(params.Body); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	routingType := params.RoutingType
	if routingType == "" {
		if params.ParentMessageID != nil {
			routingType = models.RoutingReply
		} else {
			routingType = models.RoutingDirect
		}
	}
	if !routingType.IsValid() {
		return nil, apperrors.NewValidationError("routing type is not valid")
	}

	outbox, err := s.mailboxes.GetOutboxByUser(ctx, sender.ID)
	if err != nil {
		return nil, err
	}

	draft := &models.Message{
		OutboxID:          outbox.ID,
		Body:              params.Body,
		Status:            models.StatusSent,
		RoutingType:       routingType,
		ParentMessageID:   params.ParentMessageID,
		DocumentRequestID: params.DocumentRequestID,
	}

	recipient, err := s.engine.DetermineRecipient(ctx, draft, sender)
	if err != nil {
		// The coordinator fallback applies only to a requester's new
		// message; reply routing never falls back.
		if errors.Is(err, routing.ErrNoSpecialistAvailable) &&
			sender.Role == models.RoleRequester && params.ParentMessageID == nil {
			recipient, err = s.engine.FindAvailable(ctx, models.RoleCoordinator)
		}
		if err != nil {
			if routing.IsUnavailable(err) {
				if s.logger != nil {
					s.logger.Warn("send found no recipients",
						slog.Uint64("sender_id", uint64(sender.ID)),
						slog.String("sender_role", string(sender.Role)),
						slog.Any("error", err))
				}
				return nil, apperrors.ErrNoRecipients
			}
			return nil, err
		}
	}

	inbox, err := s.mailboxes.GetInboxByUser(ctx, recipient.ID)
	if err != nil {
		return nil, err
	}
	draft.InboxID = inbox.ID

	if err := s.messages.Create(ctx, draft); err != nil {
		return nil, err
	}

	update, err := s.counter.Increment(ctx, inbox.ID)
	if err != nil {
		return nil, err
	}

	// Display fan-out waits for the count broadcast, so live views see the
	// counter move before the message row appears. The delivery transition
	// waits in turn for the fan-out.
	if s.tasks != nil {
		shown := s.tasks.EnqueueAfter(update.Broadcast, TaskMessageFanout, MessageEvent{
			Kind:      "new",
			InboxID:   inbox.ID,
			MessageID: draft.ID,
		})
		s.tasks.EnqueueAfter(shown, TaskMessageDeliver, DeliverEvent{MessageID: draft.ID})
	}

	return draft, nil
}

// MarkDelivered advances a message from sent to delivered. Already
// delivered or read messages are left alone.
func (s *Service) MarkDelivered(ctx context.Context, messageID uint) error {
	_, err := s.messages.UpdateStatus(ctx, messageID, models.StatusSent, models.StatusDelivered)
	return err
}

// MarkAsRead marks one message read. Returns false when the message was
// already read (the transition is a no-op, never a double decrement).
func (s *Service) MarkAsRead(ctx context.Context, messageID uint) (bool, error) {
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return false, err
	}
	if message.Read {
		return false, nil
	}

	changed, err := s.messages.MarkRead(ctx, messageID, s.now())
	if err != nil {
		return false, err
	}
	if !changed {
		// Lost the race with a concurrent reader; their decrement stands.
		return false, nil
	}

	update, err := s.counter.Decrement(ctx, message.InboxID)
	if err != nil {
		return false, err
	}
	if s.tasks != nil {
		s.tasks.EnqueueAfter(update.Broadcast, TaskMessageFanout, MessageEvent{
			Kind:      "read",
			InboxID:   message.InboxID,
			MessageID: messageID,
		})
	}
	return true, nil
}

// MustMarkAsRead is the fail-fast variant: an already-read message is an
// ErrInvalidTransition instead of a false return.
func (s *Service) MustMarkAsRead(ctx context.Context, messageID uint) error {
	changed, err := s.MarkAsRead(ctx, messageID)
	if err != nil {
		return err
	}
	if !changed {
		return apperrors.ErrInvalidTransition
	}
	return nil
}

// MarkManyAsRead marks a mixed set of messages read, optionally scoped to
// one inbox. Unread messages are batch-updated in one statement; the
// affected set is then grouped by inbox with exactly one counter
// adjustment and one count broadcast per inbox, plus one display fan-out
// per message. Returns the number of messages actually flipped.
func (s *Service) MarkManyAsRead(ctx context.Context, messageIDs []uint, inboxID *uint) (int, error) {
	affected, err := s.messages.BatchMarkRead(ctx, messageIDs, inboxID, s.now())
	if err != nil {
		return 0, err
	}
	if len(affected) == 0 {
		return 0, nil
	}

	byInbox := make(map[uint][]models.Message)
	for _, m := range affected {
		byInbox[m.InboxID] = append(byInbox[m.InboxID], m)
	}

	for id, msgs := range byInbox {
		update, err := s.counter.Recalculate(ctx, id)
		if err != nil {
			return 0, err
		}
		if s.tasks != nil {
			for _, m := range msgs {
				s.tasks.EnqueueAfter(update.Broadcast, TaskMessageFanout, MessageEvent{
					Kind:      "read",
					InboxID:   id,
					MessageID: m.ID,
				})
			}
		}
	}

	return len(affected), nil
}

// MarkAllAsRead flips every unread message in an inbox with a single batch
// update, then recalculates the counter exactly once. Correctness comes
// from the recount, not from incremental math.
func (s *Service) MarkAllAsRead(ctx context.Context, inboxID uint) (int64, error) {
	changed, err := s.messages.MarkAllRead(ctx, inboxID, s.now())
	if err != nil {
		return 0, err
	}

	if _, err := s.counter.Recalculate(ctx, inboxID); err != nil {
		return 0, err
	}
	return changed, nil
}
