package handlers

import (
	"errors"
	"strconv"

	"github.com/caseline-io/caseline-backend/internal/api/response"
	"github.com/caseline-io/caseline-backend/internal/counter"
	"github.com/caseline-io/caseline-backend/internal/messaging"
	"github.com/caseline-io/caseline-backend/internal/repository"
	"github.com/labstack/echo/v4"
)

// InboxHandler handles mailbox-related HTTP requests
type InboxHandler struct {
	mailboxes repository.MailboxRepository
	messages  repository.MessageRepository
	counter   *counter.Service
	messenger *messaging.Service
}

// NewInboxHandler creates a new InboxHandler
func NewInboxHandler(mailboxes repository.MailboxRepository, messages repository.MessageRepository, counterSvc *counter.Service, messenger *messaging.Service) *InboxHandler {
	return &InboxHandler{
		mailboxes: mailboxes,
		messages:  messages,
		counter:   counterSvc,
		messenger: messenger,
	}
}

// UnreadCount handles GET /api/inboxes/:id/unread
func (h *InboxHandler) UnreadCount(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid inbox ID")
	}

	if _, err := h.mailboxes.GetInbox(c.Request().Context(), uint(id)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "inbox not found")
		}
		return response.InternalError(c, "failed to get inbox")
	}

	count, err := h.counter.Get(c.Request().Context(), uint(id))
	if err != nil {
		return response.InternalError(c, "failed to get unread count")
	}

	return response.Success(c, map[string]int64{"unread_count": count})
}

// ListMessages handles GET /api/inboxes/:id/messages
func (h *InboxHandler) ListMessages(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid inbox ID")
	}

	if _, err := h.mailboxes.GetInbox(c.Request().Context(), uint(id)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "inbox not found")
		}
		return response.InternalError(c, "failed to get inbox")
	}

	limit, offset := pagination(c)
	messages, total, err := h.messages.ListByInbox(c.Request().Context(), uint(id), limit, offset)
	if err != nil {
		return response.InternalError(c, "failed to list messages")
	}

	return response.Paginated(c, messages, total, limit, offset)
}

// ListSent handles GET /api/outboxes/:id/messages
func (h *InboxHandler) ListSent(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid outbox ID")
	}

	limit, offset := pagination(c)
	messages, total, err := h.messages.ListByOutbox(c.Request().Context(), uint(id), limit, offset)
	if err != nil {
		return response.InternalError(c, "failed to list messages")
	}

	return response.Paginated(c, messages, total, limit, offset)
}

// MarkAllRead handles POST /api/inboxes/:id/read-all
func (h *InboxHandler) MarkAllRead(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid inbox ID")
	}

	if _, err := h.mailboxes.GetInbox(c.Request().Context(), uint(id)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "inbox not found")
		}
		return response.InternalError(c, "failed to get inbox")
	}

	changed, err := h.messenger.MarkAllAsRead(c.Request().Context(), uint(id))
	if err != nil {
		return response.InternalError(c, "failed to mark all as read")
	}

	return response.Success(c, map[string]int64{"updated": changed})
}

func pagination(c echo.Context) (limit, offset int) {
	limit = 20
	offset = 0

	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if o := c.QueryParam("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
