package handlers

import (
	"errors"
	"strconv"

	"github.com/caseline-io/caseline-backend/internal/api/middleware"
	"github.com/caseline-io/caseline-backend/internal/api/response"
	apperrors "github.com/caseline-io/caseline-backend/internal/errors"
	"github.com/caseline-io/caseline-backend/internal/messaging"
	"github.com/caseline-io/caseline-backend/internal/models"
	"github.com/caseline-io/caseline-backend/internal/repository"
	"github.com/caseline-io/caseline-backend/internal/thread"
	"github.com/labstack/echo/v4"
)

// MessageHandler handles message-related HTTP requests
type MessageHandler struct {
	messages  repository.MessageRepository
	messenger *messaging.Service
	resolver  *thread.Resolver
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messages repository.MessageRepository, messenger *messaging.Service, resolver *thread.Resolver) *MessageHandler {
	return &MessageHandler{
		messages:  messages,
		messenger: messenger,
		resolver:  resolver,
	}
}

// SendRequest is the body for POST /api/messages
type SendRequest struct {
	Body              string             `json:"body"`
	ParentMessageID   *uint              `json:"parent_message_id,omitempty"`
	RoutingType       models.RoutingType `json:"routing_type,omitempty"`
	DocumentRequestID *uint              `json:"document_request_id,omitempty"`
}

// BulkReadRequest is the body for POST /api/messages/read
type BulkReadRequest struct {
	MessageIDs []uint `json:"message_ids"`
	InboxID    *uint  `json:"inbox_id,omitempty"`
}

// Send handles POST /api/messages
func (h *MessageHandler) Send(c echo.Context) error {
	sender := middleware.Actor(c)
	if sender == nil {
		return response.Unauthorized(c, "no acting user")
	}

	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	message, err := h.messenger.Send(c.Request().Context(), messaging.SendParams{
		Body:              req.Body,
		ParentMessageID:   req.ParentMessageID,
		RoutingType:       req.RoutingType,
		DocumentRequestID: req.DocumentRequestID,
	}, sender)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoRecipients) {
			return response.Error(c, apperrors.ErrNoRecipients)
		}
		if _, ok := apperrors.IsValidation(err); ok {
			return response.Error(c, err)
		}
		return response.InternalError(c, "failed to send message")
	}

	return response.Created(c, message)
}

// Get handles GET /api/messages/:id. Fetching a sent message through the
// API advances it to delivered.
func (h *MessageHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid message ID")
	}

	message, err := h.messages.GetByID(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "message not found")
		}
		return response.InternalError(c, "failed to get message")
	}

	if message.Status == models.StatusSent {
		if err := h.messenger.MarkDelivered(c.Request().Context(), message.ID); err == nil {
			message.Status = models.StatusDelivered
		}
	}

	return response.Success(c, message)
}

// Thread handles GET /api/messages/:id/thread, returning the full
// conversation newest first together with its participants.
func (h *MessageHandler) Thread(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid message ID")
	}

	ctx := c.Request().Context()
	root, err := h.resolver.FindRootByID(ctx, uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "message not found")
		}
		return response.InternalError(c, "failed to resolve thread")
	}

	messages, err := h.resolver.CollectThread(ctx, root.ID)
	if err != nil {
		return response.InternalError(c, "failed to collect thread")
	}

	return response.Success(c, map[string]interface{}{
		"root_id":      root.ID,
		"messages":     thread.NewestFirst(messages),
		"participants": thread.Participants(messages),
	})
}

// MarkAsRead handles PATCH /api/messages/:id/read
func (h *MessageHandler) MarkAsRead(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid message ID")
	}

	changed, err := h.messenger.MarkAsRead(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "message not found")
		}
		return response.InternalError(c, "failed to mark message as read")
	}

	return response.Success(c, map[string]bool{"changed": changed})
}

// BulkRead handles POST /api/messages/read
func (h *MessageHandler) BulkRead(c echo.Context) error {
	var req BulkReadRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if len(req.MessageIDs) == 0 {
		return response.BadRequest(c, "message_ids cannot be empty")
	}

	count, err := h.messenger.MarkManyAsRead(c.Request().Context(), req.MessageIDs, req.InboxID)
	if err != nil {
		return response.InternalError(c, "failed to mark messages as read")
	}

	return response.Success(c, map[string]int{"updated": count})
}
