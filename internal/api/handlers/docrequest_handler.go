package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/caseline-io/caseline-backend/internal/api/middleware"
	"github.com/caseline-io/caseline-backend/internal/api/response"
	"github.com/caseline-io/caseline-backend/internal/docrequest"
	apperrors "github.com/caseline-io/caseline-backend/internal/errors"
	"github.com/caseline-io/caseline-backend/internal/models"
	"github.com/caseline-io/caseline-backend/internal/repository"
	"github.com/labstack/echo/v4"
)

// DocumentRequestHandler handles document request HTTP requests
type DocumentRequestHandler struct {
	service  *docrequest.Service
	requests repository.DocumentRequestRepository
}

// NewDocumentRequestHandler creates a new DocumentRequestHandler
func NewDocumentRequestHandler(service *docrequest.Service, requests repository.DocumentRequestRepository) *DocumentRequestHandler {
	return &DocumentRequestHandler{
		service:  service,
		requests: requests,
	}
}

// CreateRequest is the body for POST /api/document-requests
type CreateRequest struct {
	SpecialistID uint   `json:"specialist_id"`
	Title        string `json:"title"`
	AmountCents  int64  `json:"amount_cents"`
}

// Create handles POST /api/document-requests
func (h *DocumentRequestHandler) Create(c echo.Context) error {
	actor := middleware.Actor(c)
	if actor == nil {
		return response.Unauthorized(c, "no acting user")
	}

	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	request, err := h.service.Create(c.Request().Context(), actor, req.SpecialistID, req.Title, req.AmountCents)
	if err != nil {
		return h.fail(c, err, "failed to create document request")
	}
	return response.Created(c, request)
}

// List handles GET /api/document-requests
func (h *DocumentRequestHandler) List(c echo.Context) error {
	actor := middleware.Actor(c)
	if actor == nil {
		return response.Unauthorized(c, "no acting user")
	}

	requests, err := h.requests.ListByRequester(c.Request().Context(), actor.ID)
	if err != nil {
		return response.InternalError(c, "failed to list document requests")
	}
	return response.Success(c, requests)
}

// Pay handles POST /api/document-requests/:id/pay
func (h *DocumentRequestHandler) Pay(c echo.Context) error {
	return h.transition(c, h.service.Pay, "failed to pay document request")
}

// Fulfill handles POST /api/document-requests/:id/fulfill
func (h *DocumentRequestHandler) Fulfill(c echo.Context) error {
	return h.transition(c, h.service.Fulfill, "failed to fulfill document request")
}

// Reject handles POST /api/document-requests/:id/reject
func (h *DocumentRequestHandler) Reject(c echo.Context) error {
	return h.transition(c, h.service.Reject, "failed to reject document request")
}

type transitionOp func(ctx context.Context, requestID uint, actor *models.User) (*models.DocumentRequest, error)

func (h *DocumentRequestHandler) transition(c echo.Context, op transitionOp, failMsg string) error {
	actor := middleware.Actor(c)
	if actor == nil {
		return response.Unauthorized(c, "no acting user")
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid document request ID")
	}

	request, err := op(c.Request().Context(), uint(id), actor)
	if err != nil {
		return h.fail(c, err, failMsg)
	}
	return response.Success(c, request)
}

func (h *DocumentRequestHandler) fail(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return response.NotFound(c, "document request not found")
	case errors.Is(err, apperrors.ErrForbidden):
		return response.Forbidden(c, "not allowed")
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return response.Error(c, apperrors.ErrInvalidTransition)
	default:
		if _, ok := apperrors.IsValidation(err); ok {
			return response.Error(c, err)
		}
		return response.InternalError(c, fallback)
	}
}
