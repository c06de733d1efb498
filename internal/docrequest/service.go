// Package docrequest implements the paid document request workflow. The
// payment provider is an opaque capability that either succeeds or fails;
// status changes flow back to users as normal routed messages.
package docrequest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/caseline-io/caseline-backend/internal/errors"
	"github.com/caseline-io/caseline-backend/internal/logger"
	"github.com/caseline-io/caseline-backend/internal/messaging"
	"github.com/caseline-io/caseline-backend/internal/models"
	"github.com/caseline-io/caseline-backend/internal/repository"
	"github.com/caseline-io/caseline-backend/internal/validator"
)

// PaymentProcessor charges a document request. Implementations talk to the
// external provider; the workflow only cares whether the charge succeeded.
type PaymentProcessor interface {
	Charge(ctx context.Context, request *models.DocumentRequest) error
}

// Service drives the document request lifecycle
type Service struct {
	requests  repository.DocumentRequestRepository
	users     repository.UserRepository
	messenger *messaging.Service
	payments  PaymentProcessor
	audit     *logger.AuditLogger
	logger    *slog.Logger
}

// NewService creates a docrequest Service
func NewService(requests repository.DocumentRequestRepository, users repository.UserRepository, messenger *messaging.Service, payments PaymentProcessor, audit *logger.AuditLogger, log *slog.Logger) *Service {
	return &Service{
		requests:  requests,
		users:     users,
		messenger: messenger,
		payments:  payments,
		audit:     audit,
		logger:    log,
	}
}

// Create opens a pending request from a requester toward a specialist
func (s *Service) Create(ctx context.Context, requester *models.User, specialistID uint, title string, amountCents int64) (*models.DocumentRequest, error) {
	if requester.Role != models.RoleRequester {
		return nil, apperrors.ErrForbidden
	}
	if err := validator.ValidateAmountCents(amountCents); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if title == "" {
		return nil, apperrors.NewValidationError("title cannot be empty")
	}

	specialist, err := s.users.GetByID(ctx, specialistID)
	if err != nil {
		return nil, err
	}
	if specialist.Role != models.RoleSpecialist {
		return nil, apperrors.NewValidationError("document requests can only target specialists")
	}

	request := &models.DocumentRequest{
		RequesterID:  requester.ID,
		SpecialistID: specialistID,
		Title:        title,
		AmountCents:  amountCents,
		Status:       models.DocumentRequestPending,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

// Pay charges a pending request. On success the request flips to paid and
// a notification message is sent through the normal routing path, carrying
// the request as its opaque association.
func (s *Service) Pay(ctx context.Context, requestID uint, payer *models.User) (*models.DocumentRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != payer.ID {
		return nil, apperrors.ErrForbidden
	}
	if !request.Status.CanTransitionTo(models.DocumentRequestPaid) {
		return nil, apperrors.ErrInvalidTransition
	}

	if err := s.payments.Charge(ctx, request); err != nil {
		if s.audit != nil {
			s.audit.PaymentOutcome(request.ID, false)
		}
		return nil, fmt.Errorf("payment failed: %w", err)
	}
	if s.audit != nil {
		s.audit.PaymentOutcome(request.ID, true)
	}

	now := time.Now()
	changed, err := s.requests.UpdateStatus(ctx, request.ID, models.DocumentRequestPending, models.DocumentRequestPaid, &now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, apperrors.ErrInvalidTransition
	}
	request.Status = models.DocumentRequestPaid
	request.PaidAt = &now

	s.notify(ctx, payer, request, fmt.Sprintf("Document request %q has been paid.", request.Title))
	return request, nil
}

// Fulfill completes a paid request
func (s *Service) Fulfill(ctx context.Context, requestID uint, specialist *models.User) (*models.DocumentRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.SpecialistID != specialist.ID {
		return nil, apperrors.ErrForbidden
	}

	changed, err := s.requests.UpdateStatus(ctx, request.ID, models.DocumentRequestPaid, models.DocumentRequestFulfilled, nil)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, apperrors.ErrInvalidTransition
	}
	request.Status = models.DocumentRequestFulfilled

	s.notify(ctx, specialist, request, fmt.Sprintf("Document request %q has been fulfilled.", request.Title))
	return request, nil
}

// Reject declines a pending request
func (s *Service) Reject(ctx context.Context, requestID uint, specialist *models.User) (*models.DocumentRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.SpecialistID != specialist.ID {
		return nil, apperrors.ErrForbidden
	}

	changed, err := s.requests.UpdateStatus(ctx, request.ID, models.DocumentRequestPending, models.DocumentRequestRejected, nil)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, apperrors.ErrInvalidTransition
	}
	request.Status = models.DocumentRequestRejected

	s.notify(ctx, specialist, request, fmt.Sprintf("Document request %q has been rejected.", request.Title))
	return request, nil
}

// notify sends a status message through the normal routing/counter path.
// A notification that cannot be routed is logged and dropped; the status
// change itself already committed.
func (s *Service) notify(ctx context.Context, sender *models.User, request *models.DocumentRequest, body string) {
	if s.messenger == nil {
		return
	}
	requestID := request.ID
	_, err := s.messenger.Send(ctx, messaging.SendParams{
		Body:              body,
		DocumentRequestID: &requestID,
	}, sender)
	if err != nil && s.logger != nil {
		s.logger.Warn("document request notification not sent",
			slog.Uint64("request_id", uint64(request.ID)),
			slog.Any("error", err))
	}
}
