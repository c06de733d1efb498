package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caseline-io/caseline-backend/internal/models"
	"gorm.io/gorm"
)

// DocumentRequestRepository defines the interface for document request data access
type DocumentRequestRepository interface {
	Create(ctx context.Context, request *models.DocumentRequest) error
	GetByID(ctx context.Context, id uint) (*models.DocumentRequest, error)
	ListByRequester(ctx context.Context, requesterID uint) ([]models.DocumentRequest, error)
	UpdateStatus(ctx context.Context, id uint, from, to models.DocumentRequestStatus, paidAt *time.Time) (bool, error)
}

// documentRequestRepository implements DocumentRequestRepository using GORM
type documentRequestRepository struct {
	db *gorm.DB
}

// NewDocumentRequestRepository creates a new DocumentRequestRepository instance
func NewDocumentRequestRepository(db *gorm.DB) DocumentRequestRepository {
	return &documentRequestRepository{db: db}
}

// Create creates a new document request
func (r *documentRequestRepository) Create(ctx context.Context, request *models.DocumentRequest) error {
	result := r.db.WithContext(ctx).Create(request)
	if result.Error != nil {
		return fmt.Errorf("failed to create document request: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a document request by ID
func (r *documentRequestRepository) GetByID(ctx context.Context, id uint) (*models.DocumentRequest, error) {
	var request models.DocumentRequest
	result := r.db.WithContext(ctx).First(&request, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document request: %w", result.Error)
	}
	return &request, nil
}

// ListByRequester retrieves a requester's document requests, newest first
func (r *documentRequestRepository) ListByRequester(ctx context.Context, requesterID uint) ([]models.DocumentRequest, error) {
	var requests []models.DocumentRequest
	result := r.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("created_at DESC, id DESC").
		Find(&requests)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list document requests: %w", result.Error)
	}
	return requests, nil
}

// UpdateStatus performs a guarded status transition, pinning the expected
// current status in the WHERE clause. Returns false when the row was not
// in the expected state.
func (r *documentRequestRepository) UpdateStatus(ctx context.Context, id uint, from, to models.DocumentRequestStatus, paidAt *time.Time) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("status %s -> %s: %w", from, to, ErrInvalidInput)
	}

	updates := map[string]interface{}{"status": to}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}

	result := r.db.WithContext(ctx).Model(&models.DocumentRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update document request status: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
