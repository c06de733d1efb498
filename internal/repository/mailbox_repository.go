package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/caseline-io/caseline-backend/internal/models"
	"gorm.io/gorm"
)

// MailboxRepository defines the interface for inbox and outbox data access.
// Counter mutations are atomic SQL deltas, never read-modify-write in
// application code, so concurrent senders cannot lose updates.
type MailboxRepository interface {
	GetInbox(ctx context.Context, id uint) (*models.Inbox, error)
	GetInboxByUser(ctx context.Context, userID uint) (*models.Inbox, error)
	GetOutboxByUser(ctx context.Context, userID uint) (*models.Outbox, error)
	AdjustUnread(ctx context.Context, inboxID uint, delta int64) (int64, error)
	SetUnread(ctx context.Context, inboxID uint, count int64) (int64, error)
}

// mailboxRepository implements MailboxRepository using GORM
type mailboxRepository struct {
	db *gorm.DB
}

// NewMailboxRepository creates a new MailboxRepository instance
func NewMailboxRepository(db *gorm.DB) MailboxRepository {
	return &mailboxRepository{db: db}
}

// GetInbox retrieves an inbox by its ID
func (r *mailboxRepository) GetInbox(ctx context.Context, id uint) (*models.Inbox, error) {
	var inbox models.Inbox
	result := r.db.WithContext(ctx).First(&inbox, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get inbox by ID: %w", result.Error)
	}
	return &inbox, nil
}

// GetInboxByUser retrieves the inbox owned by a user
func (r *mailboxRepository) GetInboxByUser(ctx context.Context, userID uint) (*models.Inbox, error) {
	var inbox models.Inbox
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&inbox)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get inbox by user: %w", result.Error)
	}
	return &inbox, nil
}

// GetOutboxByUser retrieves the outbox owned by a user
func (r *mailboxRepository) GetOutboxByUser(ctx context.Context, userID uint) (*models.Outbox, error) {
	var outbox models.Outbox
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&outbox)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get outbox by user: %w", result.Error)
	}
	return &outbox, nil
}

// AdjustUnread applies an atomic delta to the persisted unread count,
// clamped at zero inside the UPDATE itself. Returns the new value.
func (r *mailboxRepository) AdjustUnread(ctx context.Context, inboxID uint, delta int64) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Inbox{}).
		Where("id = ?", inboxID).
		Update("unread_count", gorm.Expr(
			"CASE WHEN unread_count + ? < 0 THEN 0 ELSE unread_count + ? END", delta, delta))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to adjust unread count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, ErrNotFound
	}

	inbox, err := r.GetInbox(ctx, inboxID)
	if err != nil {
		return 0, err
	}
	return inbox.UnreadCount, nil
}

// SetUnread overwrites the persisted unread count, flooring at zero.
// Returns the stored value.
func (r *mailboxRepository) SetUnread(ctx context.Context, inboxID uint, count int64) (int64, error) {
	if count < 0 {
		count = 0
	}
	result := r.db.WithContext(ctx).Model(&models.Inbox{}).
		Where("id = ?", inboxID).
		Update("unread_count", count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to set unread count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return count, nil
}
