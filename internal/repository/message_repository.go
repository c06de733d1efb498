package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caseline-io/caseline-backend/internal/models"
	"gorm.io/gorm"
)

// MessageQuery is the narrow query surface exposed for thread display and
// analytics. Filters cover the operations actually used by callers; there
// is no open-ended query passthrough.
type MessageQuery interface {
	ListByInbox(ctx context.Context, inboxID uint, limit, offset int) ([]models.MessageListItem, int64, error)
	ListByOutbox(ctx context.Context, outboxID uint, limit, offset int) ([]models.MessageListItem, int64, error)
	ListByStatus(ctx context.Context, inboxID uint, status models.MessageStatus) ([]models.Message, error)
	ListByRoutingType(ctx context.Context, inboxID uint, routingType models.RoutingType) ([]models.Message, error)
	ListRecent(ctx context.Context, inboxID uint, since time.Time) ([]models.Message, error)
}

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	MessageQuery

	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	GetManyWithParticipants(ctx context.Context, ids []uint) ([]models.Message, error)
	ListChildren(ctx context.Context, parentIDs []uint) ([]models.Message, error)
	UpdateStatus(ctx context.Context, id uint, from, to models.MessageStatus) (bool, error)
	MarkRead(ctx context.Context, id uint, readAt time.Time) (bool, error)
	BatchMarkRead(ctx context.Context, ids []uint, inboxID *uint, readAt time.Time) ([]models.Message, error)
	MarkAllRead(ctx context.Context, inboxID uint, readAt time.Time) (int64, error)
	CountUnread(ctx context.Context, inboxID uint) (int64, error)
	Delete(ctx context.Context, id uint) error
}

// messageRepository implements MessageRepository using GORM
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository instance
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create creates a new message
func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	result := r.db.WithContext(ctx).Create(message)
	if result.Error != nil {
		return fmt.Errorf("failed to create message: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a message with sender and recipient users preloaded
func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	result := r.db.WithContext(ctx).
		Preload("Inbox.User").
		Preload("Outbox.User").
		First(&message, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message by ID: %w", result.Error)
	}
	return &message, nil
}

// GetManyWithParticipants loads a set of messages with sender and recipient
// users, ordered by creation time ascending. Callers that present newest
// first reverse the slice themselves.
func (r *messageRepository) GetManyWithParticipants(ctx context.Context, ids []uint) ([]models.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var messages []models.Message
	result := r.db.WithContext(ctx).
		Preload("Inbox.User").
		Preload("Outbox.User").
		Where("id IN ?", ids).
		Order("created_at ASC, id ASC").
		Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load messages: %w", result.Error)
	}
	return messages, nil
}

// ListChildren returns all messages whose parent is in the given set
func (r *messageRepository) ListChildren(ctx context.Context, parentIDs []uint) ([]models.Message, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var messages []models.Message
	result := r.db.WithContext(ctx).
		Where("parent_message_id IN ?", parentIDs).
		Order("created_at ASC, id ASC").
		Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list child messages: %w", result.Error)
	}
	return messages, nil
}

// ListByInbox retrieves messages for an inbox with pagination, newest first
func (r *messageRepository) ListByInbox(ctx context.Context, inboxID uint, limit, offset int) ([]models.MessageListItem, int64, error) {
	return r.listByMailbox(ctx, "m.inbox_id", inboxID, limit, offset)
}

// ListByOutbox retrieves messages sent from an outbox with pagination, newest first
func (r *messageRepository) ListByOutbox(ctx context.Context, outboxID uint, limit, offset int) ([]models.MessageListItem, int64, error) {
	return r.listByMailbox(ctx, "m.outbox_id", outboxID, limit, offset)
}

func (r *messageRepository) listByMailbox(ctx context.Context, column string, mailboxID uint, limit, offset int) ([]models.MessageListItem, int64, error) {
	var total int64
	countColumn := column[len("m."):]
	if err := r.db.WithContext(ctx).Model(&models.Message{}).Where(countColumn+" = ?", mailboxID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	var results []models.MessageListItem

	query := `
		SELECT
			m.id,
			m.inbox_id,
			m.outbox_id,
			m.body,
			m.read,
			m.status,
			m.routing_type,
			m.parent_message_id,
			u.name AS sender_name,
			u.role AS sender_role,
			m.created_at
		FROM messages m
		JOIN outboxes o ON o.id = m.outbox_id
		JOIN users u ON u.id = o.user_id
		WHERE ` + column + ` = ?
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ? OFFSET ?
	`

	if err := r.db.WithContext(ctx).Raw(query, mailboxID, limit, offset).Scan(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}

	return results, total, nil
}

// ListByStatus returns an inbox's messages in a given delivery status
func (r *messageRepository) ListByStatus(ctx context.Context, inboxID uint, status models.MessageStatus) ([]models.Message, error) {
	var messages []models.Message
	result := r.db.WithContext(ctx).
		Where("inbox_id = ? AND status = ?", inboxID, status).
		Order("created_at ASC, id ASC").
		Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list messages by status: %w", result.Error)
	}
	return messages, nil
}

// ListByRoutingType returns an inbox's messages with a given routing type
func (r *messageRepository) ListByRoutingType(ctx context.Context, inboxID uint, routingType models.RoutingType) ([]models.Message, error) {
	var messages []models.Message
	result := r.db.WithContext(ctx).
		Where("inbox_id = ? AND routing_type = ?", inboxID, routingType).
		Order("created_at ASC, id ASC").
		Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list messages by routing type: %w", result.Error)
	}
	return messages, nil
}

// ListRecent returns an inbox's messages created at or after the given time
func (r *messageRepository) ListRecent(ctx context.Context, inboxID uint, since time.Time) ([]models.Message, error) {
	var messages []models.Message
	result := r.db.WithContext(ctx).
		Where("inbox_id = ? AND created_at >= ?", inboxID, since).
		Order("created_at ASC, id ASC").
		Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list recent messages: %w", result.Error)
	}
	return messages, nil
}

// UpdateStatus performs a guarded status transition. The WHERE clause pins
// the expected current status so concurrent transitions cannot go backwards.
// Returns false when the row was not in the expected state.
func (r *messageRepository) UpdateStatus(ctx context.Context, id uint, from, to models.MessageStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("status %s -> %s: %w", from, to, ErrInvalidInput)
	}
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update status: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkRead atomically sets read, status and read_at together, guarded on
// read = false so re-marking an already read message changes nothing.
// Returns whether the row actually flipped.
func (r *messageRepository) MarkRead(ctx context.Context, id uint, readAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND read = ?", id, false).
		Updates(map[string]interface{}{
			"read":    true,
			"status":  models.StatusRead,
			"read_at": readAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark message as read: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// BatchMarkRead marks a set of messages read in one UPDATE, skipping
// messages already read and optionally scoping to one inbox. Returns the
// messages that were actually flipped, loaded after the update.
func (r *messageRepository) BatchMarkRead(ctx context.Context, ids []uint, inboxID *uint, readAt time.Time) ([]models.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var affected []models.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Pin the affected set first so the reload cannot pick up rows
		// read by someone else between the update and the select.
		var candidateIDs []uint
		q := tx.Model(&models.Message{}).Where("id IN ? AND read = ?", ids, false)
		if inboxID != nil {
			q = q.Where("inbox_id = ?", *inboxID)
		}
		if err := q.Pluck("id", &candidateIDs).Error; err != nil {
			return fmt.Errorf("failed to select unread messages: %w", err)
		}
		if len(candidateIDs) == 0 {
			return nil
		}

		result := tx.Model(&models.Message{}).
			Where("id IN ?", candidateIDs).
			Updates(map[string]interface{}{
				"read":    true,
				"status":  models.StatusRead,
				"read_at": readAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to batch mark read: %w", result.Error)
		}

		if err := tx.Where("id IN ?", candidateIDs).Order("created_at ASC, id ASC").Find(&affected).Error; err != nil {
			return fmt.Errorf("failed to reload updated messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}

// MarkAllRead marks every unread message in an inbox read with one UPDATE.
// Returns the number of rows changed; the caller recalculates the counter
// once afterwards instead of decrementing per message.
func (r *messageRepository) MarkAllRead(ctx context.Context, inboxID uint, readAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("inbox_id = ? AND read = ?", inboxID, false).
		Updates(map[string]interface{}{
			"read":    true,
			"status":  models.StatusRead,
			"read_at": readAt,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark all read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountUnread counts unread messages for an inbox. This is the ground
// truth the cached counter is reconciled against.
func (r *messageRepository) CountUnread(ctx context.Context, inboxID uint) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("inbox_id = ? AND read = ?", inboxID, false).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", result.Error)
	}
	return count, nil
}

// Delete deletes a message by ID. Children survive with their parent link
// cleared and become new thread roots.
func (r *messageRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Message{}).
			Where("parent_message_id = ?", id).
			Update("parent_message_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach child messages: %w", err)
		}

		result := tx.Delete(&models.Message{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete message: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return err
}
