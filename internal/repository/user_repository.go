package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/caseline-io/caseline-backend/internal/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	FirstByRole(ctx context.Context, role models.Role) (*models.User, error)
	Delete(ctx context.Context, id uint) error
}

// userRepository implements UserRepository using GORM
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a user together with its inbox and outbox in one
// transaction, so a user never exists without both mailboxes.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if !user.Role.IsValid() {
		return fmt.Errorf("role %q: %w", user.Role, ErrInvalidInput)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("user with email '%s' already exists: %w", user.Email, ErrDuplicateEntry)
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		inbox := &models.Inbox{UserID: user.ID}
		if err := tx.Create(inbox).Error; err != nil {
			return fmt.Errorf("failed to create inbox: %w", err)
		}

		outbox := &models.Outbox{UserID: user.ID}
		if err := tx.Create(outbox).Error; err != nil {
			return fmt.Errorf("failed to create outbox: %w", err)
		}

		user.Inbox = inbox
		user.Outbox = outbox
		return nil
	})
}

// GetByID retrieves a user by its ID with both mailboxes preloaded
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Preload("Inbox").Preload("Outbox").First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", result.Error)
	}
	return &user, nil
}

// GetByEmail retrieves a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Preload("Inbox").Preload("Outbox").Where("email = ?", email).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", result.Error)
	}
	return &user, nil
}

// FirstByRole returns the first user carrying the given role, ordered by ID
// for a stable answer. Returns ErrNotFound when no user has the role.
func (r *userRepository) FirstByRole(ctx context.Context, role models.Role) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).
		Preload("Inbox").Preload("Outbox").
		Where("role = ?", role).
		Order("id ASC").
		First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by role: %w", result.Error)
	}
	return &user, nil
}

// Delete deletes a user by ID (cascade deletes mailboxes and their messages)
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.User{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
