package models

import (
	"time"
)

// Role classifies a user on the platform
type Role string

const (
	RoleRequester   Role = "requester"
	RoleSpecialist  Role = "specialist"
	RoleCoordinator Role = "coordinator"
)

// IsValid checks if the role is one of the known values
func (r Role) IsValid() bool {
	switch r {
	case RoleRequester, RoleSpecialist, RoleCoordinator:
		return true
	}
	return false
}

// User represents a platform user with exactly one role
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null;size:255" json:"name"`
	Email     string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Role      Role      `gorm:"not null;size:32;index" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationships - every user owns exactly one inbox and one outbox,
	// created in the same transaction as the user itself
	Inbox  *Inbox  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"inbox,omitempty"`
	Outbox *Outbox `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"outbox,omitempty"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}
