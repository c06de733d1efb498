package models

import (
	"time"
)

// Inbox is a user's receiving mailbox. UnreadCount is a derived, cached
// value; the source of truth is always the count of unread messages in
// this inbox, and a recount may overwrite it at any time.
type Inbox struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	UnreadCount int64     `gorm:"not null;default:0" json:"unread_count"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationships
	User     User      `gorm:"foreignKey:UserID" json:"-"`
	Messages []Message `gorm:"foreignKey:InboxID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Inbox
func (Inbox) TableName() string {
	return "inboxes"
}

// Outbox is a user's sending mailbox.
type Outbox struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationships
	User     User      `gorm:"foreignKey:UserID" json:"-"`
	Messages []Message `gorm:"foreignKey:OutboxID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Outbox
func (Outbox) TableName() string {
	return "outboxes"
}
