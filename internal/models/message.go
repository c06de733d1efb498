package models

import (
	"time"
)

// MessageStatus is the delivery state of a message. Transitions are
// monotonic: sent -> delivered -> read, and read is terminal.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// IsValid checks if the status is one of the known values
func (s MessageStatus) IsValid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving to next is a legal forward
// transition. Same-state transitions are not allowed.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	switch s {
	case StatusSent:
		return next == StatusDelivered || next == StatusRead
	case StatusDelivered:
		return next == StatusRead
	}
	return false
}

// RoutingType records how a message was addressed. "auto" is a valid
// stored value but is never produced or consumed by the routing engine.
type RoutingType string

const (
	RoutingDirect RoutingType = "direct"
	RoutingReply  RoutingType = "reply"
	RoutingAuto   RoutingType = "auto"
)

// IsValid checks if the routing type is one of the known values
func (t RoutingType) IsValid() bool {
	switch t {
	case RoutingDirect, RoutingReply, RoutingAuto:
		return true
	}
	return false
}

// MaxBodyLength is the upper bound on message body length in runes.
const MaxBodyLength = 500

// Message is a routed message between two mailboxes. The outbox owner is
// the sender and the inbox owner is the recipient; both associations are
// fixed at creation. A nil ParentMessageID marks the root of its thread.
// Deleting a parent nullifies the link, so surviving children become new
// thread roots.
type Message struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	InboxID           uint          `gorm:"not null;index" json:"inbox_id"`
	OutboxID          uint          `gorm:"not null;index" json:"outbox_id"`
	Body              string        `gorm:"not null;size:500" json:"body"`
	Read              bool          `gorm:"not null;default:false" json:"read"`
	ReadAt            *time.Time    `json:"read_at,omitempty"`
	Status            MessageStatus `gorm:"not null;size:16;default:sent" json:"status"`
	RoutingType       RoutingType   `gorm:"not null;size:16;default:direct" json:"routing_type"`
	ParentMessageID   *uint         `gorm:"index" json:"parent_message_id,omitempty"`
	DocumentRequestID *uint         `json:"document_request_id,omitempty"`
	CreatedAt         time.Time     `gorm:"autoCreateTime;index" json:"created_at"`

	// Relationships
	Inbox   Inbox     `gorm:"foreignKey:InboxID" json:"-"`
	Outbox  Outbox    `gorm:"foreignKey:OutboxID" json:"-"`
	Parent  *Message  `gorm:"foreignKey:ParentMessageID;constraint:OnDelete:SET NULL" json:"-"`
	Replies []Message `gorm:"foreignKey:ParentMessageID" json:"-"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// IsRoot reports whether the message starts its thread
func (m *Message) IsRoot() bool {
	return m.ParentMessageID == nil
}

// Sender returns the outbox owner if the association is loaded
func (m *Message) Sender() *User {
	if m.Outbox.User.ID == 0 {
		return nil
	}
	return &m.Outbox.User
}

// Recipient returns the inbox owner if the association is loaded
func (m *Message) Recipient() *User {
	if m.Inbox.User.ID == 0 {
		return nil
	}
	return &m.Inbox.User
}

// MessageListItem is a lightweight projection for list views
type MessageListItem struct {
	ID              uint          `json:"id"`
	InboxID         uint          `json:"inbox_id"`
	OutboxID        uint          `json:"outbox_id"`
	Body            string        `json:"body"`
	Read            bool          `json:"read"`
	Status          MessageStatus `json:"status"`
	RoutingType     RoutingType   `json:"routing_type"`
	ParentMessageID *uint         `json:"parent_message_id,omitempty"`
	SenderName      string        `json:"sender_name"`
	SenderRole      Role          `json:"sender_role"`
	CreatedAt       time.Time     `json:"created_at"`
}
