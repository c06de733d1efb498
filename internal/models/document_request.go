package models

import (
	"time"
)

// DocumentRequestStatus is the lifecycle state of a paid document request.
// Transitions only move forward: pending -> paid or rejected, paid -> fulfilled.
type DocumentRequestStatus string

const (
	DocumentRequestPending   DocumentRequestStatus = "pending"
	DocumentRequestPaid      DocumentRequestStatus = "paid"
	DocumentRequestFulfilled DocumentRequestStatus = "fulfilled"
	DocumentRequestRejected  DocumentRequestStatus = "rejected"
)

// IsValid checks if the status is one of the known values
func (s DocumentRequestStatus) IsValid() bool {
	switch s {
	case DocumentRequestPending, DocumentRequestPaid, DocumentRequestFulfilled, DocumentRequestRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving to next is a legal forward transition
func (s DocumentRequestStatus) CanTransitionTo(next DocumentRequestStatus) bool {
	switch s {
	case DocumentRequestPending:
		return next == DocumentRequestPaid || next == DocumentRequestRejected
	case DocumentRequestPaid:
		return next == DocumentRequestFulfilled
	}
	return false
}

// DocumentRequest is a paid request from a requester toward a specialist.
// Messages may carry an opaque reference to one; the messaging core treats
// that reference as a foreign attribute and nothing more.
type DocumentRequest struct {
	ID           uint                  `gorm:"primaryKey" json:"id"`
	RequesterID  uint                  `gorm:"not null;index" json:"requester_id"`
	SpecialistID uint                  `gorm:"not null;index" json:"specialist_id"`
	Title        string                `gorm:"not null;size:255" json:"title"`
	AmountCents  int64                 `gorm:"not null" json:"amount_cents"`
	Status       DocumentRequestStatus `gorm:"not null;size:16;default:pending" json:"status"`
	CreatedAt    time.Time             `gorm:"autoCreateTime" json:"created_at"`
	PaidAt       *time.Time            `json:"paid_at,omitempty"`

	// Relationships
	Requester  User `gorm:"foreignKey:RequesterID" json:"-"`
	Specialist User `gorm:"foreignKey:SpecialistID" json:"-"`
}

// TableName returns the table name for DocumentRequest
func (DocumentRequest) TableName() string {
	return "document_requests"
}
