package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    MessageStatus
		to      MessageStatus
		allowed bool
	}{
		{"sent to delivered", StatusSent, StatusDelivered, true},
		{"sent to read", StatusSent, StatusRead, true},
		{"delivered to read", StatusDelivered, StatusRead, true},
		{"read is terminal", StatusRead, StatusDelivered, false},
		{"read to sent", StatusRead, StatusSent, false},
		{"delivered back to sent", StatusDelivered, StatusSent, false},
		{"sent to sent", StatusSent, StatusSent, false},
		{"read to read", StatusRead, StatusRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestRoutingType_IsValid(t *testing.T) {
	assert.True(t, RoutingDirect.IsValid())
	assert.True(t, RoutingReply.IsValid())
	assert.True(t, RoutingAuto.IsValid())
	assert.False(t, RoutingType("broadcast").IsValid())
}

func TestRole_IsValid(t *testing.T) {
	assert.True(t, RoleRequester.IsValid())
	assert.True(t, RoleSpecialist.IsValid())
	assert.True(t, RoleCoordinator.IsValid())
	assert.False(t, Role("admin").IsValid())
}

func TestMessage_IsRoot(t *testing.T) {
	root := &Message{}
	assert.True(t, root.IsRoot())

	parentID := uint(7)
	reply := &Message{ParentMessageID: &parentID}
	assert.False(t, reply.IsRoot())
}

func TestDocumentRequestStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, DocumentRequestPending.CanTransitionTo(DocumentRequestPaid))
	assert.True(t, DocumentRequestPending.CanTransitionTo(DocumentRequestRejected))
	assert.True(t, DocumentRequestPaid.CanTransitionTo(DocumentRequestFulfilled))
	assert.False(t, DocumentRequestPaid.CanTransitionTo(DocumentRequestPending))
	assert.False(t, DocumentRequestFulfilled.CanTransitionTo(DocumentRequestPaid))
	assert.False(t, DocumentRequestRejected.CanTransitionTo(DocumentRequestPaid))
}
