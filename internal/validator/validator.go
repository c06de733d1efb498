// Package validator provides input validation for the messaging core.
package validator

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/caseline-io/caseline-backend/internal/models"
)

// Validation errors
var (
	ErrEmptyInput       = errors.New("input cannot be empty")
	ErrInputTooLong     = errors.New("input exceeds maximum length")
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidRouting   = errors.New("invalid routing type")
	ErrNonPositiveCents = errors.New("amount must be positive")
)

// ValidateBody checks a message body against the 1-500 character contract.
func ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyInput
	}
	if utf8.RuneCountInString(body) > models.MaxBodyLength {
		return fmt.Errorf("body longer than %d characters: %w", models.MaxBodyLength, ErrInputTooLong)
	}
	return nil
}

// ValidateEmail validates email address format.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ErrEmptyInput
	}
	if utf8.RuneCountInString(email) > 254 {
		return ErrInputTooLong
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateRole checks a role string against the known roles.
func ValidateRole(role string) error {
	if role == "" {
		return ErrEmptyInput
	}
	if !models.Role(role).IsValid() {
		return fmt.Errorf("role %q: %w", role, ErrInvalidRole)
	}
	return nil
}

// ValidateRoutingType checks a routing type string. Empty is allowed; the
// lifecycle coordinator infers the type from the parent link.
func ValidateRoutingType(routingType string) error {
	if routingType == "" {
		return nil
	}
	if !models.RoutingType(routingType).IsValid() {
		return fmt.Errorf("routing type %q: %w", routingType, ErrInvalidRouting)
	}
	return nil
}

// ValidateAmountCents checks a document request amount.
func ValidateAmountCents(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveCents
	}
	return nil
}
