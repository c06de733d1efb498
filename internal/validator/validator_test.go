package validator

import (
	"strings"
	"testing"

	"github.com/caseline-io/caseline-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestValidateBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"valid body", "hello there", nil},
		{"single character", "a", nil},
		{"exactly max length", strings.Repeat("a", models.MaxBodyLength), nil},
		{"empty", "", ErrEmptyInput},
		{"whitespace only", "   \t\n", ErrEmptyInput},
		{"one over max", strings.Repeat("a", models.MaxBodyLength+1), ErrInputTooLong},
		{"max multibyte runes ok", strings.Repeat("ü", models.MaxBodyLength), nil},
		{"multibyte over max", strings.Repeat("ü", models.MaxBodyLength+1), ErrInputTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBody(tt.body)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr error
	}{
		{"valid email", "user@example.com", nil},
		{"uppercase normalized", "USER@EXAMPLE.COM", nil},
		{"empty", "", ErrEmptyInput},
		{"missing at sign", "userexample.com", ErrInvalidEmail},
		{"missing domain", "user@", ErrInvalidEmail},
		{"too long", strings.Repeat("a", 250) + "@example.com", ErrInputTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRole(t *testing.T) {
	assert.NoError(t, ValidateRole("requester"))
	assert.NoError(t, ValidateRole("specialist"))
	assert.NoError(t, ValidateRole("coordinator"))
	assert.ErrorIs(t, ValidateRole(""), ErrEmptyInput)
	assert.ErrorIs(t, ValidateRole("admin"), ErrInvalidRole)
	assert.ErrorIs(t, ValidateRole("Requester"), ErrInvalidRole)
}

func TestValidateRoutingType(t *testing.T) {
	// Empty means "infer from the parent link"
	assert.NoError(t, ValidateRoutingType(""))
	assert.NoError(t, ValidateRoutingType("direct"))
	assert.NoError(t, ValidateRoutingType("reply"))
	assert.NoError(t, ValidateRoutingType("auto"))
	assert.ErrorIs(t, ValidateRoutingType("broadcast"), ErrInvalidRouting)
}

func TestValidateAmountCents(t *testing.T) {
	assert.NoError(t, ValidateAmountCents(1))
	assert.NoError(t, ValidateAmountCents(150_00))
	assert.ErrorIs(t, ValidateAmountCents(0), ErrNonPositiveCents)
	assert.ErrorIs(t, ValidateAmountCents(-5), ErrNonPositiveCents)
}
