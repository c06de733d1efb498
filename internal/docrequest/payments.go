package docrequest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caseline-io/caseline-backend/internal/models"
)

// AcceptAllProcessor approves every charge. It is the development stand-in
// for a real gateway integration; production deployments supply their own
// PaymentProcessor.
type AcceptAllProcessor struct {
	logger *slog.Logger
}

// NewAcceptAllProcessor creates an AcceptAllProcessor
func NewAcceptAllProcessor(logger *slog.Logger) *AcceptAllProcessor {
	return &AcceptAllProcessor{logger: logger}
}

// Charge implements PaymentProcessor
func (p *AcceptAllProcessor) Charge(ctx context.Context, request *models.DocumentRequest) error {
	if request.AmountCents <= 0 {
		return fmt.Errorf("invalid charge amount: %d", request.AmountCents)
	}
	if p.logger != nil {
		p.logger.Info("charge accepted",
			slog.Uint64("request_id", uint64(request.ID)),
			slog.Int64("amount_cents", request.AmountCents))
	}
	return nil
}
