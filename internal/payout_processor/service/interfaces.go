package service

import (
	"context"

	"github.com/settlement-reconciliation/internal/domain/shared"
)

// ApplierService defines the interface for applying payout requests.
type ApplierService interface {
	ApplyPayout(ctx context.Context, request *shared.PayoutRequest) error
}
