package orders

import (
	"context"
	"errors"
	"log/slog"

	"github.com/settlement-reconciliation/internal/domain/order"
)

// RegistryResolver answers from the persistent order registry.
type RegistryResolver struct {
	registry order.Registry
	logger   *slog.Logger
}

// NewRegistryResolver creates a resolver backed by the order registry.
func NewRegistryResolver(logger *slog.Logger, registry order.Registry) *RegistryResolver {
	return &RegistryResolver{
		registry: registry,
		logger:   logger,
	}
}

// Resolve looks the order up in the registry. A missing mapping yields
// (nil, nil) so the caller can route the line to review.
func (r *RegistryResolver) Resolve(ctx context.Context, orderID string) (*order.Info, error) {
	info, err := r.registry.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound{}) {
			return nil, nil
		}
		return nil, err
	}
	return info, nil
}
