package orders

import (
	"context"
	"log/slog"

	"github.com/settlement-reconciliation/internal/domain/order"
)

// ChainResolver asks the ticketing API first and falls back to the registry
// when the API is absent or failing. API answers are written back to the
// registry so later runs can resolve the order offline.
type ChainResolver struct {
	api      order.Resolver // may be nil when no API is configured
	fallback order.Resolver
	registry order.Registry
	logger   *slog.Logger
}

// NewChainResolver builds the layered resolver. api may be nil.
func NewChainResolver(logger *slog.Logger, api order.Resolver, fallback order.Resolver, registry order.Registry) *ChainResolver {
	return &ChainResolver{
		api:      api,
		fallback: fallback,
		registry: registry,
		logger:   logger,
	}
}

// Resolve returns the first non-nil answer. API errors degrade to the
// fallback instead of failing the lookup.
func (r *ChainResolver) Resolve(ctx context.Context, orderID string) (*order.Info, error) {
	if r.api != nil {
		info, err := r.api.Resolve(ctx, orderID)
		if err == nil && info != nil {
			r.writeBack(ctx, info)
			return info, nil
		}
		if err != nil {
			r.logger.Warn("Orders API lookup failed, falling back to registry",
				"order_id", orderID,
				"error", err)
		}
	}

	return r.fallback.Resolve(ctx, orderID)
}

func (r *ChainResolver) writeBack(ctx context.Context, info *order.Info) {
	if r.registry == nil {
		return
	}
	if err := r.registry.Upsert(ctx, info); err != nil {
		// The lookup already succeeded; a failed write-back only costs a
		// future API call.
		r.logger.Warn("Failed to write order back to registry",
			"order_id", info.OrderID,
			"error", err)
	}
}
