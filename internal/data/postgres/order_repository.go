// Package postgres provides PostgreSQL implementations of the domain repositories.
// It holds the durable order-to-organizer registry that backs organizer
// attribution when the live ticketing API cannot answer.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/settlement-reconciliation/internal/domain/order"
	"github.com/settlement-reconciliation/internal/platform/persistence"
)

// OrderRepository implements the order.Registry interface for PostgreSQL
type OrderRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewOrderRepository creates a new PostgreSQL order registry.
// It expects db.Pool() to satisfy persistence.Querier.
func NewOrderRepository(logger *slog.Logger, db *persistence.PostgresDB) order.Registry {
	return &OrderRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the registry with a transaction, allowing for atomic operations
// across multiple registry calls.
func (r *OrderRepository) WithTx(tx pgx.Tx) order.Registry {
	return &OrderRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetByOrderID retrieves the organizer attribution for an order.
// Returns ErrOrderNotFound when the registry has no mapping.
func (r *OrderRepository) GetByOrderID(ctx context.Context, orderID string) (*order.Info, error) {
	query := `
		SELECT order_id, organizer_id, organizer_name, event_id
		FROM orders
		WHERE order_id = $1
	`

	var info order.Info
	err := r.querier.QueryRow(ctx, query, orderID).Scan(
		&info.OrderID,
		&info.OrganizerID,
		&info.OrganizerName,
		&info.EventID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound{OrderID: orderID}
		}
		r.logger.Error("Failed to get order", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &info, nil
}

// Upsert stores or refreshes the organizer attribution for an order. Answers
// fetched from the ticketing API are written back here so later runs can
// resolve the order offline.
func (r *OrderRepository) Upsert(ctx context.Context, info *order.Info) error {
	query := `
		INSERT INTO orders (order_id, organizer_id, organizer_name, event_id, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (order_id)
		DO UPDATE SET organizer_id = $2, organizer_name = $3, event_id = $4, updated_at = NOW()
	`

	_, err := r.querier.Exec(ctx, query,
		info.OrderID,
		info.OrganizerID,
		info.OrganizerName,
		info.EventID,
	)
	if err != nil {
		r.logger.Error("Failed to upsert order", "order_id", info.OrderID, "error", err)
		return fmt.Errorf("failed to upsert order: %w", err)
	}

	return nil
}
