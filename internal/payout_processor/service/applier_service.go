package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/settlement-reconciliation/internal/domain/payout"
	"github.com/settlement-reconciliation/internal/domain/settlement"
	"github.com/settlement-reconciliation/internal/domain/shared"
)

type ApplierServiceImpl struct {
	batches     payout.Repository
	recons      settlement.ReconciliationRepository
	settlements settlement.Repository
	logger      *slog.Logger
}

func NewApplierService(
	logger *slog.Logger,
	batches payout.Repository,
	recons settlement.ReconciliationRepository,
	settlements settlement.Repository,
) ApplierService {
	return &ApplierServiceImpl{
		batches:     batches,
		recons:      recons,
		settlements: settlements,
		logger:      logger,
	}
}

// ApplyPayout marks the batch's reconciled rows as paid and rolls the touched
// settlements forward. Safe to replay: the paid transition is status guarded,
// so rows already claimed by the batch are not modified twice.
func (s *ApplierServiceImpl) ApplyPayout(ctx context.Context, request *shared.PayoutRequest) error {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Applying payout batch",
		"batch_id", request.BatchID.String(),
		"organizer_id", request.OrganizerID,
		"rows", len(request.ReconciliationIDs),
	)

	// 1. Validate the request
	if err := request.Validate(); err != nil {
		logger.Error("Payout request validation failed", "batch_id", request.BatchID.String(), "error", err)
		if markErr := s.batches.UpdateStatus(ctx, request.BatchID, payout.BatchStatusFailed, nil); markErr != nil {
			logger.Error("Failed to mark payout batch failed", "batch_id", request.BatchID.String(), "error", markErr)
		}
		return nil // Return nil to Kafka consumer to acknowledge the message
	}

	// 2. Load the batch
	batch, err := s.batches.GetByID(ctx, request.BatchID)
	if err != nil {
		if errors.Is(err, payout.ErrBatchNotFound{ID: request.BatchID}) {
			// The gateway persists the batch before publishing, so a missing
			// batch is a replication lag symptom worth retrying.
			logger.Error("Payout batch not found", "batch_id", request.BatchID.String())
		}
		return fmt.Errorf("failed to load payout batch %s: %w", request.BatchID.String(), err)
	}
	if batch.Status == payout.BatchStatusApplied {
		logger.Info("Payout batch already applied, skipping", "batch_id", batch.ID.String())
		return nil // Already processed, return success
	}

	// 3. Mark the reconciled rows as paid
	now := time.Now()
	modified, err := s.recons.MarkPaid(ctx, request.ReconciliationIDs, batch.ID, now)
	if err != nil {
		return fmt.Errorf("failed to mark rows paid for batch %s: %w", batch.ID.String(), err)
	}
	if modified < int64(len(request.ReconciliationIDs)) {
		// A replayed message finds some rows already paid; only a partial
		// first delivery leaves this log as the trail.
		logger.Warn("Some rows were not transitioned to paid",
			"batch_id", batch.ID.String(),
			"requested", len(request.ReconciliationIDs),
			"modified", modified,
		)
	}

	// 4. Roll the touched settlements forward
	for _, settlementID := range batch.SettlementIDs {
		if err := s.rollSettlementStatus(ctx, logger, settlementID); err != nil {
			return err
		}
	}

	// 5. Close the batch
	if err := s.batches.UpdateStatus(ctx, batch.ID, payout.BatchStatusApplied, &now); err != nil {
		return fmt.Errorf("failed to mark batch %s applied: %w", batch.ID.String(), err)
	}

	logger.Info("Payout batch applied",
		"batch_id", batch.ID.String(),
		"organizer_id", batch.OrganizerID,
		"rows_paid", modified,
	)
	return nil
}

// rollSettlementStatus moves a settlement to PAID when every row is paid,
// PARTIAL otherwise.
func (s *ApplierServiceImpl) rollSettlementStatus(ctx context.Context, logger *slog.Logger, settlementID uuid.UUID) error {
	rows, err := s.recons.GetBySettlementID(ctx, settlementID)
	if err != nil {
		return fmt.Errorf("failed to load rows for settlement %s: %w", settlementID.String(), err)
	}

	paid := 0
	for _, row := range rows {
		if row.Status == shared.ReconStatusPaid {
			paid++
		}
	}

	status := shared.SettlementStatusPartial
	if paid == len(rows) && len(rows) > 0 {
		status = shared.SettlementStatusPaid
	}
	if err := s.settlements.UpdateStatus(ctx, settlementID, status); err != nil {
		return fmt.Errorf("failed to update settlement %s status: %w", settlementID.String(), err)
	}

	logger.Info("Settlement status rolled forward",
		"settlement_id", settlementID.String(),
		"status", string(status),
		"paid_rows", paid,
		"total_rows", len(rows),
	)
	return nil
}
