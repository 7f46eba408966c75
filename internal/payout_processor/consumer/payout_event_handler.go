package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/settlement-reconciliation/internal/domain/shared"
	"github.com/settlement-reconciliation/internal/payout_processor/service"
	"github.com/settlement-reconciliation/internal/platform/messaging/producers"
)

// PayoutEventHandler handles incoming payout request messages from Kafka
type PayoutEventHandler struct {
	applierService service.ApplierService
	producer       producers.DeadLetterPublisher
	logger         *slog.Logger
}

// NewPayoutEventHandler creates a new handler
func NewPayoutEventHandler(
	logger *slog.Logger,
	applierService service.ApplierService,
	producer producers.DeadLetterPublisher,
) *PayoutEventHandler {
	return &PayoutEventHandler{
		applierService: applierService,
		producer:       producer,
		logger:         logger,
	}
}

// HandleMessage processes Kafka messages
func (h *PayoutEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request shared.PayoutRequest
	if err := json.Unmarshal(value, &request); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal payout request from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		// Send to DLQ if available
		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
				// Return original error if DLQ fails
			} else {
				h.logger.Info("Successfully published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	// Add correlation ID to logger
	logger := h.logger
	if request.CorrelationID != "" {
		logger = h.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Received payout request for processing",
		"batch_id", request.BatchID.String(),
		"organizer_id", request.OrganizerID,
		"total_cents", request.TotalCents,
		"rows", len(request.ReconciliationIDs),
	)

	if err := h.applierService.ApplyPayout(ctx, &request); err != nil {
		logger.Error("Failed to apply payout batch",
			"batch_id", request.BatchID.String(),
			"organizer_id", request.OrganizerID,
			"error", err,
		)
		return fmt.Errorf("applying payout batch %s failed: %w", request.BatchID.String(), err)
	}

	logger.Info("Successfully applied payout batch", "batch_id", request.BatchID.String())
	return nil // Success, commit offset
}
