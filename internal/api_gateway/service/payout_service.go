package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/settlement-reconciliation/internal/domain/payout"
	"github.com/settlement-reconciliation/internal/domain/settlement"
	"github.com/settlement-reconciliation/internal/domain/shared"
	"github.com/settlement-reconciliation/internal/platform/messaging/producers"
)

const fallbackOrganizerName = "Organizador sin definir"

// PayoutServiceImpl implements the PayoutService interface
type PayoutServiceImpl struct {
	batches     payout.Repository
	recons      settlement.ReconciliationRepository
	settlements settlement.Repository
	producer    producers.MessagePublisher
	logger      *slog.Logger
}

// NewPayoutService creates a new payout service
func NewPayoutService(
	logger *slog.Logger,
	batches payout.Repository,
	recons settlement.ReconciliationRepository,
	settlements settlement.Repository,
	producer producers.MessagePublisher,
) PayoutService {
	return &PayoutServiceImpl{
		batches:     batches,
		recons:      recons,
		settlements: settlements,
		producer:    producer,
		logger:      logger,
	}
}

// PendingByOrganizer rolls up reconciled, unpaid rows of payable settlements
// into one entry per organizer, largest total first.
func (s *PayoutServiceImpl) PendingByOrganizer(ctx context.Context) ([]*PendingPayout, error) {
	rows, err := s.recons.ListPendingPayout(ctx)
	if err != nil {
		return nil, err
	}

	payable := make(map[uuid.UUID]bool)
	groups := make(map[string]*PendingPayout)
	order := make([]string, 0)

	for _, row := range rows {
		ok, known := payable[row.SettlementID]
		if !known {
			sett, err := s.settlements.GetByID(ctx, row.SettlementID)
			if err != nil {
				return nil, err
			}
			ok = sett.Status == shared.SettlementStatusReadyToPay ||
				sett.Status == shared.SettlementStatusPartial
			payable[row.SettlementID] = ok
		}
		if !ok {
			continue
		}

		organizerID := row.OrganizerID
		if organizerID == "" {
			continue
		}
		group, exists := groups[organizerID]
		if !exists {
			name := row.OrganizerName
			if name == "" {
				name = fallbackOrganizerName
			}
			group = &PendingPayout{
				OrganizerID:   organizerID,
				OrganizerName: name,
			}
			groups[organizerID] = group
			order = append(order, organizerID)
		}
		group.TotalCents += row.AmountCents
		group.Count++
		group.ReconciliationIDs = append(group.ReconciliationIDs, row.ID)
		if !containsID(group.SettlementIDs, row.SettlementID) {
			group.SettlementIDs = append(group.SettlementIDs, row.SettlementID)
		}
	}

	pending := make([]*PendingPayout, 0, len(order))
	for _, organizerID := range order {
		pending = append(pending, groups[organizerID])
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].TotalCents > pending[j].TotalCents
	})
	return pending, nil
}

// RequestPayout validates the reconciliation set, stores a pending batch, and
// publishes the payout event. The processor applies the paid transition.
func (s *PayoutServiceImpl) RequestPayout(ctx context.Context, params *PayoutParams) (*payout.Batch, error) {
	rows, err := s.recons.GetByIDs(ctx, params.ReconciliationIDs)
	if err != nil {
		return nil, err
	}
	if len(rows) != len(params.ReconciliationIDs) {
		s.logger.Warn("Payout request references missing reconciliations",
			"organizer_id", params.OrganizerID,
			"requested", len(params.ReconciliationIDs),
			"found", len(rows))
		return nil, ErrPayoutSetNotPayable
	}

	var totalCents int64
	organizerName := ""
	settlementIDs := make([]uuid.UUID, 0)
	for _, row := range rows {
		if row.Status != shared.ReconStatusReconciled || row.OrganizerID != params.OrganizerID {
			s.logger.Warn("Payout request includes non-payable row",
				"reconciliation_id", row.ID.String(),
				"status", string(row.Status),
				"organizer_id", row.OrganizerID)
			return nil, ErrPayoutSetNotPayable
		}
		totalCents += row.AmountCents
		if organizerName == "" && row.OrganizerName != "" {
			organizerName = row.OrganizerName
		}
		if !containsID(settlementIDs, row.SettlementID) {
			settlementIDs = append(settlementIDs, row.SettlementID)
		}
	}
	if organizerName == "" {
		organizerName = fallbackOrganizerName
	}

	for _, settlementID := range settlementIDs {
		sett, err := s.settlements.GetByID(ctx, settlementID)
		if err != nil {
			return nil, err
		}
		if sett.Status != shared.SettlementStatusReadyToPay && sett.Status != shared.SettlementStatusPartial {
			s.logger.Warn("Payout request references non-payable settlement",
				"settlement_id", settlementID.String(),
				"status", string(sett.Status))
			return nil, ErrSettlementNotPayable
		}
	}

	batch := &payout.Batch{
		ID:                uuid.New(),
		OrganizerID:       params.OrganizerID,
		OrganizerName:     organizerName,
		TotalCents:        totalCents,
		Currency:          "ARS",
		SettlementIDs:     settlementIDs,
		ReconciliationIDs: params.ReconciliationIDs,
		BankReference:     params.BankReference,
		Note:              params.Note,
		Status:            payout.BatchStatusPending,
		CreatedBy:         params.RequestedBy,
		CreatedAt:         time.Now(),
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, err
	}

	request := &shared.PayoutRequest{
		BatchID:           batch.ID,
		OrganizerID:       batch.OrganizerID,
		ReconciliationIDs: batch.ReconciliationIDs,
		TotalCents:        batch.TotalCents,
		Currency:          batch.Currency,
		BankReference:     batch.BankReference,
		Note:              batch.Note,
		RequestedBy:       batch.CreatedBy,
		CorrelationID:     params.CorrelationID,
		Timestamp:         time.Now(),
	}
	if err := s.producer.Publish(ctx, batch.ID.String(), request); err != nil {
		s.logger.Error("Failed to publish payout request",
			"batch_id", batch.ID.String(),
			"error", err)
		if updateErr := s.batches.UpdateStatus(ctx, batch.ID, payout.BatchStatusFailed, nil); updateErr != nil {
			s.logger.Error("Failed to mark payout batch failed",
				"batch_id", batch.ID.String(),
				"error", updateErr)
		}
		return nil, fmt.Errorf("failed to publish payout request: %w", err)
	}

	s.logger.Info("Payout batch registered",
		"batch_id", batch.ID.String(),
		"organizer_id", batch.OrganizerID,
		"total_cents", batch.TotalCents,
		"rows", len(batch.ReconciliationIDs))
	return batch, nil
}

// List retrieves paginated payout batches
func (s *PayoutServiceImpl) List(ctx context.Context, filter payout.ListFilter, page, perPage int) ([]*payout.Batch, error) {
	offset := (page - 1) * perPage
	return s.batches.List(ctx, filter, perPage, offset)
}

// GetByID retrieves a payout batch
func (s *PayoutServiceImpl) GetByID(ctx context.Context, id uuid.UUID) (*payout.Batch, error) {
	return s.batches.GetByID(ctx, id)
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
