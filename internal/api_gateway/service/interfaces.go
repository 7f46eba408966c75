package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/settlement-reconciliation/internal/domain/payout"
	"github.com/settlement-reconciliation/internal/domain/settlement"
	"github.com/settlement-reconciliation/internal/domain/shared"
	"github.com/settlement-reconciliation/internal/recon/pdfimport"
	"github.com/settlement-reconciliation/internal/recon/summary"
)

// ImportParams carries one settlement upload: the text extracted from the
// card provider's report and the merchant's CSV export, as a pair.
type ImportParams struct {
	CardBrand string
	PDFName   string
	CSVName   string
	PDFText   []byte
	CSVData   []byte
	CreatedBy string
}

// ImportResult reports what an upload produced. Duplicate is set when the
// exact file pair, or every operation in it, was imported before.
type ImportResult struct {
	SettlementID   uuid.UUID
	Duplicate      bool
	Status         shared.SettlementStatus
	Summary        *summary.Summary
	CurrencyIssues []string
	SkippedRows    int
	DroppedLines   []pdfimport.Dropped
}

// SettlementDetail bundles a settlement with its rows and the computed
// reconciliation snapshot.
type SettlementDetail struct {
	Settlement      *settlement.Settlement
	Lines           []*settlement.Line
	Transactions    []*settlement.Transaction
	Reconciliations []*settlement.Reconciliation
	Summary         *summary.Summary
}

// ReconcileResult reports a re-reconciliation run.
type ReconcileResult struct {
	Status  shared.SettlementStatus
	Summary *summary.Summary
}

// SettlementService defines the interface for settlement operations
type SettlementService interface {
	// Import ingests a report/export pair, reconciles it, and returns the outcome
	Import(ctx context.Context, params *ImportParams) (*ImportResult, error)

	// GetByID retrieves a settlement with its rows and summary
	// Returns ErrSettlementNotFound if the settlement doesn't exist
	GetByID(ctx context.Context, id uuid.UUID) (*SettlementDetail, error)

	// List retrieves paginated settlements with the total count
	List(ctx context.Context, page, perPage int) ([]*settlement.Settlement, int64, error)

	// Reconcile re-runs the matching pass over the settlement's stored rows
	// Returns ErrSettlementNotFound if the settlement doesn't exist
	Reconcile(ctx context.Context, id uuid.UUID, matchedBy string) (*ReconcileResult, error)
}

// PendingPayout is the per-organizer rollup of reconciled rows that have not
// been paid yet.
type PendingPayout struct {
	OrganizerID       string      `json:"organizer_id"`
	OrganizerName     string      `json:"organizer_name"`
	TotalCents        int64       `json:"total_cents"`
	Count             int         `json:"count"`
	ReconciliationIDs []uuid.UUID `json:"reconciliation_ids"`
	SettlementIDs     []uuid.UUID `json:"settlement_ids"`
}

// PayoutParams carries an operator's payout registration.
type PayoutParams struct {
	OrganizerID       string
	ReconciliationIDs []uuid.UUID
	BankReference     string
	Note              string
	RequestedBy       string
	CorrelationID     string
}

// PayoutService defines the interface for payout operations
type PayoutService interface {
	// PendingByOrganizer rolls up reconciled rows of payable settlements
	PendingByOrganizer(ctx context.Context) ([]*PendingPayout, error)

	// RequestPayout validates the reconciliation set, stores a pending batch,
	// and publishes the payout event for the processor to apply
	RequestPayout(ctx context.Context, params *PayoutParams) (*payout.Batch, error)

	// List retrieves paginated payout batches, optionally narrowed by
	// organizer and applied date range
	List(ctx context.Context, filter payout.ListFilter, page, perPage int) ([]*payout.Batch, error)

	// GetByID retrieves a payout batch
	// Returns ErrBatchNotFound if the batch doesn't exist
	GetByID(ctx context.Context, id uuid.UUID) (*payout.Batch, error)
}

// ResolverWarmer pre-resolves order IDs before an engine run so the run
// itself only hits the cache.
type ResolverWarmer interface {
	Warm(ctx context.Context, orderIDs []string, poolSize int) error
}

var (
	// ErrPayoutSetNotPayable indicates the requested rows are missing, not
	// reconciled, already paid, or belong to another organizer.
	ErrPayoutSetNotPayable = errors.New("some reconciliations are not reconciled or were already paid")

	// ErrSettlementNotPayable indicates a referenced settlement is not in a
	// payable state.
	ErrSettlementNotPayable = errors.New("settlement is not ready to pay")
)
