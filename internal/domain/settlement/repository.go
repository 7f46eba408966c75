package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/settlement-reconciliation/internal/domain/shared"
)

// Repository manages settlement persistence
type Repository interface {
	Create(ctx context.Context, s *Settlement) error
	GetByID(ctx context.Context, id uuid.UUID) (*Settlement, error)
	GetByContentHashes(ctx context.Context, hashPDF, hashCSV string) (*Settlement, error)
	List(ctx context.Context, limit, offset int) ([]*Settlement, error)
	Count(ctx context.Context) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status shared.SettlementStatus) error
}

// LineRepository manages extracted settlement lines
type LineRepository interface {
	CreateMany(ctx context.Context, lines []*Line) (int, error)
	GetBySettlementID(ctx context.Context, settlementID uuid.UUID) ([]*Line, error)
	ExistingFingerprints(ctx context.Context, fingerprints []string) (map[string]struct{}, error)
}

// TransactionRepository manages imported CSV transactions
type TransactionRepository interface {
	CreateMany(ctx context.Context, txs []*Transaction) (int, error)
	GetBySettlementID(ctx context.Context, settlementID uuid.UUID) ([]*Transaction, error)
	GetByFingerprints(ctx context.Context, fingerprints []string) ([]*Transaction, error)
	ExistingFingerprints(ctx context.Context, fingerprints []string) (map[string]struct{}, error)
}

// ReconciliationRepository manages reconciliation outcomes. Re-running a
// reconciliation replaces all unpaid rows of the settlement atomically from
// the caller's point of view; paid rows are never rewritten.
type ReconciliationRepository interface {
	ReplaceForSettlement(ctx context.Context, settlementID uuid.UUID, rows []*Reconciliation) error
	GetBySettlementID(ctx context.Context, settlementID uuid.UUID) ([]*Reconciliation, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Reconciliation, error)
	ListPendingPayout(ctx context.Context) ([]*Reconciliation, error)
	MarkPaid(ctx context.Context, ids []uuid.UUID, batchID uuid.UUID, paidAt time.Time) (int64, error)
	ConsumedFingerprints(ctx context.Context, fingerprints []string) (map[string]struct{}, error)
}

// ErrSettlementNotFound indicates missing settlement
type ErrSettlementNotFound struct {
	ID uuid.UUID
}

func (e ErrSettlementNotFound) Error() string {
	return "settlement not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrSettlementNotFound
func (e ErrSettlementNotFound) Is(target error) bool {
	t, ok := target.(ErrSettlementNotFound)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}

// ErrDuplicateSettlement indicates the same report/export pair was already imported
type ErrDuplicateSettlement struct {
	ExistingID uuid.UUID
}

func (e ErrDuplicateSettlement) Error() string {
	return "settlement already imported: " + e.ExistingID.String()
}

// Is implements the errors.Is interface for ErrDuplicateSettlement
func (e ErrDuplicateSettlement) Is(target error) bool {
	t, ok := target.(ErrDuplicateSettlement)
	if !ok {
		return false
	}
	if t.ExistingID == uuid.Nil {
		return true
	}
	return e.ExistingID == t.ExistingID
}
