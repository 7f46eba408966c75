// Package payout models operator-initiated organizer payouts. A payout batch
// references the reconciled rows it covers; the paid transition itself is
// applied asynchronously by the payout processor.
package payout

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BatchStatus defines payout batch states
type BatchStatus string

const (
	BatchStatusPending BatchStatus = "PENDING"
	BatchStatusApplied BatchStatus = "APPLIED"
	BatchStatusFailed  BatchStatus = "FAILED"
)

// Batch groups reconciled rows of one organizer into a single payment.
type Batch struct {
	ID                uuid.UUID   `json:"id" bson:"id"`
	OrganizerID       string      `json:"organizer_id" bson:"organizer_id"`
	OrganizerName     string      `json:"organizer_name,omitempty" bson:"organizer_name,omitempty"`
	TotalCents        int64       `json:"total_cents" bson:"total_cents"`
	Currency          string      `json:"currency" bson:"currency"`
	SettlementIDs     []uuid.UUID `json:"settlement_ids" bson:"settlement_ids"`
	ReconciliationIDs []uuid.UUID `json:"reconciliation_ids" bson:"reconciliation_ids"`
	BankReference     string      `json:"bank_reference,omitempty" bson:"bank_reference,omitempty"`
	Note              string      `json:"note,omitempty" bson:"note,omitempty"`
	Status            BatchStatus `json:"status" bson:"status"`
	CreatedBy         string      `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CreatedAt         time.Time   `json:"created_at" bson:"created_at"`
	AppliedAt         *time.Time  `json:"applied_at,omitempty" bson:"applied_at,omitempty"`
}

// ListFilter narrows a payout batch listing. Zero values mean no constraint;
// the date range applies to the applied timestamp.
type ListFilter struct {
	OrganizerID string
	AppliedFrom *time.Time
	AppliedTo   *time.Time
}

// Repository manages payout batch persistence
type Repository interface {
	Create(ctx context.Context, batch *Batch) error
	GetByID(ctx context.Context, id uuid.UUID) (*Batch, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Batch, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status BatchStatus, appliedAt *time.Time) error
}

// ErrBatchNotFound indicates missing payout batch
type ErrBatchNotFound struct {
	ID uuid.UUID
}

func (e ErrBatchNotFound) Error() string {
	return "payout batch not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrBatchNotFound
func (e ErrBatchNotFound) Is(target error) bool {
	t, ok := target.(ErrBatchNotFound)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}
