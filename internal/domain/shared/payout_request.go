package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyReconciliationSet = errors.New("payout request has no reconciliation ids")
	ErrUnknownOrganizer       = errors.New("payout request has no organizer id")
)

// PayoutRequest defines a Kafka message asking the payout processor to mark
// a batch of reconciled rows as paid
type PayoutRequest struct {
	BatchID           uuid.UUID   `json:"batch_id"`
	OrganizerID       string      `json:"organizer_id"`
	ReconciliationIDs []uuid.UUID `json:"reconciliation_ids"`
	TotalCents        int64       `json:"total_cents"` // Stored in cents/minor units
	Currency          string      `json:"currency"`
	BankReference     string      `json:"bank_reference,omitempty"`
	Note              string      `json:"note,omitempty"`
	RequestedBy       string      `json:"requested_by,omitempty"`
	CorrelationID     string      `json:"correlation_id"`
	Timestamp         time.Time   `json:"timestamp"`
}

// Validate checks the structural invariants of a payout request before it
// is published or applied.
func (r *PayoutRequest) Validate() error {
	if len(r.ReconciliationIDs) == 0 {
		return ErrEmptyReconciliationSet
	}
	if r.OrganizerID == "" {
		return ErrUnknownOrganizer
	}
	return nil
}
