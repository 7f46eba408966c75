package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/settlement-reconciliation/internal/domain/shared"
)

// Settlement represents one imported card-settlement report together with
// the merchant CSV export it is reconciled against.
type Settlement struct {
	ID                uuid.UUID               `json:"id" bson:"id"`
	Provider          string                  `json:"provider" bson:"provider"`
	CardBrand         string                  `json:"card_brand" bson:"card_brand"`
	LiquidationDate   string                  `json:"liquidation_date,omitempty" bson:"liquidation_date,omitempty"`
	LiquidationNumber string                  `json:"liquidation_number,omitempty" bson:"liquidation_number,omitempty"`
	SourcePDFName     string                  `json:"source_pdf_name" bson:"source_pdf_name"`
	SourceCSVName     string                  `json:"source_csv_name" bson:"source_csv_name"`
	HashPDF           string                  `json:"hash_pdf" bson:"hash_pdf"`
	HashCSV           string                  `json:"hash_csv" bson:"hash_csv"`
	DeclaredTotalCents *int64                 `json:"declared_total_cents,omitempty" bson:"declared_total_cents,omitempty"`
	Status            shared.SettlementStatus `json:"status" bson:"status"`
	CurrencyIssues    []string                `json:"currency_issues,omitempty" bson:"currency_issues,omitempty"`
	CreatedBy         string                  `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CreatedAt         time.Time               `json:"created_at" bson:"created_at"`
}

// Line is a single operation extracted from the settlement report text.
// Amounts are stored in cents. CuotaNumero/CuotaTotal are zero when the
// line is not part of an installment plan or the plan could not be read.
type Line struct {
	ID          uuid.UUID       `json:"id" bson:"id"`
	SettlementID uuid.UUID      `json:"settlement_id" bson:"settlement_id"`
	OpDate      string          `json:"op_date" bson:"op_date"`
	Terminal    string          `json:"terminal,omitempty" bson:"terminal,omitempty"`
	Lote        string          `json:"lote,omitempty" bson:"lote,omitempty"`
	Cupon       string          `json:"cupon,omitempty" bson:"cupon,omitempty"`
	Last4       string          `json:"last4,omitempty" bson:"last4,omitempty"`
	AmountCents int64           `json:"amount_cents" bson:"amount_cents"`
	Type        shared.LineType `json:"type" bson:"type"`
	PlanCuota   string          `json:"plan_cuota,omitempty" bson:"plan_cuota,omitempty"`
	CuotaNumero int             `json:"cuota_numero,omitempty" bson:"cuota_numero,omitempty"`
	CuotaTotal  int             `json:"cuota_total,omitempty" bson:"cuota_total,omitempty"`
	RawLine     string          `json:"raw_line" bson:"raw_line"`
	LineHash    string          `json:"line_hash" bson:"line_hash"`
	CreatedAt   time.Time       `json:"created_at" bson:"created_at"`
}

// Transaction is a merchant-side card transaction imported from the CSV export.
type Transaction struct {
	ID            uuid.UUID  `json:"id" bson:"id"`
	SettlementID  uuid.UUID  `json:"settlement_id" bson:"settlement_id"`
	OrderID       string     `json:"order_id" bson:"order_id"`
	TransactionID string     `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	Approval      string     `json:"approval,omitempty" bson:"approval,omitempty"`
	Last4         string     `json:"last4,omitempty" bson:"last4,omitempty"`
	AmountCents   int64      `json:"amount_cents" bson:"amount_cents"`
	Currency      string     `json:"currency,omitempty" bson:"currency,omitempty"`
	OpDate        string     `json:"op_date,omitempty" bson:"op_date,omitempty"`
	OpDateTime    *time.Time `json:"op_datetime,omitempty" bson:"op_datetime,omitempty"`
	Terminal      string     `json:"terminal,omitempty" bson:"terminal,omitempty"`
	Lote          string     `json:"lote,omitempty" bson:"lote,omitempty"`
	Cupon         string     `json:"cupon,omitempty" bson:"cupon,omitempty"`
	TxHash        string     `json:"tx_hash" bson:"tx_hash"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
}

// Audit records how a reconciliation row was produced.
type Audit struct {
	MatchedAt time.Time `json:"matched_at" bson:"matched_at"`
	MatchedBy string    `json:"matched_by" bson:"matched_by"`
	PDFKey    string    `json:"pdf_key,omitempty" bson:"pdf_key,omitempty"`
	CSVKey    string    `json:"csv_key,omitempty" bson:"csv_key,omitempty"`
}

// Reconciliation is the per-line outcome of a reconciliation run. One row
// exists per settlement line; rows are replaced wholesale on re-runs while
// the line remains unpaid.
type Reconciliation struct {
	ID            uuid.UUID          `json:"id" bson:"id"`
	SettlementID  uuid.UUID          `json:"settlement_id" bson:"settlement_id"`
	LineID        uuid.UUID          `json:"line_id" bson:"line_id"`
	TransactionRef *uuid.UUID        `json:"transaction_ref,omitempty" bson:"transaction_ref,omitempty"`
	OrderID       string             `json:"order_id,omitempty" bson:"order_id,omitempty"`
	TransactionID string             `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	TxFingerprint string             `json:"tx_fingerprint,omitempty" bson:"tx_fingerprint,omitempty"`
	OrganizerID   string             `json:"organizer_id,omitempty" bson:"organizer_id,omitempty"`
	OrganizerName string             `json:"organizer_name,omitempty" bson:"organizer_name,omitempty"`
	EventID       string             `json:"event_id,omitempty" bson:"event_id,omitempty"`
	Status        shared.ReconStatus `json:"status" bson:"status"`
	Reason        shared.ReconReason `json:"reason,omitempty" bson:"reason,omitempty"`
	MatchType     shared.MatchType   `json:"match_type,omitempty" bson:"match_type,omitempty"`
	MatchKey      string             `json:"match_key,omitempty" bson:"match_key,omitempty"`
	AmountCents   int64              `json:"amount_cents" bson:"amount_cents"`
	OpDate        string             `json:"op_date,omitempty" bson:"op_date,omitempty"`
	Last4         string             `json:"last4,omitempty" bson:"last4,omitempty"`
	Cupon         string             `json:"cupon,omitempty" bson:"cupon,omitempty"`
	PayoutBatchID *uuid.UUID         `json:"payout_batch_id,omitempty" bson:"payout_batch_id,omitempty"`
	PaidAt        *time.Time         `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
	Audit         Audit              `json:"audit" bson:"audit"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}
