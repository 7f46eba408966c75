package handler

import (
	"github.com/settlement-reconciliation/internal/recon/pdfimport"
	"github.com/settlement-reconciliation/internal/recon/summary"
)

// UploadResponse represents the outcome of a settlement upload
type UploadResponse struct {
	SettlementID   string              `json:"settlement_id"`
	Duplicate      bool                `json:"duplicate"`
	Status         string              `json:"status,omitempty"`
	Summary        *summary.Summary    `json:"summary,omitempty"`
	CurrencyIssues []string            `json:"currency_issues,omitempty"`
	SkippedRows    int                 `json:"skipped_rows,omitempty"`
	DroppedLines   []pdfimport.Dropped `json:"dropped_lines,omitempty"`
}

// SettlementResponse represents a settlement in list responses
type SettlementResponse struct {
	ID                string   `json:"id"`
	Provider          string   `json:"provider"`
	CardBrand         string   `json:"card_brand"`
	LiquidationDate   string   `json:"liquidation_date,omitempty"`
	LiquidationNumber string   `json:"liquidation_number,omitempty"`
	SourcePDFName     string   `json:"source_pdf_name"`
	SourceCSVName     string   `json:"source_csv_name"`
	Status            string   `json:"status"`
	CurrencyIssues    []string `json:"currency_issues,omitempty"`
	CreatedBy         string   `json:"created_by,omitempty"`
	CreatedAt         string   `json:"created_at"`
}

// ReconcileResponse represents the outcome of a re-reconciliation run
type ReconcileResponse struct {
	Status  string           `json:"status"`
	Summary *summary.Summary `json:"summary"`
}

// CreatePayoutRequest represents a request to register an organizer payout
type CreatePayoutRequest struct {
	OrganizerID       string   `json:"organizer_id" binding:"required"`
	ReconciliationIDs []string `json:"reconciliation_ids" binding:"required,min=1,dive,uuid"`
	BankReference     string   `json:"bank_reference" binding:"required"`
	Note              string   `json:"note,omitempty"`
	RequestedBy       string   `json:"requested_by,omitempty"`
}

// PayoutBatchResponse represents a payout batch in API responses
type PayoutBatchResponse struct {
	ID                string   `json:"id"`
	OrganizerID       string   `json:"organizer_id"`
	OrganizerName     string   `json:"organizer_name,omitempty"`
	TotalCents        int64    `json:"total_cents"`
	Currency          string   `json:"currency"`
	SettlementIDs     []string `json:"settlement_ids"`
	ReconciliationIDs []string `json:"reconciliation_ids"`
	BankReference     string   `json:"bank_reference,omitempty"`
	Note              string   `json:"note,omitempty"`
	Status            string   `json:"status"`
	CreatedBy         string   `json:"created_by,omitempty"`
	CreatedAt         string   `json:"created_at"`
	AppliedAt         string   `json:"applied_at,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// PayoutListParams narrows the payout batch listing by organizer and
// applied date range
type PayoutListParams struct {
	PaginationParams
	OrganizerID string `form:"organizer_id"`
	From        string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To          string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}
