// Package summary aggregates the outcome of a reconciliation run into the
// figures the operator reviews before releasing payouts.
package summary

import (
	"sort"

	"github.com/settlement-reconciliation/internal/domain/settlement"
	"github.com/settlement-reconciliation/internal/domain/shared"
)

// OrganizerSummary is the payable rollup of one organizer.
type OrganizerSummary struct {
	OrganizerID     string   `json:"organizer_id"`
	OrganizerName   string   `json:"organizer_name"`
	TotalCents      int64    `json:"total_cents"`
	OrderIDs        []string `json:"order_ids"`
	TransactionIDs  []string `json:"transaction_ids"`
	ReconciledCount int      `json:"reconciled_count"`
}

// Totals counts reconciliation rows by outcome.
type Totals struct {
	Lines        int `json:"lines"`
	Transactions int `json:"transactions"`
	Reconciled   int `json:"reconciled"`
	NeedsReview  int `json:"needs_review"`
	NoMatch      int `json:"no_match"`
	Ambiguous    int `json:"ambiguous"`
	Excluded     int `json:"excluded"`
	Paid         int `json:"paid"`
}

// Validations are the cross-checks against the report's own figures.
type Validations struct {
	CurrencyARS          bool   `json:"currency_ars"`
	DeclaredTotalCents   *int64 `json:"declared_total_cents"`
	ReconciledTotalCents int64  `json:"reconciled_total_cents"`
	DeclaredTotalMatches *bool  `json:"declared_total_matches"`
}

// Summary is the full review snapshot of a settlement.
type Summary struct {
	Totals              Totals             `json:"totals"`
	Validations         Validations        `json:"validations"`
	CanGeneratePayments bool               `json:"can_generate_payments"`
	ByOrganizer         []OrganizerSummary `json:"by_organizer"`
}

// Build computes the snapshot. Payments can be generated only when the run
// produced at least one row and nothing is left in review.
func Build(
	rows []*settlement.Reconciliation,
	transactions []*settlement.Transaction,
	declaredTotalCents *int64,
) *Summary {
	s := &Summary{
		Totals: Totals{
			Lines:        len(rows),
			Transactions: len(transactions),
		},
	}

	byOrganizer := make(map[string]*OrganizerSummary)
	var organizerOrder []string

	for _, row := range rows {
		switch row.Status {
		case shared.ReconStatusReconciled:
			s.Totals.Reconciled++
			s.Validations.ReconciledTotalCents += row.AmountCents
			accumulateOrganizer(byOrganizer, &organizerOrder, row)
		case shared.ReconStatusNeedsReview:
			s.Totals.NeedsReview++
			switch row.Reason {
			case shared.ReconReasonNoMatch:
				s.Totals.NoMatch++
			case shared.ReconReasonAmbiguous, shared.ReconReasonAmbiguousCoupon:
				s.Totals.Ambiguous++
			}
		case shared.ReconStatusExcluded:
			s.Totals.Excluded++
		case shared.ReconStatusPaid:
			s.Totals.Paid++
		}
	}

	s.Validations.CurrencyARS = allARS(transactions)
	s.Validations.DeclaredTotalCents = declaredTotalCents
	if declaredTotalCents != nil {
		matches := absInt64(*declaredTotalCents-s.Validations.ReconciledTotalCents) < 1
		s.Validations.DeclaredTotalMatches = &matches
	}

	s.CanGeneratePayments = len(rows) > 0 && s.Totals.NeedsReview == 0

	for _, organizerID := range organizerOrder {
		entry := byOrganizer[organizerID]
		entry.OrderIDs = uniqueStrings(entry.OrderIDs)
		entry.TransactionIDs = uniqueStrings(entry.TransactionIDs)
		s.ByOrganizer = append(s.ByOrganizer, *entry)
	}
	sort.SliceStable(s.ByOrganizer, func(i, j int) bool {
		return s.ByOrganizer[i].OrganizerID < s.ByOrganizer[j].OrganizerID
	})

	return s
}

func accumulateOrganizer(byOrganizer map[string]*OrganizerSummary, order *[]string, row *settlement.Reconciliation) {
	organizerID := row.OrganizerID
	if organizerID == "" {
		organizerID = "UNKNOWN"
	}
	entry := byOrganizer[organizerID]
	if entry == nil {
		entry = &OrganizerSummary{
			OrganizerID:   organizerID,
			OrganizerName: row.OrganizerName,
		}
		byOrganizer[organizerID] = entry
		*order = append(*order, organizerID)
	}
	entry.TotalCents += row.AmountCents
	if row.OrderID != "" {
		entry.OrderIDs = append(entry.OrderIDs, row.OrderID)
	}
	if row.TransactionID != "" {
		entry.TransactionIDs = append(entry.TransactionIDs, row.TransactionID)
	}
	entry.ReconciledCount++
}

func allARS(transactions []*settlement.Transaction) bool {
	for _, tx := range transactions {
		if tx.Currency != "" && tx.Currency != "ARS" {
			return false
		}
	}
	return true
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
