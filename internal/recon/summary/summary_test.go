package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settlement-reconciliation/internal/domain/settlement"
	"github.com/settlement-reconciliation/internal/domain/shared"
)

func reconciledRow(organizerID, orderID string, cents int64) *settlement.Reconciliation {
	return &settlement.Reconciliation{
		Status:        shared.ReconStatusReconciled,
		OrganizerID:   organizerID,
		OrganizerName: "Organizer " + organizerID,
		OrderID:       orderID,
		TransactionID: "TRX-" + orderID,
		AmountCents:   cents,
	}
}

func reviewRow(reason shared.ReconReason) *settlement.Reconciliation {
	return &settlement.Reconciliation{
		Status: shared.ReconStatusNeedsReview,
		Reason: reason,
	}
}

func TestBuild_CountsAndTotals(t *testing.T) {
	rows := []*settlement.Reconciliation{
		reconciledRow("org-a", "ORD-1", 1000),
		reconciledRow("org-a", "ORD-2", 2500),
		reconciledRow("org-b", "ORD-3", 500),
		reviewRow(shared.ReconReasonNoMatch),
		reviewRow(shared.ReconReasonAmbiguous),
		reviewRow(shared.ReconReasonAmbiguousCoupon),
		{Status: shared.ReconStatusExcluded, Reason: shared.ReconReasonGroupedInstallment},
		{Status: shared.ReconStatusPaid, AmountCents: 300},
	}

	s := Build(rows, nil, nil)

	assert.Equal(t, 8, s.Totals.Lines)
	assert.Equal(t, 3, s.Totals.Reconciled)
	assert.Equal(t, 3, s.Totals.NeedsReview)
	assert.Equal(t, 1, s.Totals.NoMatch)
	assert.Equal(t, 2, s.Totals.Ambiguous)
	assert.Equal(t, 1, s.Totals.Excluded)
	assert.Equal(t, 1, s.Totals.Paid)
	assert.Equal(t, int64(4000), s.Validations.ReconciledTotalCents)
	assert.False(t, s.CanGeneratePayments)
}

func TestBuild_ByOrganizerRollup(t *testing.T) {
	rows := []*settlement.Reconciliation{
		reconciledRow("org-b", "ORD-3", 500),
		reconciledRow("org-a", "ORD-1", 1000),
		reconciledRow("org-a", "ORD-1", 2500), // same order twice
	}

	s := Build(rows, nil, nil)

	require.Len(t, s.ByOrganizer, 2)
	assert.Equal(t, "org-a", s.ByOrganizer[0].OrganizerID)
	assert.Equal(t, int64(3500), s.ByOrganizer[0].TotalCents)
	assert.Equal(t, 2, s.ByOrganizer[0].ReconciledCount)
	assert.Equal(t, []string{"ORD-1"}, s.ByOrganizer[0].OrderIDs)
	assert.Equal(t, "org-b", s.ByOrganizer[1].OrganizerID)
}

func TestBuild_DeclaredTotalValidation(t *testing.T) {
	rows := []*settlement.Reconciliation{reconciledRow("org-a", "ORD-1", 1000)}

	declared := int64(1000)
	s := Build(rows, nil, &declared)
	require.NotNil(t, s.Validations.DeclaredTotalMatches)
	assert.True(t, *s.Validations.DeclaredTotalMatches)

	declared = 1001
	s = Build(rows, nil, &declared)
	require.NotNil(t, s.Validations.DeclaredTotalMatches)
	assert.False(t, *s.Validations.DeclaredTotalMatches)

	s = Build(rows, nil, nil)
	assert.Nil(t, s.Validations.DeclaredTotalMatches)
}

func TestBuild_CanGeneratePayments(t *testing.T) {
	assert.False(t, Build(nil, nil, nil).CanGeneratePayments)

	clean := []*settlement.Reconciliation{reconciledRow("org-a", "ORD-1", 1000)}
	assert.True(t, Build(clean, nil, nil).CanGeneratePayments)

	withReview := append(clean, reviewRow(shared.ReconReasonNoMatch))
	assert.False(t, Build(withReview, nil, nil).CanGeneratePayments)
}

func TestBuild_CurrencyValidation(t *testing.T) {
	ars := []*settlement.Transaction{{Currency: "ARS"}, {Currency: ""}}
	assert.True(t, Build(nil, ars, nil).Validations.CurrencyARS)

	mixed := []*settlement.Transaction{{Currency: "ARS"}, {Currency: "USD"}}
	assert.False(t, Build(nil, mixed, nil).Validations.CurrencyARS)
}
