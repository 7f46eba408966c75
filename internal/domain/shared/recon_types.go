package shared

// SettlementStatus defines the lifecycle states of an imported settlement
type SettlementStatus string

const (
	SettlementStatusImported    SettlementStatus = "IMPORTED"
	SettlementStatusNeedsReview SettlementStatus = "NEEDS_REVIEW"
	SettlementStatusReadyToPay  SettlementStatus = "READY_TO_PAY"
	SettlementStatusPartial     SettlementStatus = "PARTIAL"
	SettlementStatusPaid        SettlementStatus = "PAID"
)

// ReconStatus defines the per-line outcome of a reconciliation run
type ReconStatus string

const (
	ReconStatusReconciled  ReconStatus = "RECONCILED"
	ReconStatusNeedsReview ReconStatus = "NEEDS_REVIEW"
	ReconStatusExcluded    ReconStatus = "EXCLUDED"
	ReconStatusPaid        ReconStatus = "PAID"
)

// MatchType defines how a settlement line was paired with a transaction
type MatchType string

const (
	MatchTypeExact  MatchType = "EXACT"
	MatchTypeCoupon MatchType = "COUPON"
)

// ReconReason defines review and exclusion categories
type ReconReason string

const (
	ReconReasonNoMatch              ReconReason = "NO_MATCH"
	ReconReasonAmbiguous            ReconReason = "AMBIGUOUS"
	ReconReasonAmbiguousCoupon      ReconReason = "AMBIGUOUS_COUPON"
	ReconReasonDuplicateTransaction ReconReason = "DUPLICATE_TRANSACTION"
	ReconReasonNoOrganizer          ReconReason = "NO_ORGANIZER"
	ReconReasonGroupedInstallment   ReconReason = "GROUPED_INSTALLMENT"
	ReconReasonInstallmentsSummed   ReconReason = "INSTALLMENTS_SUMMED"
	ReconReasonInstallmentsInferred ReconReason = "INSTALLMENTS_INFERRED"
	ReconReasonCouponMatch          ReconReason = "COUPON_MATCH"
)

// LineType defines the two transaction shapes present on card settlement reports
type LineType string

const (
	LineTypeCashSale    LineType = "VENTA_CTDO"
	LineTypeInstallment LineType = "PLAN_CUOTA"
)
