// Package engine matches settlement lines against imported card
// transactions. The run is deterministic: lines are processed in input
// order, each transaction is consumed at most once per run, and every line
// produces exactly one reconciliation row.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/settlement-reconciliation/internal/domain/order"
	"github.com/settlement-reconciliation/internal/domain/settlement"
	"github.com/settlement-reconciliation/internal/domain/shared"
)

// placeholder attribution for lines whose order has no known organizer
const (
	unknownOrganizerID   = "UNKNOWN"
	unknownOrganizerName = "Unknown organizer"
)

var (
	planMarkerRe = regexp.MustCompile(`(?i)plan\s*cuota`)
	digitRunRe   = regexp.MustCompile(`\d+`)
	nonDigitRe   = regexp.MustCompile(`\D`)
)

// Params is the input of one reconciliation run.
type Params struct {
	SettlementID uuid.UUID
	Lines        []*settlement.Line
	Transactions []*settlement.Transaction
	MatchedBy    string
}

// Reconcile runs the matching pass and returns one row per line. The
// resolver attributes matched orders to organizers; a resolver miss or
// failure routes the line to review instead of failing the run.
func Reconcile(ctx context.Context, params Params, resolver order.Resolver) ([]*settlement.Reconciliation, error) {
	byKey := make(map[string][]*settlement.Transaction)
	byCupon := make(map[string][]*settlement.Transaction)
	for _, tx := range params.Transactions {
		baseKey := buildKey(tx.OpDate, tx.Last4, tx.AmountCents, "")
		byKey[baseKey] = append(byKey[baseKey], tx)

		derivedCupon := tx.Cupon
		if derivedCupon == "" {
			derivedCupon = cuponSuffix(tx.TransactionID)
		}
		if derivedCupon != "" {
			cuponKey := buildKey(tx.OpDate, tx.Last4, tx.AmountCents, derivedCupon)
			byKey[cuponKey] = append(byKey[cuponKey], tx)
			cuponOnlyKey := tx.OpDate + "|" + tx.Last4 + "|" + derivedCupon
			byCupon[cuponOnlyKey] = append(byCupon[cuponOnlyKey], tx)
		}
	}

	groups := buildInstallmentGroups(params.Lines)

	run := &runState{
		params:   params,
		resolver: resolver,
		byKey:    byKey,
		byCupon:  byCupon,
		groups:   groups,
		used:     make(map[uuid.UUID]struct{}),
	}

	rows := make([]*settlement.Reconciliation, 0, len(params.Lines))
	for _, line := range params.Lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := run.reconcileLine(ctx, line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type runState struct {
	params   Params
	resolver order.Resolver
	byKey    map[string][]*settlement.Transaction
	byCupon  map[string][]*settlement.Transaction
	groups   map[string]*installmentGroup
	used     map[uuid.UUID]struct{}
}

func (r *runState) reconcileLine(ctx context.Context, line *settlement.Line) (*settlement.Reconciliation, error) {
	now := time.Now().UTC()
	baseAmount := line.AmountCents
	amount := line.AmountCents
	groupLead := false
	inferred := false
	var fallbackAmount int64

	cuota := extractCuotaInfo(line)
	if isInstallmentLine(line, cuota) && line.Cupon != "" {
		group := r.groups[installmentGroupKey(line, cuota)]
		if group != nil && len(group.lineIDs) > 1 {
			if group.leadLineID != line.ID {
				return r.excludedRow(line, now), nil
			}
			amount = group.totalCents
			groupLead = true
		} else if total := inferredInstallmentTotal(line, cuota.total); total > 0 {
			amount = total
			inferred = true
			fallbackAmount = baseAmount
		}
	}

	matchKey := buildKey(line.OpDate, line.Last4, amount, line.Cupon)
	matches := r.byKey[matchKey]

	// The inferred plan total is a guess; if nothing carries that amount,
	// fall back to the installment amount actually printed on the line.
	if len(matches) == 0 && fallbackAmount != 0 {
		fallbackKey := buildKey(line.OpDate, line.Last4, fallbackAmount, line.Cupon)
		if fallbackMatches := r.byKey[fallbackKey]; len(fallbackMatches) > 0 {
			matchKey = fallbackKey
			matches = fallbackMatches
			amount = fallbackAmount
			inferred = false
		}
	}

	if len(matches) == 0 && line.Cupon != "" {
		cuponOnlyKey := line.OpDate + "|" + line.Last4 + "|" + line.Cupon
		cuponMatches := r.byCupon[cuponOnlyKey]
		if len(cuponMatches) == 1 {
			return r.matchedRow(ctx, line, cuponMatches[0], matchKey, amount, now, couponOutcome)
		}
		if len(cuponMatches) > 1 {
			return r.reviewRow(line, matchKey, amount, shared.ReconReasonAmbiguousCoupon, now), nil
		}
	}

	if len(matches) != 1 {
		reason := shared.ReconReasonNoMatch
		if len(matches) > 1 {
			reason = shared.ReconReasonAmbiguous
		}
		return r.reviewRow(line, matchKey, amount, reason, now), nil
	}

	outcome := exactOutcome
	if groupLead {
		outcome = groupLeadOutcome
	} else if inferred {
		outcome = inferredOutcome
	}
	return r.matchedRow(ctx, line, matches[0], matchKey, amount, now, outcome)
}

// matchOutcome selects the reason reported on a successful match.
type matchOutcome int

const (
	exactOutcome matchOutcome = iota
	groupLeadOutcome
	inferredOutcome
	couponOutcome
)

func (r *runState) matchedRow(
	ctx context.Context,
	line *settlement.Line,
	match *settlement.Transaction,
	matchKey string,
	amount int64,
	now time.Time,
	outcome matchOutcome,
) (*settlement.Reconciliation, error) {
	csvKey := matchKey
	if outcome == couponOutcome {
		csvKey = buildKey(line.OpDate, line.Last4, match.AmountCents, line.Cupon)
	}

	row := &settlement.Reconciliation{
		ID:            uuid.New(),
		SettlementID:  r.params.SettlementID,
		LineID:        line.ID,
		TransactionRef: &match.ID,
		OrderID:       match.OrderID,
		TransactionID: match.TransactionID,
		TxFingerprint: match.TxHash,
		MatchType:     matchType(line),
		MatchKey:      matchKey,
		AmountCents:   match.AmountCents,
		OpDate:        line.OpDate,
		Last4:         line.Last4,
		Cupon:         line.Cupon,
		Audit: settlement.Audit{
			MatchedAt: now,
			MatchedBy: r.params.MatchedBy,
			PDFKey:    matchKey,
			CSVKey:    csvKey,
		},
		CreatedAt: now,
	}
	if outcome == couponOutcome {
		row.MatchType = shared.MatchTypeCoupon
		row.MatchKey = csvKey
	}

	if _, taken := r.used[match.ID]; taken {
		row.Status = shared.ReconStatusNeedsReview
		row.Reason = shared.ReconReasonDuplicateTransaction
		if outcome != couponOutcome {
			row.AmountCents = amount
		}
		return row, nil
	}
	r.used[match.ID] = struct{}{}

	info := r.resolveOrder(ctx, match.OrderID)
	if info == nil || info.OrganizerID == "" || info.OrganizerName == "" {
		row.Status = shared.ReconStatusNeedsReview
		row.Reason = shared.ReconReasonNoOrganizer
		row.OrganizerID = unknownOrganizerID
		row.OrganizerName = unknownOrganizerName
		if info != nil {
			row.EventID = info.EventID
		}
		return row, nil
	}

	row.Status = shared.ReconStatusReconciled
	row.OrganizerID = info.OrganizerID
	row.OrganizerName = info.OrganizerName
	row.EventID = info.EventID
	switch outcome {
	case groupLeadOutcome:
		row.Reason = shared.ReconReasonInstallmentsSummed
	case inferredOutcome:
		row.Reason = shared.ReconReasonInstallmentsInferred
	case couponOutcome:
		row.Reason = shared.ReconReasonCouponMatch
	}
	return row, nil
}

// resolveOrder treats resolver failures as unknown orders; a flaky upstream
// must route lines to review, not abort the run.
func (r *runState) resolveOrder(ctx context.Context, orderID string) *order.Info {
	info, err := r.resolver.Resolve(ctx, orderID)
	if err != nil {
		return nil
	}
	return info
}

func (r *runState) reviewRow(line *settlement.Line, matchKey string, amount int64, reason shared.ReconReason, now time.Time) *settlement.Reconciliation {
	return &settlement.Reconciliation{
		ID:           uuid.New(),
		SettlementID: r.params.SettlementID,
		LineID:       line.ID,
		MatchType:    matchType(line),
		MatchKey:     matchKey,
		Status:       shared.ReconStatusNeedsReview,
		Reason:       reason,
		AmountCents:  amount,
		OpDate:       line.OpDate,
		Last4:        line.Last4,
		Cupon:        line.Cupon,
		Audit: settlement.Audit{
			MatchedAt: now,
			MatchedBy: r.params.MatchedBy,
			PDFKey:    matchKey,
		},
		CreatedAt: now,
	}
}

func (r *runState) excludedRow(line *settlement.Line, now time.Time) *settlement.Reconciliation {
	key := buildKey(line.OpDate, line.Last4, line.AmountCents, line.Cupon)
	return &settlement.Reconciliation{
		ID:           uuid.New(),
		SettlementID: r.params.SettlementID,
		LineID:       line.ID,
		MatchType:    shared.MatchTypeCoupon,
		MatchKey:     key,
		Status:       shared.ReconStatusExcluded,
		Reason:       shared.ReconReasonGroupedInstallment,
		AmountCents:  line.AmountCents,
		OpDate:       line.OpDate,
		Last4:        line.Last4,
		Cupon:        line.Cupon,
		Audit: settlement.Audit{
			MatchedAt: now,
			MatchedBy: r.params.MatchedBy,
			PDFKey:    key,
		},
		CreatedAt: now,
	}
}

func matchType(line *settlement.Line) shared.MatchType {
	if line.Cupon != "" {
		return shared.MatchTypeCoupon
	}
	return shared.MatchTypeExact
}

func buildKey(opDate, last4 string, amountCents int64, cupon string) string {
	base := fmt.Sprintf("%s|%s|%d", opDate, last4, amountCents)
	if cupon != "" {
		return base + "|" + cupon
	}
	return base
}

// cuponSuffix derives a coupon stand-in from the processor transaction ID,
// whose trailing digits mirror the printed coupon number.
func cuponSuffix(transactionID string) string {
	digits := nonDigitRe.ReplaceAllString(transactionID, "")
	if len(digits) < 2 {
		return ""
	}
	return digits[len(digits)-2:]
}

// cuotaInfo is the installment position of a line, zero when unknown.
type cuotaInfo struct {
	numero int
	total  int
}

// extractCuotaInfo prefers the parsed plan fields and otherwise re-scans the
// raw line for an N/M token. When several tokens qualify the one with the
// largest plan wins, with a preference for installments near the first.
func extractCuotaInfo(line *settlement.Line) cuotaInfo {
	if line.CuotaTotal > 1 {
		return cuotaInfo{numero: line.CuotaNumero, total: line.CuotaTotal}
	}

	best := cuotaInfo{}
	bestScore := -1
	for _, token := range findCuotaTokens(line.RawLine) {
		numero, _ := strconv.Atoi(token[0])
		total, _ := strconv.Atoi(token[1])
		if total <= 1 || total > 60 {
			continue
		}
		if numero < 0 || numero > total {
			continue
		}
		score := total*100 + (60 - abs(numero-1))
		if score > bestScore {
			best = cuotaInfo{numero: numero, total: total}
			bestScore = score
		}
	}
	return best
}

// findCuotaTokens returns every standalone N/M pair in the text that is not
// part of a dd/mm/yyyy date.
func findCuotaTokens(s string) [][2]string {
	var tokens [][2]string
	runs := digitRunRe.FindAllStringIndex(s, -1)
	for i := 0; i+1 < len(runs); i++ {
		a, b := runs[i], runs[i+1]
		if a[1]-a[0] > 2 || b[1]-b[0] > 2 {
			continue
		}
		if b[0]-a[1] != 1 || s[a[1]] != '/' {
			continue
		}
		if a[0] > 0 && isWordByte(s[a[0]-1]) {
			continue
		}
		if b[1] < len(s) && isWordByte(s[b[1]]) {
			continue
		}
		if b[1] < len(s) && s[b[1]] == '/' {
			digits := 0
			for j := b[1] + 1; j < len(s) && s[j] >= '0' && s[j] <= '9'; j++ {
				digits++
			}
			if digits >= 4 {
				continue
			}
		}
		tokens = append(tokens, [2]string{s[a[0]:a[1]], s[b[0]:b[1]]})
	}
	return tokens
}

func isWordByte(b byte) bool {
	return b == '_' ||
		b >= '0' && b <= '9' ||
		b >= 'a' && b <= 'z' ||
		b >= 'A' && b <= 'Z'
}

func isInstallmentLine(line *settlement.Line, cuota cuotaInfo) bool {
	return line.Type == shared.LineTypeInstallment ||
		planMarkerRe.MatchString(line.RawLine) ||
		cuota.total > 0
}

// inferredInstallmentTotal projects the full plan amount from a single
// installment. Zero means no usable projection.
func inferredInstallmentTotal(line *settlement.Line, cuotaTotal int) int64 {
	if cuotaTotal <= 1 {
		return 0
	}
	total := line.AmountCents * int64(cuotaTotal)
	if total <= 0 || total == line.AmountCents {
		return 0
	}
	return total
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type installmentGroup struct {
	lineIDs    []uuid.UUID
	totalCents int64
	leadLineID uuid.UUID
	leadCuota  int
}

func installmentGroupKey(line *settlement.Line, cuota cuotaInfo) string {
	totalKey := ""
	if cuota.total > 0 {
		totalKey = strconv.Itoa(cuota.total)
	}
	return line.OpDate + "|" + line.Last4 + "|" + line.Cupon + "|" + line.Terminal + "|" + line.Lote + "|" + totalKey
}

// buildInstallmentGroups buckets installment lines that belong to the same
// plan. The lead line of a bucket is the lowest-numbered installment seen;
// its row later absorbs the whole plan amount.
func buildInstallmentGroups(lines []*settlement.Line) map[string]*installmentGroup {
	groups := make(map[string]*installmentGroup)
	for _, line := range lines {
		if line.Cupon == "" {
			continue
		}
		cuota := extractCuotaInfo(line)
		if !isInstallmentLine(line, cuota) {
			continue
		}

		key := installmentGroupKey(line, cuota)
		group := groups[key]
		if group == nil {
			group = &installmentGroup{leadLineID: line.ID, leadCuota: cuotaOrDefault(cuota)}
			groups[key] = group
		}
		group.lineIDs = append(group.lineIDs, line.ID)
		group.totalCents += line.AmountCents
		if cuota.numero > 0 && len(group.lineIDs) > 1 && group.leadCuota > cuota.numero {
			group.leadLineID = line.ID
			group.leadCuota = cuota.numero
		}
	}
	return groups
}

// cuotaOrDefault treats an unknown installment number as effectively last so
// any line with a real number can take the lead.
func cuotaOrDefault(cuota cuotaInfo) int {
	if cuota.numero > 0 {
		return cuota.numero
	}
	return 99
}
