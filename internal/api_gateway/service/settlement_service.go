package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/settlement-reconciliation/internal/domain/order"
	"github.com/settlement-reconciliation/internal/domain/settlement"
	"github.com/settlement-reconciliation/internal/domain/shared"
	"github.com/settlement-reconciliation/internal/recon/csvimport"
	"github.com/settlement-reconciliation/internal/recon/engine"
	"github.com/settlement-reconciliation/internal/recon/pdfimport"
	"github.com/settlement-reconciliation/internal/recon/summary"
)

// SettlementServiceImpl implements the SettlementService interface
type SettlementServiceImpl struct {
	settlements settlement.Repository
	lines       settlement.LineRepository
	txs         settlement.TransactionRepository
	recons      settlement.ReconciliationRepository
	resolver    order.Resolver
	warmer      ResolverWarmer // may be nil
	poolSize    int
	logger      *slog.Logger
}

// NewSettlementService creates a new settlement service. warmer may be nil
// when no concurrent pre-resolution is wanted.
func NewSettlementService(
	logger *slog.Logger,
	settlements settlement.Repository,
	lines settlement.LineRepository,
	txs settlement.TransactionRepository,
	recons settlement.ReconciliationRepository,
	resolver order.Resolver,
	warmer ResolverWarmer,
	poolSize int,
) SettlementService {
	return &SettlementServiceImpl{
		settlements: settlements,
		lines:       lines,
		txs:         txs,
		recons:      recons,
		resolver:    resolver,
		warmer:      warmer,
		poolSize:    poolSize,
		logger:      logger,
	}
}

// Import ingests a report/export pair: parse both files, store the new
// operations, reconcile them, and derive the settlement status.
func (s *SettlementServiceImpl) Import(ctx context.Context, params *ImportParams) (*ImportResult, error) {
	hashPDF := settlement.ContentHash(params.PDFText)
	hashCSV := settlement.ContentHash(params.CSVData)

	existing, err := s.settlements.GetByContentHashes(ctx, hashPDF, hashCSV)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Info("Settlement pair already imported",
			"settlement_id", existing.ID.String(),
			"card_brand", params.CardBrand)
		return &ImportResult{
			SettlementID: existing.ID,
			Duplicate:    true,
			Status:       existing.Status,
		}, nil
	}

	csvResult := csvimport.Parse(params.CSVData)
	pdfText := string(params.PDFText)
	pdfResult := pdfimport.Parse(pdfText)

	settlementID := uuid.New()
	now := time.Now()
	cardBrand := strings.ToLower(strings.TrimSpace(params.CardBrand))

	lineDocs := s.buildLines(settlementID, cardBrand, pdfResult.Lines, now)
	txDocs := s.buildTransactions(settlementID, cardBrand, csvResult.Rows, now)

	uniqueLines, err := s.filterNewLines(ctx, lineDocs)
	if err != nil {
		return nil, err
	}
	uniqueTxs, txFingerprints, err := s.filterNewTransactions(ctx, txDocs)
	if err != nil {
		return nil, err
	}

	if len(uniqueLines) == 0 && len(uniqueTxs) == 0 {
		s.logger.Info("No new operations to import",
			"card_brand", cardBrand,
			"lines_seen", len(lineDocs),
			"transactions_seen", len(txDocs))
		return &ImportResult{Duplicate: true}, nil
	}

	candidates, err := s.candidatePool(ctx, uniqueTxs, txFingerprints)
	if err != nil {
		return nil, err
	}

	sett := &settlement.Settlement{
		ID:                 settlementID,
		Provider:           "fiserv",
		CardBrand:          cardBrand,
		LiquidationDate:    pdfimport.LiquidationDate(pdfText, lineDates(lineDocs)),
		LiquidationNumber:  pdfimport.LiquidationNumber(pdfText),
		SourcePDFName:      params.PDFName,
		SourceCSVName:      params.CSVName,
		HashPDF:            hashPDF,
		HashCSV:            hashCSV,
		DeclaredTotalCents: pdfResult.DeclaredTotalCents,
		Status:             shared.SettlementStatusImported,
		CurrencyIssues:     csvResult.CurrencyIssues,
		CreatedBy:          params.CreatedBy,
		CreatedAt:          now,
	}
	if err := s.settlements.Create(ctx, sett); err != nil {
		var dup settlement.ErrDuplicateSettlement
		if errors.As(err, &dup) {
			return &ImportResult{SettlementID: dup.ExistingID, Duplicate: true}, nil
		}
		return nil, err
	}

	if _, err := s.lines.CreateMany(ctx, uniqueLines); err != nil {
		return nil, err
	}
	if _, err := s.txs.CreateMany(ctx, uniqueTxs); err != nil {
		return nil, err
	}

	rows, err := s.runEngine(ctx, engine.Params{
		SettlementID: settlementID,
		Lines:        uniqueLines,
		Transactions: candidates,
		MatchedBy:    params.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	if err := s.recons.ReplaceForSettlement(ctx, settlementID, rows); err != nil {
		return nil, err
	}

	status := deriveStatus(rows, len(uniqueLines), len(uniqueTxs))
	if err := s.settlements.UpdateStatus(ctx, settlementID, status); err != nil {
		return nil, err
	}

	s.logger.Info("Settlement imported",
		"settlement_id", settlementID.String(),
		"card_brand", cardBrand,
		"status", string(status),
		"lines", len(uniqueLines),
		"transactions", len(uniqueTxs),
		"dropped_lines", len(pdfResult.Dropped),
		"skipped_rows", csvResult.Skipped)

	return &ImportResult{
		SettlementID:   settlementID,
		Status:         status,
		Summary:        summary.Build(rows, uniqueTxs, pdfResult.DeclaredTotalCents),
		CurrencyIssues: csvResult.CurrencyIssues,
		SkippedRows:    csvResult.Skipped,
		DroppedLines:   pdfResult.Dropped,
	}, nil
}

// GetByID retrieves a settlement with its rows and the computed summary
func (s *SettlementServiceImpl) GetByID(ctx context.Context, id uuid.UUID) (*SettlementDetail, error) {
	sett, err := s.settlements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	lines, err := s.lines.GetBySettlementID(ctx, id)
	if err != nil {
		return nil, err
	}
	txs, err := s.txs.GetBySettlementID(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.recons.GetBySettlementID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &SettlementDetail{
		Settlement:      sett,
		Lines:           lines,
		Transactions:    txs,
		Reconciliations: rows,
		Summary:         summary.Build(rows, txs, sett.DeclaredTotalCents),
	}, nil
}

// List retrieves paginated settlements with the total count
func (s *SettlementServiceImpl) List(ctx context.Context, page, perPage int) ([]*settlement.Settlement, int64, error) {
	offset := (page - 1) * perPage
	settlements, err := s.settlements.List(ctx, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.settlements.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return settlements, total, nil
}

// Reconcile re-runs the matching pass over the settlement's stored lines and
// transactions, replacing the previous unpaid rows.
func (s *SettlementServiceImpl) Reconcile(ctx context.Context, id uuid.UUID, matchedBy string) (*ReconcileResult, error) {
	sett, err := s.settlements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	lines, err := s.lines.GetBySettlementID(ctx, id)
	if err != nil {
		return nil, err
	}
	txs, err := s.txs.GetBySettlementID(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.runEngine(ctx, engine.Params{
		SettlementID: id,
		Lines:        lines,
		Transactions: txs,
		MatchedBy:    matchedBy,
	})
	if err != nil {
		return nil, err
	}
	if err := s.recons.ReplaceForSettlement(ctx, id, rows); err != nil {
		return nil, err
	}

	status := deriveStatus(rows, len(lines), len(txs))
	if err := s.settlements.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	s.logger.Info("Settlement re-reconciled",
		"settlement_id", id.String(),
		"status", string(status),
		"rows", len(rows))

	return &ReconcileResult{
		Status:  status,
		Summary: summary.Build(rows, txs, sett.DeclaredTotalCents),
	}, nil
}

// runEngine warms the resolver cache with the candidates' distinct order IDs
// and then runs the sequential matching pass.
func (s *SettlementServiceImpl) runEngine(ctx context.Context, params engine.Params) ([]*settlement.Reconciliation, error) {
	if s.warmer != nil {
		ids := make([]string, 0, len(params.Transactions))
		for _, tx := range params.Transactions {
			ids = append(ids, tx.OrderID)
		}
		if err := s.warmer.Warm(ctx, ids, s.poolSize); err != nil {
			s.logger.Warn("Resolver cache warming failed", "error", err)
		}
	}
	return engine.Reconcile(ctx, params, s.resolver)
}

func (s *SettlementServiceImpl) buildLines(settlementID uuid.UUID, cardBrand string, parsed []*pdfimport.Line, now time.Time) []*settlement.Line {
	docs := make([]*settlement.Line, 0, len(parsed))
	seen := make(map[string]struct{}, len(parsed))
	for _, p := range parsed {
		line := &settlement.Line{
			ID:           uuid.New(),
			SettlementID: settlementID,
			OpDate:       p.OpDate,
			Terminal:     p.Terminal,
			Lote:         p.Lote,
			Cupon:        p.Cupon,
			Last4:        p.Last4,
			AmountCents:  p.AmountCents,
			Type:         p.Type,
			PlanCuota:    p.PlanCuota,
			CuotaNumero:  p.CuotaNumero,
			CuotaTotal:   p.CuotaTotal,
			RawLine:      p.RawLine,
			CreatedAt:    now,
		}
		line.LineHash = settlement.LineFingerprint(cardBrand, line)
		if _, dup := seen[line.LineHash]; dup {
			continue
		}
		seen[line.LineHash] = struct{}{}
		docs = append(docs, line)
	}
	return docs
}

func (s *SettlementServiceImpl) buildTransactions(settlementID uuid.UUID, cardBrand string, rows []*csvimport.Row, now time.Time) []*settlement.Transaction {
	docs := make([]*settlement.Transaction, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		currency := r.Currency
		if currency == "" {
			currency = "ARS"
		}
		tx := &settlement.Transaction{
			ID:            uuid.New(),
			SettlementID:  settlementID,
			OrderID:       r.OrderID,
			TransactionID: r.TransactionID,
			Approval:      r.Approval,
			Last4:         r.Last4,
			AmountCents:   r.AmountCents,
			Currency:      currency,
			OpDate:        r.OpDate,
			OpDateTime:    r.OpDateTime,
			Terminal:      r.Terminal,
			Lote:          r.Lote,
			Cupon:         r.Cupon,
			CreatedAt:     now,
		}
		tx.TxHash = settlement.TransactionFingerprint(cardBrand, tx)
		if _, dup := seen[tx.TxHash]; dup {
			continue
		}
		seen[tx.TxHash] = struct{}{}
		docs = append(docs, tx)
	}
	return docs
}

func (s *SettlementServiceImpl) filterNewLines(ctx context.Context, docs []*settlement.Line) ([]*settlement.Line, error) {
	hashes := make([]string, len(docs))
	for i, d := range docs {
		hashes[i] = d.LineHash
	}
	existing, err := s.lines.ExistingFingerprints(ctx, hashes)
	if err != nil {
		return nil, err
	}
	fresh := make([]*settlement.Line, 0, len(docs))
	for _, d := range docs {
		if _, ok := existing[d.LineHash]; ok {
			continue
		}
		fresh = append(fresh, d)
	}
	return fresh, nil
}

func (s *SettlementServiceImpl) filterNewTransactions(ctx context.Context, docs []*settlement.Transaction) ([]*settlement.Transaction, []string, error) {
	hashes := make([]string, len(docs))
	for i, d := range docs {
		hashes[i] = d.TxHash
	}
	existing, err := s.txs.ExistingFingerprints(ctx, hashes)
	if err != nil {
		return nil, nil, err
	}
	fresh := make([]*settlement.Transaction, 0, len(docs))
	for _, d := range docs {
		if _, ok := existing[d.TxHash]; ok {
			continue
		}
		fresh = append(fresh, d)
	}
	return fresh, hashes, nil
}

// candidatePool joins the upload's new transactions with previously imported
// copies of the same operations that no reconciled or paid row has claimed.
func (s *SettlementServiceImpl) candidatePool(ctx context.Context, fresh []*settlement.Transaction, allFingerprints []string) ([]*settlement.Transaction, error) {
	stored, err := s.txs.GetByFingerprints(ctx, allFingerprints)
	if err != nil {
		return nil, err
	}
	consumed, err := s.recons.ConsumedFingerprints(ctx, allFingerprints)
	if err != nil {
		return nil, err
	}

	pool := make([]*settlement.Transaction, 0, len(fresh)+len(stored))
	pool = append(pool, fresh...)
	inPool := make(map[string]struct{}, len(fresh))
	for _, tx := range fresh {
		inPool[tx.TxHash] = struct{}{}
	}
	for _, tx := range stored {
		if _, ok := inPool[tx.TxHash]; ok {
			continue
		}
		if _, used := consumed[tx.TxHash]; used {
			continue
		}
		inPool[tx.TxHash] = struct{}{}
		pool = append(pool, tx)
	}
	return pool, nil
}

// deriveStatus routes the settlement to review when any row needs attention
// or when either side of the pair contributed nothing.
func deriveStatus(rows []*settlement.Reconciliation, lineCount, txCount int) shared.SettlementStatus {
	hasReview := lineCount == 0 || txCount == 0
	for _, row := range rows {
		if row.Status == shared.ReconStatusNeedsReview {
			hasReview = true
			break
		}
	}
	if hasReview {
		return shared.SettlementStatusNeedsReview
	}
	return shared.SettlementStatusReadyToPay
}

func lineDates(lines []*settlement.Line) []string {
	dates := make([]string, 0, len(lines))
	for _, line := range lines {
		dates = append(dates, line.OpDate)
	}
	return dates
}
