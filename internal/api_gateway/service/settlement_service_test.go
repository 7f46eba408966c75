package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/settlement-reconciliation/internal/domain/order"
	"github.com/settlement-reconciliation/internal/domain/settlement"
	"github.com/settlement-reconciliation/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) Create(ctx context.Context, s *settlement.Settlement) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSettlementRepository) GetByID(ctx context.Context, id uuid.UUID) (*settlement.Settlement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Settlement), args.Error(1)
}

func (m *MockSettlementRepository) GetByContentHashes(ctx context.Context, hashPDF, hashCSV string) (*settlement.Settlement, error) {
	args := m.Called(ctx, hashPDF, hashCSV)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Settlement), args.Error(1)
}

func (m *MockSettlementRepository) List(ctx context.Context, limit, offset int) ([]*settlement.Settlement, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlement.Settlement), args.Error(1)
}

func (m *MockSettlementRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSettlementRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status shared.SettlementStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type MockLineRepository struct {
	mock.Mock
}

func (m *MockLineRepository) CreateMany(ctx context.Context, lines []*settlement.Line) (int, error) {
	args := m.Called(ctx, lines)
	return args.Int(0), args.Error(1)
}

func (m *MockLineRepository) GetBySettlementID(ctx context.Context, settlementID uuid.UUID) ([]*settlement.Line, error) {
	args := m.Called(ctx, settlementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlement.Line), args.Error(1)
}

func (m *MockLineRepository) ExistingFingerprints(ctx context.Context, fingerprints []string) (map[string]struct{}, error) {
	args := m.Called(ctx, fingerprints)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CreateMany(ctx context.Context, txs []*settlement.Transaction) (int, error) {
	args := m.Called(ctx, txs)
	return args.Int(0), args.Error(1)
}

func (m *MockTransactionRepository) GetBySettlementID(ctx context.Context, settlementID uuid.UUID) ([]*settlement.Transaction, error) {
	args := m.Called(ctx, settlementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlement.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByFingerprints(ctx context.Context, fingerprints []string) ([]*settlement.Transaction, error) {
	args := m.Called(ctx, fingerprints)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlement.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ExistingFingerprints(ctx context.Context, fingerprints []string) (map[string]struct{}, error) {
	args := m.Called(ctx, fingerprints)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

type MockReconciliationRepository struct {
	mock.Mock
}

func (m *MockReconciliationRepository) ReplaceForSettlement(ctx context.Context, settlementID uuid.UUID, rows []*settlement.Reconciliation) error {
	args := m.Called(ctx, settlementID, rows)
	return args.Error(0)
}

func (m *MockReconciliationRepository) GetBySettlementID(ctx context.Context, settlementID uuid.UUID) ([]*settlement.Reconciliation, error) {
	args := m.Called(ctx, settlementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlement.Reconciliation), args.Error(1)
}

func (m *MockReconciliationRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*settlement.Reconciliation, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlement.Reconciliation), args.Error(1)
}

func (m *MockReconciliationRepository) ListPendingPayout(ctx context.Context) ([]*settlement.Reconciliation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlement.Reconciliation), args.Error(1)
}

func (m *MockReconciliationRepository) MarkPaid(ctx context.Context, ids []uuid.UUID, batchID uuid.UUID, paidAt time.Time) (int64, error) {
	args := m.Called(ctx, ids, batchID, paidAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReconciliationRepository) ConsumedFingerprints(ctx context.Context, fingerprints []string) (map[string]struct{}, error) {
	args := m.Called(ctx, fingerprints)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

type MockOrderResolver struct {
	mock.Mock
}

func (m *MockOrderResolver) Resolve(ctx context.Context, orderID string) (*order.Info, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Info), args.Error(1)
}

var (
	_ settlement.Repository               = (*MockSettlementRepository)(nil)
	_ settlement.LineRepository           = (*MockLineRepository)(nil)
	_ settlement.TransactionRepository    = (*MockTransactionRepository)(nil)
	_ settlement.ReconciliationRepository = (*MockReconciliationRepository)(nil)
	_ order.Resolver                      = (*MockOrderResolver)(nil)
)

type settlementMocks struct {
	settlements *MockSettlementRepository
	lines       *MockLineRepository
	txs         *MockTransactionRepository
	recons      *MockReconciliationRepository
	resolver    *MockOrderResolver
}

func newSettlementService(t *testing.T) (SettlementService, *settlementMocks) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	m := &settlementMocks{
		settlements: new(MockSettlementRepository),
		lines:       new(MockLineRepository),
		txs:         new(MockTransactionRepository),
		recons:      new(MockReconciliationRepository),
		resolver:    new(MockOrderResolver),
	}
	svc := NewSettlementService(logger, m.settlements, m.lines, m.txs, m.recons, m.resolver, nil, 4)
	return svc, m
}

// A report/export pair where the single operation matches exactly:
// same date, last4, amount and coupon on both sides.
var (
	testPDFText = []byte("LIQUIDACION\n" +
		"Fecha de Pago: 05/01/2026\n" +
		"Nro. Liquidacion: 4471\n" +
		"Venta Ctdo 02/01/2026 77428 2 14 5982 10,00\n")
	testCSVData = []byte("Pedido;Fecha;Importe;Moneda;Tarjeta;Terminal;Lote;Cupon\n" +
		"ORD-1001;02/01/2026;10,00;ARS;****5982;77428;2;14\n")
)

func TestSettlementServiceImpl_Import(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, m := newSettlementService(t)

		m.settlements.On("GetByContentHashes", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(nil, nil).Once()
		m.lines.On("ExistingFingerprints", ctx, mock.AnythingOfType("[]string")).Return(map[string]struct{}{}, nil).Once()
		m.txs.On("ExistingFingerprints", ctx, mock.AnythingOfType("[]string")).Return(map[string]struct{}{}, nil).Once()
		m.txs.On("GetByFingerprints", ctx, mock.AnythingOfType("[]string")).Return([]*settlement.Transaction{}, nil).Once()
		m.recons.On("ConsumedFingerprints", ctx, mock.AnythingOfType("[]string")).Return(map[string]struct{}{}, nil).Once()
		m.settlements.On("Create", ctx, mock.AnythingOfType("*settlement.Settlement")).Return(nil).Once()
		m.lines.On("CreateMany", ctx, mock.AnythingOfType("[]*settlement.Line")).Return(1, nil).Once()
		m.txs.On("CreateMany", ctx, mock.AnythingOfType("[]*settlement.Transaction")).Return(1, nil).Once()
		m.resolver.On("Resolve", ctx, "ORD-1001").Return(&order.Info{
			OrderID:       "ORD-1001",
			OrganizerID:   "org-9",
			OrganizerName: "Club Atletico",
		}, nil).Once()
		m.recons.On("ReplaceForSettlement", ctx, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("[]*settlement.Reconciliation")).Return(nil).Once()
		m.settlements.On("UpdateStatus", ctx, mock.AnythingOfType("uuid.UUID"), shared.SettlementStatusReadyToPay).Return(nil).Once()

		result, err := svc.Import(ctx, &ImportParams{
			CardBrand: "visa",
			PDFName:   "liq.pdf",
			CSVName:   "export.csv",
			PDFText:   testPDFText,
			CSVData:   testCSVData,
			CreatedBy: "operator@example.com",
		})

		require.NoError(t, err)
		assert.False(t, result.Duplicate)
		assert.NotEqual(t, uuid.Nil, result.SettlementID)
		assert.Equal(t, shared.SettlementStatusReadyToPay, result.Status)
		require.NotNil(t, result.Summary)
		assert.Equal(t, 1, result.Summary.Totals.Reconciled)
		assert.Empty(t, result.CurrencyIssues)

		createdSettlement := m.settlements.Calls[1].Arguments.Get(1).(*settlement.Settlement)
		assert.Equal(t, "visa", createdSettlement.CardBrand)
		assert.Equal(t, "2026-01-05", createdSettlement.LiquidationDate)
		assert.Equal(t, "4471", createdSettlement.LiquidationNumber)
		assert.Equal(t, shared.SettlementStatusImported, createdSettlement.Status)

		m.settlements.AssertExpectations(t)
		m.lines.AssertExpectations(t)
		m.txs.AssertExpectations(t)
		m.recons.AssertExpectations(t)
		m.resolver.AssertExpectations(t)
	})

	t.Run("DuplicatePair", func(t *testing.T) {
		svc, m := newSettlementService(t)
		existing := &settlement.Settlement{
			ID:     uuid.New(),
			Status: shared.SettlementStatusReadyToPay,
		}

		m.settlements.On("GetByContentHashes", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(existing, nil).Once()

		result, err := svc.Import(ctx, &ImportParams{
			CardBrand: "visa",
			PDFText:   testPDFText,
			CSVData:   testCSVData,
		})

		require.NoError(t, err)
		assert.True(t, result.Duplicate)
		assert.Equal(t, existing.ID, result.SettlementID)
		assert.Equal(t, shared.SettlementStatusReadyToPay, result.Status)
		m.settlements.AssertExpectations(t)
		m.lines.AssertNotCalled(t, "CreateMany", mock.Anything, mock.Anything)
	})

	t.Run("AllOperationsAlreadyImported", func(t *testing.T) {
		svc, m := newSettlementService(t)

		m.settlements.On("GetByContentHashes", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(nil, nil).Once()

		// The fingerprints are content-derived, so echo back every requested
		// hash as already stored.
		storedLines := make(map[string]struct{})
		m.lines.On("ExistingFingerprints", ctx, mock.AnythingOfType("[]string")).Run(func(a mock.Arguments) {
			for _, hash := range a.Get(1).([]string) {
				storedLines[hash] = struct{}{}
			}
		}).Return(storedLines, nil).Once()
		storedTxs := make(map[string]struct{})
		m.txs.On("ExistingFingerprints", ctx, mock.AnythingOfType("[]string")).Run(func(a mock.Arguments) {
			for _, hash := range a.Get(1).([]string) {
				storedTxs[hash] = struct{}{}
			}
		}).Return(storedTxs, nil).Once()

		result, err := svc.Import(ctx, &ImportParams{
			CardBrand: "visa",
			PDFText:   testPDFText,
			CSVData:   testCSVData,
		})

		require.NoError(t, err)
		assert.True(t, result.Duplicate)
		m.settlements.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("UnusableExportDegradesToReview", func(t *testing.T) {
		svc, m := newSettlementService(t)

		m.settlements.On("GetByContentHashes", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(nil, nil).Once()
		m.lines.On("ExistingFingerprints", ctx, mock.AnythingOfType("[]string")).Return(map[string]struct{}{}, nil).Once()
		m.txs.On("ExistingFingerprints", ctx, mock.AnythingOfType("[]string")).Return(map[string]struct{}{}, nil).Once()
		m.txs.On("GetByFingerprints", ctx, mock.AnythingOfType("[]string")).Return([]*settlement.Transaction{}, nil).Once()
		m.recons.On("ConsumedFingerprints", ctx, mock.AnythingOfType("[]string")).Return(map[string]struct{}{}, nil).Once()
		m.settlements.On("Create", ctx, mock.AnythingOfType("*settlement.Settlement")).Return(nil).Once()
		m.lines.On("CreateMany", ctx, mock.AnythingOfType("[]*settlement.Line")).Return(1, nil).Once()
		m.txs.On("CreateMany", ctx, mock.AnythingOfType("[]*settlement.Transaction")).Return(0, nil).Once()
		m.recons.On("ReplaceForSettlement", ctx, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("[]*settlement.Reconciliation")).Return(nil).Once()
		m.settlements.On("UpdateStatus", ctx, mock.AnythingOfType("uuid.UUID"), shared.SettlementStatusNeedsReview).Return(nil).Once()

		// An export without the expected columns contributes zero
		// transactions; the import still lands, flagged for review.
		result, err := svc.Import(ctx, &ImportParams{
			CardBrand: "visa",
			PDFText:   testPDFText,
			CSVData:   []byte("Columna A;Columna B\n02/01/2026;ARS\n"),
		})

		require.NoError(t, err)
		assert.False(t, result.Duplicate)
		assert.Equal(t, shared.SettlementStatusNeedsReview, result.Status)
		require.NotNil(t, result.Summary)
		assert.Zero(t, result.Summary.Totals.Transactions)
		assert.Equal(t, 1, result.Summary.Totals.NeedsReview)
		m.settlements.AssertExpectations(t)
	})
}

func TestSettlementServiceImpl_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, m := newSettlementService(t)
		settlementID := uuid.New()
		sett := &settlement.Settlement{ID: settlementID, Status: shared.SettlementStatusReadyToPay}
		lines := []*settlement.Line{{ID: uuid.New(), SettlementID: settlementID, AmountCents: 1000}}
		txs := []*settlement.Transaction{{ID: uuid.New(), SettlementID: settlementID, OrderID: "ORD-1", AmountCents: 1000}}
		rows := []*settlement.Reconciliation{{
			ID:           uuid.New(),
			SettlementID: settlementID,
			Status:       shared.ReconStatusReconciled,
			OrganizerID:  "org-1",
			AmountCents:  1000,
		}}

		m.settlements.On("GetByID", ctx, settlementID).Return(sett, nil).Once()
		m.lines.On("GetBySettlementID", ctx, settlementID).Return(lines, nil).Once()
		m.txs.On("GetBySettlementID", ctx, settlementID).Return(txs, nil).Once()
		m.recons.On("GetBySettlementID", ctx, settlementID).Return(rows, nil).Once()

		detail, err := svc.GetByID(ctx, settlementID)

		require.NoError(t, err)
		assert.Equal(t, sett, detail.Settlement)
		assert.Equal(t, lines, detail.Lines)
		assert.Equal(t, rows, detail.Reconciliations)
		require.NotNil(t, detail.Summary)
		assert.Equal(t, 1, detail.Summary.Totals.Reconciled)
		m.settlements.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc, m := newSettlementService(t)
		settlementID := uuid.New()

		m.settlements.On("GetByID", ctx, settlementID).Return(nil, settlement.ErrSettlementNotFound{ID: settlementID}).Once()

		detail, err := svc.GetByID(ctx, settlementID)

		assert.Nil(t, detail)
		assert.ErrorIs(t, err, settlement.ErrSettlementNotFound{})
		m.lines.AssertNotCalled(t, "GetBySettlementID", mock.Anything, mock.Anything)
	})
}

func TestSettlementServiceImpl_List(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, m := newSettlementService(t)
		settlements := []*settlement.Settlement{
			{ID: uuid.New(), Status: shared.SettlementStatusPaid},
			{ID: uuid.New(), Status: shared.SettlementStatusNeedsReview},
		}

		m.settlements.On("List", ctx, 10, 10).Return(settlements, nil).Once()
		m.settlements.On("Count", ctx).Return(int64(12), nil).Once()

		got, total, err := svc.List(ctx, 2, 10)

		require.NoError(t, err)
		assert.Equal(t, settlements, got)
		assert.Equal(t, int64(12), total)
		m.settlements.AssertExpectations(t)
	})

	t.Run("ListError", func(t *testing.T) {
		svc, m := newSettlementService(t)
		listErr := errors.New("db list error")

		m.settlements.On("List", ctx, 10, 0).Return(nil, listErr).Once()

		got, total, err := svc.List(ctx, 1, 10)

		assert.Nil(t, got)
		assert.Zero(t, total)
		assert.Equal(t, listErr, err)
		m.settlements.AssertNotCalled(t, "Count", mock.Anything)
	})
}

func TestSettlementServiceImpl_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("UnmatchedLineRoutesToReview", func(t *testing.T) {
		svc, m := newSettlementService(t)
		settlementID := uuid.New()
		sett := &settlement.Settlement{ID: settlementID, Status: shared.SettlementStatusNeedsReview}
		lines := []*settlement.Line{{
			ID:           uuid.New(),
			SettlementID: settlementID,
			OpDate:       "2026-01-02",
			Last4:        "5982",
			AmountCents:  1000,
			Type:         shared.LineTypeCashSale,
		}}

		m.settlements.On("GetByID", ctx, settlementID).Return(sett, nil).Once()
		m.lines.On("GetBySettlementID", ctx, settlementID).Return(lines, nil).Once()
		m.txs.On("GetBySettlementID", ctx, settlementID).Return([]*settlement.Transaction{}, nil).Once()
		m.recons.On("ReplaceForSettlement", ctx, settlementID, mock.AnythingOfType("[]*settlement.Reconciliation")).Return(nil).Once()
		m.settlements.On("UpdateStatus", ctx, settlementID, shared.SettlementStatusNeedsReview).Return(nil).Once()

		result, err := svc.Reconcile(ctx, settlementID, "operator@example.com")

		require.NoError(t, err)
		assert.Equal(t, shared.SettlementStatusNeedsReview, result.Status)
		require.NotNil(t, result.Summary)
		assert.Equal(t, 1, result.Summary.Totals.NeedsReview)
		m.settlements.AssertExpectations(t)
		m.recons.AssertExpectations(t)
	})

	t.Run("MatchedRunBecomesReadyToPay", func(t *testing.T) {
		svc, m := newSettlementService(t)
		settlementID := uuid.New()
		sett := &settlement.Settlement{ID: settlementID, Status: shared.SettlementStatusNeedsReview}
		lines := []*settlement.Line{{
			ID:           uuid.New(),
			SettlementID: settlementID,
			OpDate:       "2026-01-02",
			Last4:        "5982",
			Cupon:        "14",
			AmountCents:  1000,
			Type:         shared.LineTypeCashSale,
		}}
		txs := []*settlement.Transaction{{
			ID:           uuid.New(),
			SettlementID: settlementID,
			OrderID:      "ORD-1001",
			OpDate:       "2026-01-02",
			Last4:        "5982",
			Cupon:        "14",
			AmountCents:  1000,
			TxHash:       "txhash-1",
		}}

		m.settlements.On("GetByID", ctx, settlementID).Return(sett, nil).Once()
		m.lines.On("GetBySettlementID", ctx, settlementID).Return(lines, nil).Once()
		m.txs.On("GetBySettlementID", ctx, settlementID).Return(txs, nil).Once()
		m.resolver.On("Resolve", ctx, "ORD-1001").Return(&order.Info{
			OrderID:       "ORD-1001",
			OrganizerID:   "org-9",
			OrganizerName: "Club Atletico",
		}, nil).Once()
		m.recons.On("ReplaceForSettlement", ctx, settlementID, mock.AnythingOfType("[]*settlement.Reconciliation")).Return(nil).Once()
		m.settlements.On("UpdateStatus", ctx, settlementID, shared.SettlementStatusReadyToPay).Return(nil).Once()

		result, err := svc.Reconcile(ctx, settlementID, "operator@example.com")

		require.NoError(t, err)
		assert.Equal(t, shared.SettlementStatusReadyToPay, result.Status)

		rows := m.recons.Calls[0].Arguments.Get(2).([]*settlement.Reconciliation)
		require.Len(t, rows, 1)
		assert.Equal(t, shared.ReconStatusReconciled, rows[0].Status)
		assert.Equal(t, "org-9", rows[0].OrganizerID)
		assert.Equal(t, "txhash-1", rows[0].TxFingerprint)
		m.resolver.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc, m := newSettlementService(t)
		settlementID := uuid.New()

		m.settlements.On("GetByID", ctx, settlementID).Return(nil, settlement.ErrSettlementNotFound{ID: settlementID}).Once()

		result, err := svc.Reconcile(ctx, settlementID, "")

		assert.Nil(t, result)
		assert.ErrorIs(t, err, settlement.ErrSettlementNotFound{})
		m.lines.AssertNotCalled(t, "GetBySettlementID", mock.Anything, mock.Anything)
	})
}
