package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/settlement-reconciliation/internal/api_gateway/service"
	"github.com/settlement-reconciliation/internal/domain/payout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPayoutService struct {
	mock.Mock
}

func (m *MockPayoutService) PendingByOrganizer(ctx context.Context) ([]*service.PendingPayout, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.PendingPayout), args.Error(1)
}

func (m *MockPayoutService) RequestPayout(ctx context.Context, params *service.PayoutParams) (*payout.Batch, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.Batch), args.Error(1)
}

func (m *MockPayoutService) List(ctx context.Context, filter payout.ListFilter, page, perPage int) ([]*payout.Batch, error) {
	args := m.Called(ctx, filter, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payout.Batch), args.Error(1)
}

func (m *MockPayoutService) GetByID(ctx context.Context, id uuid.UUID) (*payout.Batch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.Batch), args.Error(1)
}

var _ service.PayoutService = (*MockPayoutService)(nil)

func TestPayoutHandler_Pending(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockPayoutService)
		handler := NewPayoutHandler(logger, mockService)

		pending := []*service.PendingPayout{{
			OrganizerID:   "org-1",
			OrganizerName: "Club Atletico",
			TotalCents:    3500,
			Count:         2,
		}}
		mockService.On("PendingByOrganizer", mock.Anything).Return(pending, nil).Once()

		router := setupTestRouter()
		router.GET("/payouts/pending", handler.Pending)

		req, _ := http.NewRequest(http.MethodGet, "/payouts/pending", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "org-1")
		assert.Contains(t, rr.Body.String(), "3500")
		mockService.AssertExpectations(t)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockPayoutService)
		handler := NewPayoutHandler(logger, mockService)

		mockService.On("PendingByOrganizer", mock.Anything).Return(nil, errors.New("mongo unavailable")).Once()

		router := setupTestRouter()
		router.GET("/payouts/pending", handler.Pending)

		req, _ := http.NewRequest(http.MethodGet, "/payouts/pending", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestPayoutHandler_Create(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	reconciliationIDs := []uuid.UUID{uuid.New(), uuid.New()}
	validBody := func() []byte {
		body, _ := json.Marshal(CreatePayoutRequest{
			OrganizerID:       "org-1",
			ReconciliationIDs: []string{reconciliationIDs[0].String(), reconciliationIDs[1].String()},
			BankReference:     "TRF-2026-0117",
			RequestedBy:       "operator@example.com",
		})
		return body
	}

	t.Run("Accepted", func(t *testing.T) {
		mockService := new(MockPayoutService)
		handler := NewPayoutHandler(logger, mockService)

		batch := &payout.Batch{
			ID:                uuid.New(),
			OrganizerID:       "org-1",
			TotalCents:        3500,
			Currency:          "ARS",
			ReconciliationIDs: reconciliationIDs,
			Status:            payout.BatchStatusPending,
		}
		mockService.On("RequestPayout", mock.Anything, mock.MatchedBy(func(p *service.PayoutParams) bool {
			return p.OrganizerID == "org-1" && len(p.ReconciliationIDs) == 2 && p.BankReference == "TRF-2026-0117"
		})).Return(batch, nil).Once()

		router := setupTestRouter()
		router.POST("/payouts", handler.Create)

		req, _ := http.NewRequest(http.MethodPost, "/payouts", bytes.NewBuffer(validBody()))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusAccepted, rr.Code)

		var topLevelResponse Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &topLevelResponse))
		var responseBody PayoutBatchResponse
		dataBytes, err := json.Marshal(topLevelResponse.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(dataBytes, &responseBody))
		assert.Equal(t, batch.ID.String(), responseBody.ID)
		assert.Equal(t, string(payout.BatchStatusPending), responseBody.Status)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidRequestBody", func(t *testing.T) {
		mockService := new(MockPayoutService)
		handler := NewPayoutHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/payouts", handler.Create)

		req, _ := http.NewRequest(http.MethodPost, "/payouts", bytes.NewBufferString(`{"organizer_id":"org-1"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "RequestPayout", mock.Anything, mock.Anything)
	})

	t.Run("NotPayableSetReturnsConflict", func(t *testing.T) {
		mockService := new(MockPayoutService)
		handler := NewPayoutHandler(logger, mockService)

		mockService.On("RequestPayout", mock.Anything, mock.AnythingOfType("*service.PayoutParams")).Return(nil, service.ErrPayoutSetNotPayable).Once()

		router := setupTestRouter()
		router.POST("/payouts", handler.Create)

		req, _ := http.NewRequest(http.MethodPost, "/payouts", bytes.NewBuffer(validBody()))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("NonPayableSettlementReturnsConflict", func(t *testing.T) {
		mockService := new(MockPayoutService)
		handler := NewPayoutHandler(logger, mockService)

		mockService.On("RequestPayout", mock.Anything, mock.AnythingOfType("*service.PayoutParams")).Return(nil, service.ErrSettlementNotPayable).Once()

		router := setupTestRouter()
		router.POST("/payouts", handler.Create)

		req, _ := http.NewRequest(http.MethodPost, "/payouts", bytes.NewBuffer(validBody()))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockPayoutService)
		handler := NewPayoutHandler(logger, mockService)

		mockService.On("RequestPayout", mock.Anything, mock.AnythingOfType("*service.PayoutParams")).Return(nil, errors.New("kafka unavailable")).Once()

		router := setupTestRouter()
		router.POST("/payouts", handler.Create)

		req, _ := http.NewRequest(http.MethodPost, "/payouts", bytes.NewBuffer(validBody()))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestPayoutHandler_GetByID(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockPayoutService)
		handler := NewPayoutHandler(logger, mockService)

		batch := &payout.Batch{ID: uuid.New(), Status: payout.BatchStatusApplied}
		mockService.On("GetByID", mock.Anything, batch.ID).Return(batch, nil).Once()

		router := setupTestRouter()
		router.GET("/payouts/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/payouts/"+batch.ID.String(), nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockPayoutService)
		handler := NewPayoutHandler(logger, mockService)

		batchID := uuid.New()
		mockService.On("GetByID", mock.Anything, batchID).Return(nil, payout.ErrBatchNotFound{ID: batchID}).Once()

		router := setupTestRouter()
		router.GET("/payouts/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/payouts/"+batchID.String(), nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidID", func(t *testing.T) {
		mockService := new(MockPayoutService)
		handler := NewPayoutHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/payouts/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/payouts/not-a-uuid", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})
}

func TestPayoutHandler_List(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockPayoutService)
		handler := NewPayoutHandler(logger, mockService)

		batches := []*payout.Batch{{ID: uuid.New(), OrganizerID: "org-1"}}
		mockService.On("List", mock.Anything, payout.ListFilter{}, 1, 10).Return(batches, nil).Once()

		router := setupTestRouter()
		router.GET("/payouts", handler.List)

		req, _ := http.NewRequest(http.MethodGet, "/payouts", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "org-1")
		mockService.AssertExpectations(t)
	})

	t.Run("OrganizerAndDateFilter", func(t *testing.T) {
		mockService := new(MockPayoutService)
		handler := NewPayoutHandler(logger, mockService)

		mockService.On("List", mock.Anything, mock.MatchedBy(func(f payout.ListFilter) bool {
			return f.OrganizerID == "org-2" &&
				f.AppliedFrom != nil && f.AppliedFrom.Format("2006-01-02") == "2026-01-01" &&
				f.AppliedTo != nil && f.AppliedTo.Format("2006-01-02") == "2026-02-01"
		}), 1, 10).Return([]*payout.Batch{}, nil).Once()

		router := setupTestRouter()
		router.GET("/payouts", handler.List)

		req, _ := http.NewRequest(http.MethodGet, "/payouts?organizer_id=org-2&from=2026-01-01&to=2026-02-01", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidDateFilter", func(t *testing.T) {
		mockService := new(MockPayoutService)
		handler := NewPayoutHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/payouts", handler.List)

		req, _ := http.NewRequest(http.MethodGet, "/payouts?from=not-a-date", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
