package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/settlement-reconciliation/internal/api_gateway/middleware"
	"github.com/settlement-reconciliation/internal/api_gateway/service"
	"github.com/settlement-reconciliation/internal/domain/payout"
)

// PayoutHandler handles HTTP requests for payout operations
type PayoutHandler struct {
	payoutService service.PayoutService
	logger        *slog.Logger
}

// NewPayoutHandler creates a new payout handler
func NewPayoutHandler(logger *slog.Logger, payoutService service.PayoutService) *PayoutHandler {
	return &PayoutHandler{
		payoutService: payoutService,
		logger:        logger,
	}
}

// Pending lists reconciled, unpaid amounts grouped by organizer
func (h *PayoutHandler) Pending(c *gin.Context) {
	pending, err := h.payoutService.PendingByOrganizer(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list pending payouts", "error", err)
		RespondInternalError(c)
		return
	}
	RespondOK(c, gin.H{"pending": pending})
}

// Create registers a payout batch and queues the paid transition
func (h *PayoutHandler) Create(c *gin.Context) {
	var req CreatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	reconciliationIDs := make([]uuid.UUID, 0, len(req.ReconciliationIDs))
	for _, raw := range req.ReconciliationIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.logger.Error("Invalid reconciliation ID", "id", raw, "error", err)
			RespondBadRequest(c, "Invalid reconciliation ID: "+raw)
			return
		}
		reconciliationIDs = append(reconciliationIDs, id)
	}

	batch, err := h.payoutService.RequestPayout(c.Request.Context(), &service.PayoutParams{
		OrganizerID:       req.OrganizerID,
		ReconciliationIDs: reconciliationIDs,
		BankReference:     req.BankReference,
		Note:              req.Note,
		RequestedBy:       req.RequestedBy,
		CorrelationID:     middleware.GetCorrelationID(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPayoutSetNotPayable):
			RespondConflict(c, "Some reconciliations are not payable")
		case errors.Is(err, service.ErrSettlementNotPayable):
			RespondConflict(c, "Some settlements are not ready to pay")
		default:
			h.logger.Error("Failed to register payout", "organizer_id", req.OrganizerID, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondAccepted(c, mapBatchToResponse(batch))
}

// List retrieves paginated payout batches
func (h *PayoutHandler) List(c *gin.Context) {
	var params PayoutListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Error("Invalid list parameters", "error", err)
		RespondBadRequest(c, "Invalid list parameters")
		return
	}

	filter := payout.ListFilter{OrganizerID: params.OrganizerID}
	if params.From != "" {
		from, _ := time.Parse("2006-01-02", params.From)
		filter.AppliedFrom = &from
	}
	if params.To != "" {
		to, _ := time.Parse("2006-01-02", params.To)
		filter.AppliedTo = &to
	}

	batches, err := h.payoutService.List(c.Request.Context(), filter, params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list payout batches", "error", err)
		RespondInternalError(c)
		return
	}

	var responses []PayoutBatchResponse
	for _, batch := range batches {
		responses = append(responses, mapBatchToResponse(batch))
	}
	RespondWithData(c, http.StatusOK, gin.H{"batches": responses})
}

// GetByID retrieves a payout batch, returns 404 if not found
func (h *PayoutHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid batch ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid batch ID")
		return
	}

	batch, err := h.payoutService.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, payout.ErrBatchNotFound{}) {
			RespondNotFound(c, "Payout batch not found")
			return
		}
		h.logger.Error("Failed to get payout batch", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapBatchToResponse(batch))
}

// mapBatchToResponse maps a payout batch to its response DTO
func mapBatchToResponse(batch *payout.Batch) PayoutBatchResponse {
	response := PayoutBatchResponse{
		ID:                batch.ID.String(),
		OrganizerID:       batch.OrganizerID,
		OrganizerName:     batch.OrganizerName,
		TotalCents:        batch.TotalCents,
		Currency:          batch.Currency,
		SettlementIDs:     uuidStrings(batch.SettlementIDs),
		ReconciliationIDs: uuidStrings(batch.ReconciliationIDs),
		BankReference:     batch.BankReference,
		Note:              batch.Note,
		Status:            string(batch.Status),
		CreatedBy:         batch.CreatedBy,
		CreatedAt:         batch.CreatedAt.Format(time.RFC3339),
	}
	if batch.AppliedAt != nil {
		response.AppliedAt = batch.AppliedAt.Format(time.RFC3339)
	}
	return response
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
