package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/settlement-reconciliation/internal/api_gateway/service"
	"github.com/settlement-reconciliation/internal/domain/settlement"
)

// SettlementHandler handles HTTP requests for settlement operations
type SettlementHandler struct {
	settlementService service.SettlementService
	maxUploadBytes    int64
	logger            *slog.Logger
}

// NewSettlementHandler creates a new settlement handler
func NewSettlementHandler(logger *slog.Logger, settlementService service.SettlementService, maxUploadBytes int64) *SettlementHandler {
	return &SettlementHandler{
		settlementService: settlementService,
		maxUploadBytes:    maxUploadBytes,
		logger:            logger,
	}
}

// Upload ingests a report/export pair sent as multipart form data. The "pdf"
// part carries the extracted report text, "csv" the merchant export.
func (h *SettlementHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	cardBrand := c.PostForm("card_brand")
	if cardBrand == "" {
		RespondBadRequest(c, "card_brand is required")
		return
	}

	pdfName, pdfText, err := h.readFilePart(c, "pdf")
	if err != nil {
		h.logger.Error("Failed to read pdf part", "error", err)
		RespondBadRequest(c, "pdf file is required")
		return
	}
	csvName, csvData, err := h.readFilePart(c, "csv")
	if err != nil {
		h.logger.Error("Failed to read csv part", "error", err)
		RespondBadRequest(c, "csv file is required")
		return
	}

	result, err := h.settlementService.Import(c.Request.Context(), &service.ImportParams{
		CardBrand: cardBrand,
		PDFName:   pdfName,
		CSVName:   csvName,
		PDFText:   pdfText,
		CSVData:   csvData,
		CreatedBy: c.PostForm("created_by"),
	})
	if err != nil {
		h.logger.Error("Failed to import settlement", "card_brand", cardBrand, "error", err)
		RespondInternalError(c)
		return
	}

	response := mapImportResultToResponse(result)
	if result.Duplicate {
		RespondOK(c, response)
		return
	}
	RespondCreated(c, response)
}

// GetByID retrieves a settlement with its rows and summary, returns 404 if not found
func (h *SettlementHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid settlement ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid settlement ID")
		return
	}

	detail, err := h.settlementService.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, settlement.ErrSettlementNotFound{}) {
			RespondNotFound(c, "Settlement not found")
			return
		}
		h.logger.Error("Failed to get settlement", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, gin.H{
		"settlement":      detail.Settlement,
		"lines":           detail.Lines,
		"transactions":    detail.Transactions,
		"reconciliations": detail.Reconciliations,
		"summary":         detail.Summary,
	})
}

// List retrieves paginated settlements, newest first
func (h *SettlementHandler) List(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	settlements, total, err := h.settlementService.List(c.Request.Context(), pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list settlements", "error", err)
		RespondInternalError(c)
		return
	}

	var responses []SettlementResponse
	for _, sett := range settlements {
		responses = append(responses, mapSettlementToResponse(sett))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, pagination.Page, pagination.PerPage, int(total))
}

// Reconcile re-runs the matching pass over the settlement's stored operations
func (h *SettlementHandler) Reconcile(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid settlement ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid settlement ID")
		return
	}

	result, err := h.settlementService.Reconcile(c.Request.Context(), id, c.PostForm("matched_by"))
	if err != nil {
		if errors.Is(err, settlement.ErrSettlementNotFound{}) {
			RespondNotFound(c, "Settlement not found")
			return
		}
		h.logger.Error("Failed to reconcile settlement", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, ReconcileResponse{
		Status:  string(result.Status),
		Summary: result.Summary,
	})
}

func (h *SettlementHandler) readFilePart(c *gin.Context, name string) (string, []byte, error) {
	fileHeader, err := c.FormFile(name)
	if err != nil {
		return "", nil, err
	}
	file, err := fileHeader.Open()
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, err
	}
	return fileHeader.Filename, data, nil
}

func mapImportResultToResponse(result *service.ImportResult) UploadResponse {
	return UploadResponse{
		SettlementID:   result.SettlementID.String(),
		Duplicate:      result.Duplicate,
		Status:         string(result.Status),
		Summary:        result.Summary,
		CurrencyIssues: result.CurrencyIssues,
		SkippedRows:    result.SkippedRows,
		DroppedLines:   result.DroppedLines,
	}
}

// mapSettlementToResponse maps a settlement to its list response DTO
func mapSettlementToResponse(sett *settlement.Settlement) SettlementResponse {
	return SettlementResponse{
		ID:                sett.ID.String(),
		Provider:          sett.Provider,
		CardBrand:         sett.CardBrand,
		LiquidationDate:   sett.LiquidationDate,
		LiquidationNumber: sett.LiquidationNumber,
		SourcePDFName:     sett.SourcePDFName,
		SourceCSVName:     sett.SourceCSVName,
		Status:            string(sett.Status),
		CurrencyIssues:    sett.CurrencyIssues,
		CreatedBy:         sett.CreatedBy,
		CreatedAt:         sett.CreatedAt.Format(time.RFC3339),
	}
}
