package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/ledger"
	"tillpoint/internal/infrastructure/http/v1/dto"
)

// LedgerHandler exposes the append-only stock movement log.
type LedgerHandler struct {
	*BaseHandler
	repo ledger.Repository
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(base *BaseHandler, repo ledger.Repository) *LedgerHandler {
	return &LedgerHandler{
		BaseHandler: base,
		repo:        repo,
	}
}

// GetMovements handles GET /ledger/movements
func (h *LedgerHandler) GetMovements(c *gin.Context) {
	ctx := c.Request.Context()

	itemIDStr := c.Query("itemId")
	if itemIDStr == "" {
		h.Error(c, apperror.NewValidation("itemId is required"))
		return
	}
	itemID, err := id.Parse(itemIDStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid itemId format"))
		return
	}

	filter := ledger.MovementFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}
	if kindStr := c.Query("kind"); kindStr != "" {
		kind := ledger.MovementKind(kindStr)
		if !ledger.IsValidKind(kind) {
			h.Error(c, apperror.NewValidation("unknown movement kind").
				WithDetail("kind", kindStr))
			return
		}
		filter.Kind = &kind
	}
	if fromStr := c.Query("fromDate"); fromStr != "" {
		if parsed, err := time.Parse(time.RFC3339, fromStr); err == nil {
			filter.FromDate = &parsed
		}
	}
	if toStr := c.Query("toDate"); toStr != "" {
		if parsed, err := time.Parse(time.RFC3339, toStr); err == nil {
			filter.ToDate = &parsed
		}
	}

	movements, err := h.repo.GetMovementHistory(ctx, itemID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      movements,
		TotalCount: len(movements),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// GetMovementsByReference handles GET /ledger/movements/reference/:referenceId.
// Lists every movement a sale or batch produced.
func (h *LedgerHandler) GetMovementsByReference(c *gin.Context) {
	ctx := c.Request.Context()

	referenceID, err := id.Parse(c.Param("referenceId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid referenceId format"))
		return
	}

	movements, err := h.repo.GetMovementsByReference(ctx, referenceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: movements, TotalCount: len(movements)})
}

// GetTurnover handles GET /ledger/turnover
func (h *LedgerHandler) GetTurnover(c *gin.Context) {
	ctx := c.Request.Context()

	fromStr := c.Query("fromDate")
	toStr := c.Query("toDate")
	if fromStr == "" || toStr == "" {
		h.Error(c, apperror.NewValidation("fromDate and toDate are required"))
		return
	}

	fromDate, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid fromDate format, expected RFC3339"))
		return
	}
	toDate, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid toDate format, expected RFC3339"))
		return
	}

	filter := ledger.TurnoverFilter{
		FromDate: fromDate,
		ToDate:   toDate,
	}
	if itemIDStr := c.Query("itemId"); itemIDStr != "" {
		parsed, err := id.Parse(itemIDStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid itemId format"))
			return
		}
		filter.ItemID = &parsed
	}

	turnover, err := h.repo.GetTurnover(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, turnover)
}

// RegisterRoutes registers ledger routes.
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/movements", h.GetMovements)
	rg.GET("/movements/reference/:referenceId", h.GetMovementsByReference)
	rg.GET("/turnover", h.GetTurnover)
}
