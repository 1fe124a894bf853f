package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/reports"
	"tillpoint/internal/infrastructure/http/v1/dto"
	"tillpoint/internal/infrastructure/storage/postgres"
)

// ReportsHandler exposes read-only analytics over committed sales.
type ReportsHandler struct {
	*BaseHandler
	repo  reports.Repository
	audit *postgres.AuditService
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, repo reports.Repository, audit *postgres.AuditService) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		repo:        repo,
		audit:       audit,
	}
}

func (h *ReportsHandler) dateRange(c *gin.Context) (time.Time, time.Time, bool) {
	fromStr := c.Query("fromDate")
	toStr := c.Query("toDate")
	if fromStr == "" || toStr == "" {
		h.Error(c, apperror.NewValidation("fromDate and toDate are required"))
		return time.Time{}, time.Time{}, false
	}

	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid fromDate format, expected RFC3339"))
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid toDate format, expected RFC3339"))
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// SalesSummary handles GET /reports/sales-summary.
// End-of-day totals per day and terminal.
func (h *ReportsHandler) SalesSummary(c *gin.Context) {
	ctx := c.Request.Context()

	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}

	summary, err := h.repo.GetSalesSummary(ctx, reports.SalesSummaryFilter{
		From:       from,
		To:         to,
		TerminalID: c.Query("terminalId"),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// TopItems handles GET /reports/top-items
func (h *ReportsHandler) TopItems(c *gin.Context) {
	ctx := c.Request.Context()

	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}

	rows, err := h.repo.GetTopItems(ctx, from, to, h.ParseIntQuery(c, "limit", 10))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: rows, TotalCount: len(rows)})
}

// DiscountAudits handles GET /reports/discount-audits.
// Lists manually discounted sales for supervisor review.
func (h *ReportsHandler) DiscountAudits(c *gin.Context) {
	ctx := c.Request.Context()

	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}

	rows, err := h.repo.GetDiscountAudits(ctx, from, to)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: rows, TotalCount: len(rows)})
}

// EntityHistory handles GET /reports/audit/:entityType/:entityId.
// Returns the compressed snapshot trail recorded for an entity.
func (h *ReportsHandler) EntityHistory(c *gin.Context) {
	ctx := c.Request.Context()

	entityID, err := id.Parse(c.Param("entityId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid entityId format"))
		return
	}

	entries, err := h.audit.GetEntityHistory(ctx, c.Param("entityType"), entityID, h.ParseIntQuery(c, "limit", 50))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: entries, TotalCount: len(entries)})
}

// RegisterRoutes registers report routes.
func (h *ReportsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sales-summary", h.SalesSummary)
	rg.GET("/top-items", h.TopItems)
	rg.GET("/discount-audits", h.DiscountAudits)
	rg.GET("/audit/:entityType/:entityId", h.EntityHistory)
}
