package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/auth"
	"tillpoint/internal/domain/catalogs/item"
	"tillpoint/internal/infrastructure/http/v1/dto"
	"tillpoint/internal/infrastructure/http/v1/middleware"
)

// ItemHandler handles HTTP requests for the stock item catalog.
type ItemHandler struct {
	*BaseHandler
	service *item.Service
}

// NewItemHandler creates a new item handler.
func NewItemHandler(base *BaseHandler, service *item.Service) *ItemHandler {
	return &ItemHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /items
func (h *ItemHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	it, err := req.ToItem()
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.service.Create(ctx, it); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, it.ID.String())
}

// Get handles GET /items/:id
func (h *ItemHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	it, err := h.service.GetByID(ctx, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, it)
}

// GetByBarcode handles GET /items/barcode/:barcode.
// Scanner boundary: resolves a scanned code to the item the cart adds.
func (h *ItemHandler) GetByBarcode(c *gin.Context) {
	ctx := c.Request.Context()

	it, err := h.service.GetByBarcode(ctx, c.Param("barcode"))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, it)
}

// List handles GET /items
func (h *ItemHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := item.ListFilter{
		Search:      c.Query("search"),
		ForSaleOnly: c.Query("forSale") == "true",
		Limit:       h.ParseIntQuery(c, "limit", 100),
		Offset:      h.ParseIntQuery(c, "offset", 0),
	}
	if typeStr := c.Query("type"); typeStr != "" {
		itemType := item.ItemType(typeStr)
		filter.Type = &itemType
	}

	items, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: len(items),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// Update handles PUT /items/:id
func (h *ItemHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	it, err := h.service.GetByID(ctx, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := req.Apply(it); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.service.Update(ctx, it); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, it)
}

// Adjust handles POST /items/:id/adjust
func (h *ItemHandler) Adjust(c *gin.Context) {
	ctx := c.Request.Context()

	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	movement, err := h.service.Adjust(ctx, itemID, req.Delta, req.Reason, h.ActorName(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, movement)
}

// Delete handles DELETE /items/:id
func (h *ItemHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(ctx, itemID, h.ActorName(c)); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// RegisterRoutes registers item catalog routes.
func (h *ItemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", middleware.RequireRole(auth.RoleSupervisor, auth.RoleManager), h.Delete)
	rg.GET("/barcode/:barcode", h.GetByBarcode)
	rg.POST("/:id/adjust", middleware.RequireRole(auth.RoleSupervisor, auth.RoleManager), h.Adjust)
}
