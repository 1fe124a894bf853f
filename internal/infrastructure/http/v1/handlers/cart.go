package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/auth"
	"tillpoint/internal/domain/catalogs/item"
	"tillpoint/internal/domain/sale"
	"tillpoint/internal/infrastructure/http/v1/dto"
)

// CartHandler drives the sale-in-progress: one open cart per terminal,
// mutated at the register and committed through the orchestrator.
type CartHandler struct {
	*BaseHandler
	carts        *sale.CartRegistry
	items        *item.Service
	pricer       sale.Pricer
	authorizers  *auth.Service
	orchestrator *sale.Orchestrator
	sales        sale.Repository
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(
	base *BaseHandler,
	carts *sale.CartRegistry,
	items *item.Service,
	pricer sale.Pricer,
	authorizers *auth.Service,
	orchestrator *sale.Orchestrator,
	sales sale.Repository,
) *CartHandler {
	return &CartHandler{
		BaseHandler:  base,
		carts:        carts,
		items:        items,
		pricer:       pricer,
		authorizers:  authorizers,
		orchestrator: orchestrator,
		sales:        sales,
	}
}

func (h *CartHandler) terminal(c *gin.Context) (string, bool) {
	terminalID := h.TerminalID(c)
	if terminalID == "" {
		h.Error(c, apperror.NewValidation("terminal is not identified"))
		return "", false
	}
	return terminalID, true
}

// Get handles GET /cart
func (h *CartHandler) Get(c *gin.Context) {
	terminalID, ok := h.terminal(c)
	if !ok {
		return
	}
	cart := h.carts.Get(terminalID)
	c.JSON(http.StatusOK, dto.FromCart(terminalID, cart))
}

// AddLine handles POST /cart/lines.
// Accepts an item ID or, from the scanner, a barcode.
func (h *CartHandler) AddLine(c *gin.Context) {
	ctx := c.Request.Context()

	terminalID, ok := h.terminal(c)
	if !ok {
		return
	}

	var req dto.AddLineRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var it *item.StockItem
	var err error
	switch {
	case req.Barcode != "":
		it, err = h.items.GetByBarcode(ctx, req.Barcode)
	case req.ItemID != "":
		var itemID id.ID
		itemID, err = id.Parse(req.ItemID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid itemId format"))
			return
		}
		it, err = h.items.GetByID(ctx, itemID)
	default:
		h.Error(c, apperror.NewValidation("itemId or barcode is required"))
		return
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	quantity := req.Quantity
	if quantity.IsZero() {
		quantity = types.NewQuantityFromFloat64(1)
	}

	cart := h.carts.Get(terminalID)
	if _, err := cart.AddLine(it, quantity); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromCart(terminalID, cart))
}

// UpdateLine handles PUT /cart/lines/:lineId
func (h *CartHandler) UpdateLine(c *gin.Context) {
	terminalID, ok := h.terminal(c)
	if !ok {
		return
	}

	lineID, err := id.Parse(c.Param("lineId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid lineId format"))
		return
	}

	var req dto.UpdateLineRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cart := h.carts.Get(terminalID)
	if err := cart.UpdateQuantity(lineID, req.Quantity); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromCart(terminalID, cart))
}

// RemoveLine handles DELETE /cart/lines/:lineId
func (h *CartHandler) RemoveLine(c *gin.Context) {
	terminalID, ok := h.terminal(c)
	if !ok {
		return
	}

	lineID, err := id.Parse(c.Param("lineId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid lineId format"))
		return
	}

	cart := h.carts.Get(terminalID)
	if err := cart.RemoveLine(lineID); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromCart(terminalID, cart))
}

// Clear handles DELETE /cart
func (h *CartHandler) Clear(c *gin.Context) {
	terminalID, ok := h.terminal(c)
	if !ok {
		return
	}
	h.carts.Drop(terminalID)
	h.NoContent(c)
}

// ApplyDiscount handles POST /cart/discount.
// The authorizer confirms by PIN; the cashier's own session is not enough.
func (h *CartHandler) ApplyDiscount(c *gin.Context) {
	ctx := c.Request.Context()

	terminalID, ok := h.terminal(c)
	if !ok {
		return
	}

	var req dto.ManualDiscountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	authorizer, err := h.authorizers.VerifyAuthorizer(ctx, req.AuthorizerCode, req.AuthorizerPIN)
	if err != nil {
		h.Error(c, err)
		return
	}

	cart := h.carts.Get(terminalID)
	err = sale.ApplyManualDiscount(cart, req.Amount, sale.DiscountMeta{
		Reason:     req.Reason,
		Authorizer: authorizer.Name,
		Role:       authorizer.Role,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromCart(terminalID, cart))
}

// PreviewDiscount handles GET /cart/preview.
// Advisory display of the stacked promotion discount; checkout reprices
// authoritatively.
func (h *CartHandler) PreviewDiscount(c *gin.Context) {
	ctx := c.Request.Context()

	terminalID, ok := h.terminal(c)
	if !ok {
		return
	}

	cart := h.carts.Get(terminalID)
	discount, err := h.pricer.PreviewDiscount(ctx, sale.PromoView(cart.CloneLines()))
	if err != nil {
		h.Error(c, err)
		return
	}

	subtotal := cart.Subtotal()
	c.JSON(http.StatusOK, dto.DiscountPreviewResponse{
		Discount: discount,
		Subtotal: subtotal,
		Total:    subtotal.Sub(discount),
	})
}

// Checkout handles POST /cart/checkout
func (h *CartHandler) Checkout(c *gin.Context) {
	ctx := c.Request.Context()

	terminalID, ok := h.terminal(c)
	if !ok {
		return
	}

	var req dto.CheckoutRequest
	if !h.BindJSON(c, &req) {
		return
	}

	checkout, err := req.ToCheckout(terminalID)
	if err != nil {
		h.Error(c, err)
		return
	}

	cart := h.carts.Get(terminalID)
	committed, err := h.orchestrator.Checkout(ctx, cart, checkout)
	if err != nil {
		h.Error(c, err)
		return
	}

	// The committed sale is final; the terminal starts the next one fresh.
	h.carts.Drop(terminalID)

	h.CompleteIdempotency(c, http.StatusCreated, "application/json", committed)
	c.JSON(http.StatusCreated, committed)
}

// GetSale handles GET /sales/:id
func (h *CartHandler) GetSale(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	s, err := h.sales.GetByID(ctx, saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, s)
}

// GetSaleByTicket handles GET /sales/ticket/:ticket
func (h *CartHandler) GetSaleByTicket(c *gin.Context) {
	ctx := c.Request.Context()

	s, err := h.sales.GetByTicket(ctx, c.Param("ticket"))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, s)
}

// ListSales handles GET /sales
func (h *CartHandler) ListSales(c *gin.Context) {
	ctx := c.Request.Context()

	filter := sale.ListFilter{
		TerminalID: c.Query("terminalId"),
		Limit:      h.ParseIntQuery(c, "limit", 100),
		Offset:     h.ParseIntQuery(c, "offset", 0),
	}
	if fromStr := c.Query("fromDate"); fromStr != "" {
		if parsed, err := time.Parse(time.RFC3339, fromStr); err == nil {
			filter.From = &parsed
		}
	}
	if toStr := c.Query("toDate"); toStr != "" {
		if parsed, err := time.Parse(time.RFC3339, toStr); err == nil {
			filter.To = &parsed
		}
	}

	sales, err := h.sales.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      sales,
		TotalCount: len(sales),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// RegisterCartRoutes registers the terminal cart routes.
func (h *CartHandler) RegisterCartRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Get)
	rg.DELETE("", h.Clear)
	rg.POST("/lines", h.AddLine)
	rg.PUT("/lines/:lineId", h.UpdateLine)
	rg.DELETE("/lines/:lineId", h.RemoveLine)
	rg.POST("/discount", h.ApplyDiscount)
	rg.GET("/preview", h.PreviewDiscount)
	rg.POST("/checkout", h.Checkout)
}

// RegisterSaleRoutes registers the committed sale routes.
func (h *CartHandler) RegisterSaleRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListSales)
	rg.GET("/:id", h.GetSale)
	rg.GET("/ticket/:ticket", h.GetSaleByTicket)
}
