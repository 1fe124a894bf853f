package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/promo"
	"tillpoint/internal/infrastructure/http/v1/dto"
)

// PromotionHandler handles HTTP requests for promotion definitions.
type PromotionHandler struct {
	*BaseHandler
	repo promo.Repository
}

// NewPromotionHandler creates a new promotion handler.
func NewPromotionHandler(base *BaseHandler, repo promo.Repository) *PromotionHandler {
	return &PromotionHandler{
		BaseHandler: base,
		repo:        repo,
	}
}

// Create handles POST /promotions
func (h *PromotionHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreatePromotionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	def, err := req.ToDefinition()
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := def.Validate(ctx); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.repo.Create(ctx, def); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, def.ID.String())
}

// Get handles GET /promotions/:id
func (h *PromotionHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	defID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	def, err := h.repo.GetByID(ctx, defID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, def)
}

// ListActive handles GET /promotions/active.
// Returns definitions active at the given time (default now), in
// evaluation order.
func (h *PromotionHandler) ListActive(c *gin.Context) {
	ctx := c.Request.Context()

	at := time.Now().UTC()
	if atStr := c.Query("at"); atStr != "" {
		parsed, err := time.Parse(time.RFC3339, atStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid at format, expected RFC3339"))
			return
		}
		at = parsed
	}

	defs, err := h.repo.ListActive(ctx, at)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: defs, TotalCount: len(defs)})
}

// Update handles PUT /promotions/:id
func (h *PromotionHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	defID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdatePromotionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	def, err := h.repo.GetByID(ctx, defID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := req.Apply(def); err != nil {
		h.Error(c, err)
		return
	}
	if err := def.Validate(ctx); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.repo.Update(ctx, def); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, def)
}

// SetDeletionMark handles PATCH /promotions/:id/deletion-mark
func (h *PromotionHandler) SetDeletionMark(c *gin.Context) {
	ctx := c.Request.Context()

	defID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.SetDeletionMarkRequest
	if !h.BindJSON(c, &req) {
		return
	}

	def, err := h.repo.GetByID(ctx, defID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if req.Marked {
		def.MarkDeleted()
	} else {
		def.Undelete()
	}
	if err := h.repo.Update(ctx, def); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "deletion mark updated")
}

// RegisterRoutes registers promotion routes.
func (h *PromotionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("/active", h.ListActive)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.PATCH("/:id/deletion-mark", h.SetDeletionMark)
}
