package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tillpoint/internal/domain/auth"
	"tillpoint/internal/infrastructure/http/v1/dto"
	"tillpoint/internal/infrastructure/http/v1/middleware"
)

// AuthHandler handles operator authentication endpoints.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
	repo    auth.Repository
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service, repo auth.Repository) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		service:     service,
		repo:        repo,
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	session, err := h.service.Login(ctx, req.ToCredentials())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSession(session))
}

// Register handles POST /auth/operators
func (h *AuthHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RegisterOperatorRequest
	if !h.BindJSON(c, &req) {
		return
	}

	op, err := h.service.RegisterOperator(ctx, req.Code, req.Name, req.Role, req.PIN)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromOperator(op))
}

// List handles GET /auth/operators
func (h *AuthHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	activeOnly := c.Query("activeOnly") != "false"
	operators, err := h.repo.List(ctx, activeOnly)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.OperatorResponse, len(operators))
	for n := range operators {
		items[n] = dto.FromOperator(&operators[n])
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: items, TotalCount: len(items)})
}

// ChangePIN handles POST /auth/change-pin
func (h *AuthHandler) ChangePIN(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ChangePINRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.ChangePIN(ctx, req.Code, req.CurrentPIN, req.NewPIN); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "pin changed")
}

// VerifyAuthorizer handles POST /auth/verify-authorizer.
// Confirms a supervisor override PIN without starting a session.
func (h *AuthHandler) VerifyAuthorizer(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.VerifyAuthorizerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	op, err := h.service.VerifyAuthorizer(ctx, req.Code, req.PIN)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AuthorizerResponse{Name: op.Name, Role: op.Role})
}

// RegisterPublicRoutes registers routes that need no session.
func (h *AuthHandler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.Login)
	rg.POST("/change-pin", h.ChangePIN)
}

// RegisterProtectedRoutes registers routes behind an active session.
func (h *AuthHandler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.POST("/verify-authorizer", h.VerifyAuthorizer)
	rg.GET("/operators", h.List)
	rg.POST("/operators", middleware.RequireRole(auth.RoleManager), h.Register)
}
