package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/manufacturing"
	"tillpoint/internal/infrastructure/http/v1/dto"
)

// ManufacturingHandler handles process recipes and batch runs.
type ManufacturingHandler struct {
	*BaseHandler
	processes manufacturing.ProcessRepository
	batches   manufacturing.BatchRepository
	executor  *manufacturing.Executor
}

// NewManufacturingHandler creates a new manufacturing handler.
func NewManufacturingHandler(
	base *BaseHandler,
	processes manufacturing.ProcessRepository,
	batches manufacturing.BatchRepository,
	executor *manufacturing.Executor,
) *ManufacturingHandler {
	return &ManufacturingHandler{
		BaseHandler: base,
		processes:   processes,
		batches:     batches,
		executor:    executor,
	}
}

// --- Processes ---

// CreateProcess handles POST /manufacturing/processes
func (h *ManufacturingHandler) CreateProcess(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateProcessRequest
	if !h.BindJSON(c, &req) {
		return
	}

	process, err := req.ToProcess()
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := process.Validate(ctx); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.processes.Create(ctx, process); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, process.ID.String())
}

// GetProcess handles GET /manufacturing/processes/:id
func (h *ManufacturingHandler) GetProcess(c *gin.Context) {
	ctx := c.Request.Context()

	processID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	process, err := h.processes.GetByID(ctx, processID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, process)
}

// ListProcesses handles GET /manufacturing/processes
func (h *ManufacturingHandler) ListProcesses(c *gin.Context) {
	ctx := c.Request.Context()

	includeDeleted := c.Query("includeDeleted") == "true"
	processes, err := h.processes.List(ctx, includeDeleted)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: processes, TotalCount: len(processes)})
}

// UpdateProcess handles PUT /manufacturing/processes/:id
func (h *ManufacturingHandler) UpdateProcess(c *gin.Context) {
	ctx := c.Request.Context()

	processID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateProcessRequest
	if !h.BindJSON(c, &req) {
		return
	}

	process, err := h.processes.GetByID(ctx, processID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := req.Apply(process); err != nil {
		h.Error(c, err)
		return
	}
	if err := process.Validate(ctx); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.processes.Update(ctx, process); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, process)
}

// MaxYield handles GET /manufacturing/processes/:id/max-yield
func (h *ManufacturingHandler) MaxYield(c *gin.Context) {
	ctx := c.Request.Context()

	processID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	maxYield, err := h.executor.ComputeMaxYield(ctx, processID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MaxYieldResponse{
		ProcessID: processID.String(),
		MaxYield:  maxYield,
	})
}

// --- Batches ---

// PlanBatch handles POST /manufacturing/batches
func (h *ManufacturingHandler) PlanBatch(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.PlanBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	processID, err := id.Parse(req.ProcessID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid processId format"))
		return
	}

	batch, err := h.executor.PlanBatch(ctx, processID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.CompleteIdempotency(c, http.StatusCreated, "application/json", batch)
	c.JSON(http.StatusCreated, batch)
}

// GetBatch handles GET /manufacturing/batches/:id
func (h *ManufacturingHandler) GetBatch(c *gin.Context) {
	ctx := c.Request.Context()

	batchID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	batch, err := h.batches.GetByID(ctx, batchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

// ListBatches handles GET /manufacturing/batches
func (h *ManufacturingHandler) ListBatches(c *gin.Context) {
	ctx := c.Request.Context()

	filter := manufacturing.BatchFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}
	if pStr := c.Query("processId"); pStr != "" {
		parsed, err := id.Parse(pStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid processId format"))
			return
		}
		filter.ProcessID = &parsed
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status := manufacturing.BatchStatus(statusStr)
		filter.Status = &status
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

	batches, err := h.batches.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      batches,
		TotalCount: len(batches),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// ExecuteBatch handles POST /manufacturing/batches/:id/execute
func (h *ManufacturingHandler) ExecuteBatch(c *gin.Context) {
	ctx := c.Request.Context()

	batchID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	batch, err := h.executor.ExecuteBatch(ctx, batchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, batch)
}

// CancelBatch handles POST /manufacturing/batches/:id/cancel
func (h *ManufacturingHandler) CancelBatch(c *gin.Context) {
	ctx := c.Request.Context()

	batchID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	batch, err := h.executor.CancelBatch(ctx, batchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, batch)
}

// RegisterRoutes registers manufacturing routes.
func (h *ManufacturingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	processes := rg.Group("/processes")
	{
		processes.POST("", h.CreateProcess)
		processes.GET("", h.ListProcesses)
		processes.GET("/:id", h.GetProcess)
		processes.PUT("/:id", h.UpdateProcess)
		processes.GET("/:id/max-yield", h.MaxYield)
	}

	batches := rg.Group("/batches")
	{
		batches.POST("", h.PlanBatch)
		batches.GET("", h.ListBatches)
		batches.GET("/:id", h.GetBatch)
		batches.POST("/:id/execute", h.ExecuteBatch)
		batches.POST("/:id/cancel", h.CancelBatch)
	}
}
