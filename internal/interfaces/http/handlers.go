package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ledger-consolidation/internal/application/port"
	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	decisions port.DecisionStore
	runs      port.RunRepository
	logger    Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(decisions port.DecisionStore, runs port.RunRepository, logger Logger) *Handlers {
	return &Handlers{decisions: decisions, runs: runs, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// StatsResponse counts stored decisions
type StatsResponse struct {
	Mappings     int `json:"mappings"`
	Eliminations int `json:"eliminations"`
}

type pageQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

func (q *pageQuery) normalize() {
	if q.Limit <= 0 || q.Limit > maxLimit {
		q.Limit = defaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

func validStatus(s string) bool {
	return s == "" || s == entity.DecisionStatusApproved || s == entity.DecisionStatusRejected
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// ListMappings handles GET /api/mappings
func (h *Handlers) ListMappings(c *gin.Context) {
	var q struct {
		pageQuery
		SourceOrg string `form:"source_org"`
		TargetOrg string `form:"target_org"`
	}
	if err := c.ShouldBindQuery(&q); err != nil || !validStatus(q.Status) {
		badRequest(c, "invalid query parameters")
		return
	}
	q.normalize()

	records, err := h.decisions.ListMappings(c.Request.Context(), port.MappingFilter{
		SourceOrgID: q.SourceOrg,
		TargetOrgID: q.TargetOrg,
		Status:      q.Status,
		Limit:       q.Limit,
		Offset:      q.Offset,
	})
	if err != nil {
		h.logger.Error("Failed to list mappings", "error", err)
		internalError(c, "failed to list mappings")
		return
	}
	if records == nil {
		records = []*entity.MappingRecord{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// ListEliminations handles GET /api/eliminations
func (h *Handlers) ListEliminations(c *gin.Context) {
	var q struct {
		pageQuery
		Period string `form:"period"`
	}
	if err := c.ShouldBindQuery(&q); err != nil || !validStatus(q.Status) {
		badRequest(c, "invalid query parameters")
		return
	}
	q.normalize()

	records, err := h.decisions.ListEliminations(c.Request.Context(), port.EliminationFilter{
		Period: q.Period,
		Status: q.Status,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		h.logger.Error("Failed to list eliminations", "error", err)
		internalError(c, "failed to list eliminations")
		return
	}
	if records == nil {
		records = []*entity.EliminationRecord{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// ListRuns handles GET /api/runs
func (h *Handlers) ListRuns(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	q.normalize()

	runs, err := h.runs.ListRecent(c.Request.Context(), q.Limit)
	if err != nil {
		h.logger.Error("Failed to list runs", "error", err)
		internalError(c, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*entity.ReconciliationRun{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: runs})
}

// GetRun handles GET /api/runs/:id
func (h *Handlers) GetRun(c *gin.Context) {
	run, err := h.runs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to get run", "run_id", c.Param("id"), "error", err)
		internalError(c, "failed to get run")
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "run not found"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: run})
}

// Stats handles GET /api/stats
func (h *Handlers) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	mappings, err := h.decisions.CountMappings(ctx)
	if err != nil {
		h.logger.Error("Failed to count mappings", "error", err)
		internalError(c, "failed to count decisions")
		return
	}
	eliminations, err := h.decisions.CountEliminations(ctx)
	if err != nil {
		h.logger.Error("Failed to count eliminations", "error", err)
		internalError(c, "failed to count decisions")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: StatsResponse{Mappings: mappings, Eliminations: eliminations}})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

func internalError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Response{Success: false, Error: msg})
}
