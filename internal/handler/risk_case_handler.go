package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-risk-api/internal/models"
	"github.com/noah-isme/sma-risk-api/internal/service"
	appErrors "github.com/noah-isme/sma-risk-api/pkg/errors"
	"github.com/noah-isme/sma-risk-api/pkg/response"
)

type riskCaseService interface {
	Create(ctx context.Context, req service.CreateRiskCaseRequest) (*models.RiskCase, bool, error)
	Get(ctx context.Context, id string) (*models.RiskCase, error)
	SetAssignee(ctx context.Context, id, actorID string) (*models.RiskCase, error)
	SetStatus(ctx context.Context, id string, status models.CaseStatus) (*models.RiskCase, error)
	ListOpen(ctx context.Context, filter models.RiskCaseFilter) ([]models.RiskCase, *models.Pagination, error)
	Summary(ctx context.Context) (map[models.RiskLevel]int, bool, error)
}

type resolutionService interface {
	Resolve(ctx context.Context, caseID string, req service.ResolveRiskCaseRequest) (*models.RiskCase, error)
}

type sweepRunner interface {
	Run(ctx context.Context) (*models.SweepResult, error)
}

// RiskCaseHandler exposes the risk case lifecycle endpoints.
type RiskCaseHandler struct {
	cases      riskCaseService
	resolution resolutionService
	sweep      sweepRunner
}

// NewRiskCaseHandler constructs RiskCaseHandler. Sweep may be nil when the
// sweep is disabled.
func NewRiskCaseHandler(cases riskCaseService, resolution resolutionService, sweep sweepRunner) *RiskCaseHandler {
	return &RiskCaseHandler{cases: cases, resolution: resolution, sweep: sweep}
}

// List godoc
// @Summary List open risk cases
// @Tags Risk Cases
// @Produce json
// @Param riskLevel query string false "Filter by risk level"
// @Param assignedTo query string false "Filter by assignee"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /risk-cases [get]
func (h *RiskCaseHandler) List(c *gin.Context) {
	var filter models.RiskCaseFilter
	if level := c.Query("riskLevel"); level != "" {
		parsed := models.RiskLevel(level)
		filter.RiskLevel = &parsed
	}
	filter.AssignedTo = c.Query("assignedTo")
	filter.StudentID = c.Query("studentId")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	cases, pagination, err := h.cases.ListOpen(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cases, pagination)
}

// Get godoc
// @Summary Get risk case detail
// @Tags Risk Cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /risk-cases/{id} [get]
func (h *RiskCaseHandler) Get(c *gin.Context) {
	riskCase, err := h.cases.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, riskCase, nil)
}

// Create godoc
// @Summary Open a risk case for a student
// @Tags Risk Cases
// @Accept json
// @Produce json
// @Param payload body service.CreateRiskCaseRequest true "Case payload"
// @Success 201 {object} response.Envelope
// @Router /risk-cases [post]
func (h *RiskCaseHandler) Create(c *gin.Context) {
	var req service.CreateRiskCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.IdentifiedBy = actorID(c)

	riskCase, incomplete, err := h.cases.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if incomplete {
		response.JSON(c, http.StatusCreated, riskCase, nil, map[string]interface{}{"incomplete_data": true})
		return
	}
	response.Created(c, riskCase)
}

type setAssigneeRequest struct {
	AssignedTo string `json:"assigned_to" binding:"required"`
}

// SetAssignee godoc
// @Summary Reassign an open risk case
// @Tags Risk Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body setAssigneeRequest true "Assignee payload"
// @Success 200 {object} response.Envelope
// @Router /risk-cases/{id}/assignee [patch]
func (h *RiskCaseHandler) SetAssignee(c *gin.Context) {
	var req setAssigneeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	riskCase, err := h.cases.SetAssignee(c.Request.Context(), c.Param("id"), req.AssignedTo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, riskCase, nil)
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetStatus godoc
// @Summary Switch a case between active and monitoring
// @Tags Risk Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body setStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /risk-cases/{id}/status [patch]
func (h *RiskCaseHandler) SetStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	riskCase, err := h.cases.SetStatus(c.Request.Context(), c.Param("id"), models.CaseStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, riskCase, nil)
}

// Resolve godoc
// @Summary Close a risk case as resolved or evaded
// @Tags Risk Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body service.ResolveRiskCaseRequest true "Resolution payload"
// @Success 200 {object} response.Envelope
// @Router /risk-cases/{id}/resolve [post]
func (h *RiskCaseHandler) Resolve(c *gin.Context) {
	var req service.ResolveRiskCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.ActorID = actorID(c)

	riskCase, err := h.resolution.Resolve(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, riskCase, nil)
}

// Summary godoc
// @Summary Open-case counts per risk level
// @Tags Risk Cases
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /risk-cases/summary [get]
func (h *RiskCaseHandler) Summary(c *gin.Context) {
	summary, cacheHit, err := h.cases.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"cache_hit": cacheHit})
}

// Sweep godoc
// @Summary Re-score all open cases now
// @Tags Risk Cases
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /risk-sweep [post]
func (h *RiskCaseHandler) Sweep(c *gin.Context) {
	if h.sweep == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "sweep disabled"))
		return
	}
	result, err := h.sweep.Run(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
