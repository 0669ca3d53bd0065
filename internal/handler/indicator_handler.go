package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-risk-api/internal/models"
	"github.com/noah-isme/sma-risk-api/internal/service"
	"github.com/noah-isme/sma-risk-api/pkg/response"
)

type indicatorComputer interface {
	Compute(ctx context.Context, studentID string) (models.RiskIndicators, error)
}

// IndicatorHandler exposes read-only indicator and scoring endpoints so the
// UI can preview a student's standing without opening a case.
type IndicatorHandler struct {
	indicators indicatorComputer
}

// NewIndicatorHandler constructs IndicatorHandler.
func NewIndicatorHandler(indicators indicatorComputer) *IndicatorHandler {
	return &IndicatorHandler{indicators: indicators}
}

// Indicators godoc
// @Summary Compute fresh risk indicators for a student
// @Tags Risk Indicators
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/risk-indicators [get]
func (h *IndicatorHandler) Indicators(c *gin.Context) {
	indicators, err := h.indicators.Compute(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"incomplete_data": indicators.IncompleteData}
	response.JSON(c, http.StatusOK, indicators, nil, meta)
}

// Score godoc
// @Summary Compute and score risk indicators without persisting
// @Tags Risk Indicators
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/risk-score [post]
func (h *IndicatorHandler) Score(c *gin.Context) {
	indicators, err := h.indicators.Compute(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	score := service.ScoreRisk(indicators)
	payload := gin.H{"indicators": indicators, "score": score}
	meta := map[string]interface{}{"incomplete_data": indicators.IncompleteData}
	response.JSON(c, http.StatusOK, payload, nil, meta)
}
