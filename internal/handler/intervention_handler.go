package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-risk-api/internal/models"
	"github.com/noah-isme/sma-risk-api/internal/service"
	appErrors "github.com/noah-isme/sma-risk-api/pkg/errors"
	"github.com/noah-isme/sma-risk-api/pkg/response"
)

type interventionService interface {
	Add(ctx context.Context, caseID string, req service.AddInterventionRequest) (*models.Intervention, error)
	List(ctx context.Context, caseID string) ([]models.Intervention, error)
}

// InterventionHandler exposes the intervention ledger endpoints.
type InterventionHandler struct {
	interventions interventionService
}

// NewInterventionHandler constructs InterventionHandler.
func NewInterventionHandler(interventions interventionService) *InterventionHandler {
	return &InterventionHandler{interventions: interventions}
}

// List godoc
// @Summary List interventions for a case
// @Tags Interventions
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /risk-cases/{id}/interventions [get]
func (h *InterventionHandler) List(c *gin.Context) {
	interventions, err := h.interventions.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, interventions, nil)
}

// Create godoc
// @Summary Record an intervention against an open case
// @Tags Interventions
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body service.AddInterventionRequest true "Intervention payload"
// @Success 201 {object} response.Envelope
// @Router /risk-cases/{id}/interventions [post]
func (h *InterventionHandler) Create(c *gin.Context) {
	var req service.AddInterventionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.PerformedBy = actorID(c)

	intervention, err := h.interventions.Add(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, intervention)
}
