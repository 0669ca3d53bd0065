package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-risk-api/internal/models"
	"github.com/noah-isme/sma-risk-api/internal/service"
	appErrors "github.com/noah-isme/sma-risk-api/pkg/errors"
	"github.com/noah-isme/sma-risk-api/pkg/response"
)

type interventionServiceMock struct {
	addResp    *models.Intervention
	addErr     error
	listResp   []models.Intervention
	listErr    error
	lastCaseID string
	lastReq    service.AddInterventionRequest
}

func (m *interventionServiceMock) Add(ctx context.Context, caseID string, req service.AddInterventionRequest) (*models.Intervention, error) {
	m.lastCaseID = caseID
	m.lastReq = req
	return m.addResp, m.addErr
}

func (m *interventionServiceMock) List(ctx context.Context, caseID string) ([]models.Intervention, error) {
	m.lastCaseID = caseID
	return m.listResp, m.listErr
}

func TestInterventionHandlerCreate(t *testing.T) {
	mockSvc := &interventionServiceMock{addResp: &models.Intervention{ID: "int-1", RiskCaseID: "case-1"}}
	handler := NewInterventionHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/risk-cases/case-1/interventions",
		[]byte(`{"description":"called guardian"}`))
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "case-1", mockSvc.lastCaseID)
	assert.Equal(t, "called guardian", mockSvc.lastReq.Description)
	assert.Equal(t, "counselor-1", mockSvc.lastReq.PerformedBy)
}

func TestInterventionHandlerCreateClosedCase(t *testing.T) {
	mockSvc := &interventionServiceMock{addErr: appErrors.ErrCaseClosed}
	handler := NewInterventionHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/risk-cases/case-1/interventions",
		[]byte(`{"description":"too late"}`))
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}
	handler.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "CASE_CLOSED", envelope.Error.Code)
}

func TestInterventionHandlerCreateInvalidBody(t *testing.T) {
	handler := NewInterventionHandler(&interventionServiceMock{})

	c, w := testContext(t, http.MethodPost, "/risk-cases/case-1/interventions", []byte(`{`))
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInterventionHandlerList(t *testing.T) {
	mockSvc := &interventionServiceMock{listResp: []models.Intervention{
		{ID: "int-1", Description: "first call"},
	}}
	handler := NewInterventionHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/risk-cases/case-1/interventions", nil)
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "case-1", mockSvc.lastCaseID)
}
