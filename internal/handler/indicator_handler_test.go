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
	"github.com/noah-isme/sma-risk-api/pkg/response"
)

type indicatorComputerMock struct {
	indicators models.RiskIndicators
	err        error
	lastID     string
}

func (m *indicatorComputerMock) Compute(ctx context.Context, studentID string) (models.RiskIndicators, error) {
	m.lastID = studentID
	return m.indicators, m.err
}

func TestIndicatorHandlerIndicators(t *testing.T) {
	mockSvc := &indicatorComputerMock{indicators: models.RiskIndicators{
		StudentID:            "s1",
		AttendancePercentage: 72,
		GradeAverage:         5.5,
		IncompleteData:       true,
	}}
	handler := NewIndicatorHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/students/s1/risk-indicators", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.Indicators(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", mockSvc.lastID)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Meta)
	assert.Equal(t, true, envelope.Meta["incomplete_data"])
}

func TestIndicatorHandlerScore(t *testing.T) {
	mockSvc := &indicatorComputerMock{indicators: models.RiskIndicators{
		StudentID:            "s1",
		AttendancePercentage: 60,
		GradeAverage:         4.5,
		AbsencesLast30Days:   4,
		MissedActivities:     1,
	}}
	handler := NewIndicatorHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/students/s1/risk-score", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.Score(c)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data struct {
			Score models.RiskScore `json:"score"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 52, envelope.Data.Score.Score)
	assert.Equal(t, models.RiskLevelHigh, envelope.Data.Score.Level)
}
