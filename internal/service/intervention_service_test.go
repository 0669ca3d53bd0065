package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-api/internal/models"
	appErrors "github.com/noah-isme/sma-risk-api/pkg/errors"
)

type mockInterventionRepo struct {
	ledger    []models.Intervention
	createErr error
}

func (m *mockInterventionRepo) Create(ctx context.Context, intervention *models.Intervention) error {
	if m.createErr != nil {
		return m.createErr
	}
	intervention.ID = "int-1"
	intervention.PerformedAt = time.Now().UTC()
	m.ledger = append(m.ledger, *intervention)
	return nil
}

func (m *mockInterventionRepo) ListByCase(ctx context.Context, riskCaseID string) ([]models.Intervention, error) {
	return m.ledger, nil
}

type mockCaseReader struct {
	cases map[string]*models.RiskCase
}

func (m *mockCaseReader) FindByID(ctx context.Context, id string) (*models.RiskCase, error) {
	if c, ok := m.cases[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func TestInterventionServiceAdd(t *testing.T) {
	repo := &mockInterventionRepo{}
	svc := NewInterventionService(repo, &mockCaseReader{}, nil, zap.NewNop())

	intervention, err := svc.Add(context.Background(), "case-1", AddInterventionRequest{
		Description: "called guardian, agreed on weekly check-in",
		PerformedBy: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "case-1", intervention.RiskCaseID)
	assert.Equal(t, "u1", intervention.PerformedBy)
	assert.False(t, intervention.PerformedAt.IsZero())
	assert.Len(t, repo.ledger, 1)
}

func TestInterventionServiceAddRequiresDescription(t *testing.T) {
	svc := NewInterventionService(&mockInterventionRepo{}, &mockCaseReader{}, nil, zap.NewNop())

	_, err := svc.Add(context.Background(), "case-1", AddInterventionRequest{PerformedBy: "u1"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestInterventionServiceAddToClosedCase(t *testing.T) {
	repo := &mockInterventionRepo{createErr: appErrors.Clone(appErrors.ErrCaseClosed, "cannot add intervention to a closed case")}
	svc := NewInterventionService(repo, &mockCaseReader{}, nil, zap.NewNop())

	_, err := svc.Add(context.Background(), "case-1", AddInterventionRequest{
		Description: "late follow-up",
		PerformedBy: "u1",
	})
	assert.True(t, errors.Is(err, appErrors.ErrCaseClosed))
}

func TestInterventionServiceAddToMissingCase(t *testing.T) {
	repo := &mockInterventionRepo{createErr: appErrors.Clone(appErrors.ErrNotFound, "risk case not found")}
	svc := NewInterventionService(repo, &mockCaseReader{}, nil, zap.NewNop())

	_, err := svc.Add(context.Background(), "ghost", AddInterventionRequest{
		Description: "follow-up",
		PerformedBy: "u1",
	})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestInterventionServiceListMissingCase(t *testing.T) {
	svc := NewInterventionService(&mockInterventionRepo{}, &mockCaseReader{}, nil, zap.NewNop())

	_, err := svc.List(context.Background(), "ghost")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestInterventionServiceListSurvivesCaseClosure(t *testing.T) {
	// The ledger stays readable after the case is sealed.
	repo := &mockInterventionRepo{ledger: []models.Intervention{
		{ID: "int-1", RiskCaseID: "case-1", Description: "first call"},
		{ID: "int-2", RiskCaseID: "case-1", Description: "home visit"},
	}}
	reader := &mockCaseReader{cases: map[string]*models.RiskCase{
		"case-1": {ID: "case-1", Status: models.CaseStatusResolved},
	}}
	svc := NewInterventionService(repo, reader, nil, zap.NewNop())

	ledger, err := svc.List(context.Background(), "case-1")
	require.NoError(t, err)
	assert.Len(t, ledger, 2)
}
