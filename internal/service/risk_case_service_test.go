package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-api/internal/models"
	appErrors "github.com/noah-isme/sma-risk-api/pkg/errors"
)

type mockRiskCaseRepo struct {
	cases       map[string]*models.RiskCase
	openByStud  map[string]*models.RiskCase
	created     *models.RiskCase
	createErr   error
	updateRows  int64
	updateErr   error
	summaryRows []models.RiskCaseSummaryRow
	lastStatus  models.CaseStatus
}

func (m *mockRiskCaseRepo) Create(ctx context.Context, riskCase *models.RiskCase) error {
	if m.createErr != nil {
		return m.createErr
	}
	riskCase.ID = "case-1"
	m.created = riskCase
	return nil
}

func (m *mockRiskCaseRepo) FindByID(ctx context.Context, id string) (*models.RiskCase, error) {
	if c, ok := m.cases[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRiskCaseRepo) FindOpenByStudent(ctx context.Context, studentID string) (*models.RiskCase, error) {
	if c, ok := m.openByStud[studentID]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRiskCaseRepo) UpdateAssignee(ctx context.Context, id, actorID string) (int64, error) {
	return m.updateRows, m.updateErr
}

func (m *mockRiskCaseRepo) UpdateStatus(ctx context.Context, id string, status models.CaseStatus) (int64, error) {
	m.lastStatus = status
	return m.updateRows, m.updateErr
}

func (m *mockRiskCaseRepo) UpdateScore(ctx context.Context, id string, indicators models.RiskIndicators, score models.RiskScore) (int64, error) {
	return m.updateRows, m.updateErr
}

func (m *mockRiskCaseRepo) ListOpen(ctx context.Context, filter models.RiskCaseFilter) ([]models.RiskCase, int, error) {
	result := make([]models.RiskCase, 0, len(m.openByStud))
	for _, c := range m.openByStud {
		result = append(result, *c)
	}
	return result, len(result), nil
}

func (m *mockRiskCaseRepo) SummaryByLevel(ctx context.Context) ([]models.RiskCaseSummaryRow, error) {
	return m.summaryRows, nil
}

type mockStudentReader struct {
	students map[string]models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockIndicatorComputer struct {
	indicators models.RiskIndicators
	err        error
}

func (m *mockIndicatorComputer) Compute(ctx context.Context, studentID string) (models.RiskIndicators, error) {
	if m.err != nil {
		return models.RiskIndicators{}, m.err
	}
	indicators := m.indicators
	indicators.StudentID = studentID
	return indicators, nil
}

func newCaseService(repo *mockRiskCaseRepo, students *mockStudentReader, computer *mockIndicatorComputer) *RiskCaseService {
	return NewRiskCaseService(repo, students, computer, nil, nil, nil, zap.NewNop(), 0)
}

func TestRiskCaseServiceCreateOpensActiveCase(t *testing.T) {
	repo := &mockRiskCaseRepo{}
	students := &mockStudentReader{students: map[string]models.Student{"s1": {ID: "s1", Active: true}}}
	computer := &mockIndicatorComputer{indicators: models.RiskIndicators{
		AttendancePercentage: 60,
		GradeAverage:         4.5,
		AbsencesLast30Days:   4,
		MissedActivities:     1,
	}}
	svc := newCaseService(repo, students, computer)

	riskCase, incomplete, err := svc.Create(context.Background(), CreateRiskCaseRequest{StudentID: "s1", IdentifiedBy: "u1"})
	require.NoError(t, err)
	assert.False(t, incomplete)
	assert.Equal(t, models.CaseStatusActive, riskCase.Status)
	assert.Equal(t, 52, riskCase.RiskScore)
	assert.Equal(t, models.RiskLevelHigh, riskCase.RiskLevel)
	assert.Equal(t, 60.0, riskCase.AttendancePercentage)
	assert.Equal(t, "u1", riskCase.IdentifiedBy)
	require.NotNil(t, repo.created)
}

func TestRiskCaseServiceCreateConflictWhenCaseOpen(t *testing.T) {
	repo := &mockRiskCaseRepo{openByStud: map[string]*models.RiskCase{
		"s1": {ID: "case-1", StudentID: "s1", Status: models.CaseStatusMonitoring},
	}}
	students := &mockStudentReader{students: map[string]models.Student{"s1": {ID: "s1"}}}
	svc := newCaseService(repo, students, &mockIndicatorComputer{})

	_, _, err := svc.Create(context.Background(), CreateRiskCaseRequest{StudentID: "s1", IdentifiedBy: "u1"})
	assert.True(t, errors.Is(err, appErrors.ErrCaseConflict))
}

func TestRiskCaseServiceCreatePropagatesIndexConflict(t *testing.T) {
	// The fast path missed a concurrent create; the repo surfaces the
	// unique index violation instead.
	repo := &mockRiskCaseRepo{createErr: appErrors.Clone(appErrors.ErrCaseConflict, "")}
	students := &mockStudentReader{students: map[string]models.Student{"s1": {ID: "s1"}}}
	svc := newCaseService(repo, students, &mockIndicatorComputer{indicators: models.RiskIndicators{AttendancePercentage: 100, GradeAverage: 10}})

	_, _, err := svc.Create(context.Background(), CreateRiskCaseRequest{StudentID: "s1", IdentifiedBy: "u1"})
	assert.True(t, errors.Is(err, appErrors.ErrCaseConflict))
}

func TestRiskCaseServiceCreateUnknownStudent(t *testing.T) {
	svc := newCaseService(&mockRiskCaseRepo{}, &mockStudentReader{}, &mockIndicatorComputer{})

	_, _, err := svc.Create(context.Background(), CreateRiskCaseRequest{StudentID: "ghost", IdentifiedBy: "u1"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestRiskCaseServiceCreateMissingPayload(t *testing.T) {
	svc := newCaseService(&mockRiskCaseRepo{}, &mockStudentReader{}, &mockIndicatorComputer{})

	_, _, err := svc.Create(context.Background(), CreateRiskCaseRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestRiskCaseServiceCreateAfterResolutionSucceeds(t *testing.T) {
	// A resolved case does not block a new one; only open cases count.
	repo := &mockRiskCaseRepo{
		cases: map[string]*models.RiskCase{
			"old": {ID: "old", StudentID: "s1", Status: models.CaseStatusResolved},
		},
	}
	students := &mockStudentReader{students: map[string]models.Student{"s1": {ID: "s1"}}}
	computer := &mockIndicatorComputer{indicators: models.RiskIndicators{AttendancePercentage: 100, GradeAverage: 10}}
	svc := newCaseService(repo, students, computer)

	riskCase, _, err := svc.Create(context.Background(), CreateRiskCaseRequest{StudentID: "s1", IdentifiedBy: "u1"})
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusActive, riskCase.Status)
}

func TestRiskCaseServiceCreateFlagsIncompleteData(t *testing.T) {
	repo := &mockRiskCaseRepo{}
	students := &mockStudentReader{students: map[string]models.Student{"s1": {ID: "s1"}}}
	computer := &mockIndicatorComputer{indicators: models.RiskIndicators{
		AttendancePercentage: 100,
		GradeAverage:         10,
		IncompleteData:       true,
	}}
	svc := newCaseService(repo, students, computer)

	riskCase, incomplete, err := svc.Create(context.Background(), CreateRiskCaseRequest{StudentID: "s1", IdentifiedBy: "u1"})
	require.NoError(t, err)
	assert.True(t, incomplete)
	assert.Equal(t, 0, riskCase.RiskScore)
	assert.Equal(t, models.RiskLevelLow, riskCase.RiskLevel)
}

func TestRiskCaseServiceSetStatusRejectsTerminalTarget(t *testing.T) {
	svc := newCaseService(&mockRiskCaseRepo{}, &mockStudentReader{}, &mockIndicatorComputer{})

	for _, status := range []models.CaseStatus{models.CaseStatusResolved, models.CaseStatusEvaded} {
		_, err := svc.SetStatus(context.Background(), "case-1", status)
		assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition), "status %s", status)
	}
}

func TestRiskCaseServiceSetStatusRejectsUnknownStatus(t *testing.T) {
	svc := newCaseService(&mockRiskCaseRepo{}, &mockStudentReader{}, &mockIndicatorComputer{})

	_, err := svc.SetStatus(context.Background(), "case-1", models.CaseStatus("archived"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestRiskCaseServiceSetStatusOnSealedCase(t *testing.T) {
	repo := &mockRiskCaseRepo{
		updateRows: 0,
		cases: map[string]*models.RiskCase{
			"case-1": {ID: "case-1", Status: models.CaseStatusResolved},
		},
	}
	svc := newCaseService(repo, &mockStudentReader{}, &mockIndicatorComputer{})

	_, err := svc.SetStatus(context.Background(), "case-1", models.CaseStatusMonitoring)
	assert.True(t, errors.Is(err, appErrors.ErrCaseClosed))
}

func TestRiskCaseServiceSetStatusMissingCase(t *testing.T) {
	svc := newCaseService(&mockRiskCaseRepo{updateRows: 0}, &mockStudentReader{}, &mockIndicatorComputer{})

	_, err := svc.SetStatus(context.Background(), "ghost", models.CaseStatusMonitoring)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestRiskCaseServiceSetStatusSwitchesOpenStates(t *testing.T) {
	repo := &mockRiskCaseRepo{
		updateRows: 1,
		cases: map[string]*models.RiskCase{
			"case-1": {ID: "case-1", Status: models.CaseStatusMonitoring},
		},
	}
	svc := newCaseService(repo, &mockStudentReader{}, &mockIndicatorComputer{})

	riskCase, err := svc.SetStatus(context.Background(), "case-1", models.CaseStatusMonitoring)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusMonitoring, repo.lastStatus)
	assert.Equal(t, "case-1", riskCase.ID)
}

func TestRiskCaseServiceSetAssigneeRequiresActor(t *testing.T) {
	svc := newCaseService(&mockRiskCaseRepo{}, &mockStudentReader{}, &mockIndicatorComputer{})

	_, err := svc.SetAssignee(context.Background(), "case-1", "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestRiskCaseServiceSetAssigneeOnSealedCase(t *testing.T) {
	repo := &mockRiskCaseRepo{
		updateRows: 0,
		cases: map[string]*models.RiskCase{
			"case-1": {ID: "case-1", Status: models.CaseStatusEvaded},
		},
	}
	svc := newCaseService(repo, &mockStudentReader{}, &mockIndicatorComputer{})

	_, err := svc.SetAssignee(context.Background(), "case-1", "u2")
	assert.True(t, errors.Is(err, appErrors.ErrCaseClosed))
}

func TestRiskCaseServiceListOpenRejectsUnknownLevel(t *testing.T) {
	svc := newCaseService(&mockRiskCaseRepo{}, &mockStudentReader{}, &mockIndicatorComputer{})

	bogus := models.RiskLevel("extreme")
	_, _, err := svc.ListOpen(context.Background(), models.RiskCaseFilter{RiskLevel: &bogus})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestRiskCaseServiceSummaryZeroFillsLevels(t *testing.T) {
	repo := &mockRiskCaseRepo{summaryRows: []models.RiskCaseSummaryRow{
		{RiskLevel: models.RiskLevelHigh, Count: 2},
	}}
	svc := newCaseService(repo, &mockStudentReader{}, &mockIndicatorComputer{})

	summary, cacheHit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Len(t, summary, 4)
	assert.Equal(t, 2, summary[models.RiskLevelHigh])
	assert.Equal(t, 0, summary[models.RiskLevelLow])
	assert.Equal(t, 0, summary[models.RiskLevelMedium])
	assert.Equal(t, 0, summary[models.RiskLevelCritical])
}

func TestRiskCaseServiceRefreshScoreSkipsSealedCase(t *testing.T) {
	repo := &mockRiskCaseRepo{updateRows: 0}
	computer := &mockIndicatorComputer{indicators: models.RiskIndicators{AttendancePercentage: 100, GradeAverage: 10}}
	svc := newCaseService(repo, &mockStudentReader{}, computer)

	refreshed, err := svc.RefreshScore(context.Background(), "case-1", "s1")
	require.NoError(t, err)
	assert.False(t, refreshed)
}

func TestRiskCaseServiceRefreshScoreUpdatesOpenCase(t *testing.T) {
	repo := &mockRiskCaseRepo{updateRows: 1}
	computer := &mockIndicatorComputer{indicators: models.RiskIndicators{AttendancePercentage: 50, GradeAverage: 3}}
	svc := newCaseService(repo, &mockStudentReader{}, computer)

	refreshed, err := svc.RefreshScore(context.Background(), "case-1", "s1")
	require.NoError(t, err)
	assert.True(t, refreshed)
}
