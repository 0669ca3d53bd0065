package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-api/internal/models"
	appErrors "github.com/noah-isme/sma-risk-api/pkg/errors"
)

const summaryCacheKey = "risk:summary:open"

type riskCaseRepo interface {
	Create(ctx context.Context, riskCase *models.RiskCase) error
	FindByID(ctx context.Context, id string) (*models.RiskCase, error)
	FindOpenByStudent(ctx context.Context, studentID string) (*models.RiskCase, error)
	UpdateAssignee(ctx context.Context, id, actorID string) (int64, error)
	UpdateStatus(ctx context.Context, id string, status models.CaseStatus) (int64, error)
	UpdateScore(ctx context.Context, id string, indicators models.RiskIndicators, score models.RiskScore) (int64, error)
	ListOpen(ctx context.Context, filter models.RiskCaseFilter) ([]models.RiskCase, int, error)
	SummaryByLevel(ctx context.Context) ([]models.RiskCaseSummaryRow, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type indicatorComputer interface {
	Compute(ctx context.Context, studentID string) (models.RiskIndicators, error)
}

// CreateRiskCaseRequest opens a case for a student.
type CreateRiskCaseRequest struct {
	StudentID    string  `json:"student_id" validate:"required"`
	IdentifiedBy string  `json:"-" validate:"required"`
	AssignedTo   *string `json:"assigned_to,omitempty"`
}

// RiskCaseService owns the case lifecycle up to, but excluding, the terminal
// transition (see ResolutionService).
type RiskCaseService struct {
	cases      riskCaseRepo
	students   studentReader
	indicators indicatorComputer
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	summaryTTL time.Duration
}

// NewRiskCaseService constructs the service.
func NewRiskCaseService(cases riskCaseRepo, students studentReader, indicators indicatorComputer, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, summaryTTL time.Duration) *RiskCaseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RiskCaseService{
		cases:      cases,
		students:   students,
		indicators: indicators,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		summaryTTL: summaryTTL,
	}
}

// Create computes fresh indicators, scores them and opens a case. The
// boolean reports whether the indicators fell back to optimistic defaults.
func (s *RiskCaseService) Create(ctx context.Context, req CreateRiskCaseRequest) (*models.RiskCase, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid risk case payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	// Fast path only; the partial unique index remains the real guard
	// against concurrent creates for the same student.
	if existing, err := s.cases.FindOpenByStudent(ctx, req.StudentID); err == nil && existing != nil {
		return nil, false, appErrors.Clone(appErrors.ErrCaseConflict, "")
	} else if err != nil && err != sql.ErrNoRows {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open cases")
	}

	indicators, err := s.indicators.Compute(ctx, req.StudentID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute indicators")
	}
	score := ScoreRisk(indicators)

	riskCase := &models.RiskCase{
		StudentID:            req.StudentID,
		RiskLevel:            score.Level,
		RiskScore:            score.Score,
		Status:               models.CaseStatusActive,
		IdentifiedBy:         req.IdentifiedBy,
		AssignedTo:           req.AssignedTo,
		AttendancePercentage: indicators.AttendancePercentage,
		GradeAverage:         indicators.GradeAverage,
		AbsencesLast30Days:   indicators.AbsencesLast30Days,
		MissedActivities:     indicators.MissedActivities,
	}
	if err := s.cases.Create(ctx, riskCase); err != nil {
		if errors.Is(err, appErrors.ErrCaseConflict) {
			return nil, false, err
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create risk case")
	}

	s.invalidateSummary(ctx)
	s.logger.Info("risk case opened",
		zap.String("case_id", riskCase.ID),
		zap.String("student_id", riskCase.StudentID),
		zap.Int("score", riskCase.RiskScore),
		zap.String("level", string(riskCase.RiskLevel)),
		zap.Bool("incomplete_data", indicators.IncompleteData))
	return riskCase, indicators.IncompleteData, nil
}

// Get loads a single case.
func (s *RiskCaseService) Get(ctx context.Context, id string) (*models.RiskCase, error) {
	riskCase, err := s.cases.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "risk case not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load risk case")
	}
	return riskCase, nil
}

// SetAssignee reassigns an open case to another actor.
func (s *RiskCaseService) SetAssignee(ctx context.Context, id, actorID string) (*models.RiskCase, error) {
	if actorID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignee required")
	}
	rows, err := s.cases.UpdateAssignee(ctx, id, actorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign risk case")
	}
	if rows == 0 {
		return nil, s.explainMissedUpdate(ctx, id, appErrors.Clone(appErrors.ErrCaseClosed, "cannot reassign a closed case"))
	}
	return s.Get(ctx, id)
}

// SetStatus switches an open case between active and monitoring. Terminal
// targets are rejected; closing a case is ResolutionService's job.
func (s *RiskCaseService) SetStatus(ctx context.Context, id string, status models.CaseStatus) (*models.RiskCase, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown case status")
	}
	if status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "terminal transitions must go through resolution")
	}
	rows, err := s.cases.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update risk case status")
	}
	if rows == 0 {
		return nil, s.explainMissedUpdate(ctx, id, appErrors.Clone(appErrors.ErrCaseClosed, ""))
	}
	return s.Get(ctx, id)
}

// ListOpen returns open cases with pagination.
func (s *RiskCaseService) ListOpen(ctx context.Context, filter models.RiskCaseFilter) ([]models.RiskCase, *models.Pagination, error) {
	if filter.RiskLevel != nil && !filter.RiskLevel.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown risk level")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	start := time.Now()
	cases, total, err := s.cases.ListOpen(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list open risk cases")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("risk_cases_list_open", time.Since(start))
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return cases, pagination, nil
}

// Summary returns open-case counts per level. The boolean indicates whether
// the payload came from cache.
func (s *RiskCaseService) Summary(ctx context.Context) (map[models.RiskLevel]int, bool, error) {
	var cached map[models.RiskLevel]int
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, summaryCacheKey, &cached); err == nil && hit {
			return cached, true, nil
		}
	}

	start := time.Now()
	rows, err := s.cases.SummaryByLevel(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise risk cases")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("risk_cases_summary", time.Since(start))
	}

	summary := map[models.RiskLevel]int{
		models.RiskLevelLow:      0,
		models.RiskLevelMedium:   0,
		models.RiskLevelHigh:     0,
		models.RiskLevelCritical: 0,
	}
	for _, row := range rows {
		summary[row.RiskLevel] = row.Count
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, summaryCacheKey, summary, s.summaryTTL); err != nil {
			s.logger.Warn("cache risk summary", zap.Error(err))
		}
	}
	return summary, false, nil
}

// RefreshScore recomputes the indicator snapshot of one open case. Returns
// false when the case was sealed in the meantime; the sweep treats that as a
// skip, not an error.
func (s *RiskCaseService) RefreshScore(ctx context.Context, caseID, studentID string) (bool, error) {
	indicators, err := s.indicators.Compute(ctx, studentID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute indicators")
	}
	score := ScoreRisk(indicators)
	rows, err := s.cases.UpdateScore(ctx, caseID, indicators, score)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh risk score")
	}
	if rows == 0 {
		return false, nil
	}
	s.invalidateSummary(ctx)
	return true, nil
}

// explainMissedUpdate turns a zero-row guarded update into the precise
// domain error: the case either does not exist or is already sealed.
func (s *RiskCaseService) explainMissedUpdate(ctx context.Context, id string, sealed *appErrors.Error) error {
	riskCase, err := s.cases.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "risk case not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load risk case")
	}
	if riskCase.Status.Terminal() {
		return sealed
	}
	return appErrors.Clone(appErrors.ErrInternal, "risk case update had no effect")
}

func (s *RiskCaseService) invalidateSummary(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "risk:summary:*"); err != nil {
		s.logger.Warn("invalidate risk summary cache", zap.Error(err))
	}
}
