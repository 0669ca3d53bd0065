package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-api/internal/models"
	appErrors "github.com/noah-isme/sma-risk-api/pkg/errors"
)

type caseResolver interface {
	FindByID(ctx context.Context, id string) (*models.RiskCase, error)
	Resolve(ctx context.Context, id string, outcome models.CaseStatus, notes string, resolvedAt time.Time) (int64, error)
}

// ResolveRiskCaseRequest closes a case with a mandatory justification.
type ResolveRiskCaseRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=resolved evaded"`
	Notes   string `json:"notes" validate:"required"`
	ActorID string `json:"-" validate:"required"`
}

// ResolutionService owns the single terminal transition of a risk case.
// Nothing else in the system may move a case to resolved or evaded.
type ResolutionService struct {
	cases     caseResolver
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResolutionService constructs the service.
func NewResolutionService(cases caseResolver, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ResolutionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolutionService{cases: cases, cache: cache, validator: validate, logger: logger}
}

// Resolve seals the case: status, resolved_at and resolution_notes are set
// together and never cleared afterwards.
func (s *ResolutionService) Resolve(ctx context.Context, caseID string, req ResolveRiskCaseRequest) (*models.RiskCase, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolution payload")
	}
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resolution notes must not be empty")
	}
	outcome := models.CaseStatus(req.Outcome)

	rows, err := s.cases.Resolve(ctx, caseID, outcome, notes, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve risk case")
	}
	if rows == 0 {
		riskCase, err := s.cases.FindByID(ctx, caseID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "risk case not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load risk case")
		}
		if riskCase.Status.Terminal() {
			return nil, appErrors.Clone(appErrors.ErrCaseClosed, "")
		}
		return nil, appErrors.Clone(appErrors.ErrInternal, "risk case resolution had no effect")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "risk:summary:*"); err != nil {
			s.logger.Warn("invalidate risk summary cache", zap.Error(err))
		}
	}

	riskCase, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resolved case")
	}
	s.logger.Info("risk case closed",
		zap.String("case_id", caseID),
		zap.String("outcome", req.Outcome),
		zap.String("actor_id", req.ActorID))
	return riskCase, nil
}
