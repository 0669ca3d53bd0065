package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-api/internal/models"
	appErrors "github.com/noah-isme/sma-risk-api/pkg/errors"
)

type interventionRepo interface {
	Create(ctx context.Context, intervention *models.Intervention) error
	ListByCase(ctx context.Context, riskCaseID string) ([]models.Intervention, error)
}

type caseReader interface {
	FindByID(ctx context.Context, id string) (*models.RiskCase, error)
}

// AddInterventionRequest appends one action to a case's ledger.
type AddInterventionRequest struct {
	Description string  `json:"description" validate:"required"`
	PerformedBy string  `json:"-" validate:"required"`
	OutcomeNote *string `json:"outcome_note,omitempty"`
}

// InterventionService maintains the append-only intervention ledger. Entries
// are immutable once written and survive case closure.
type InterventionService struct {
	interventions interventionRepo
	cases         caseReader
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewInterventionService constructs the service.
func NewInterventionService(interventions interventionRepo, cases caseReader, validate *validator.Validate, logger *zap.Logger) *InterventionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterventionService{interventions: interventions, cases: cases, validator: validate, logger: logger}
}

// Add records an intervention against an open case. The repository performs
// the terminal-status check and the counter increment atomically.
func (s *InterventionService) Add(ctx context.Context, caseID string, req AddInterventionRequest) (*models.Intervention, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid intervention payload")
	}
	intervention := &models.Intervention{
		RiskCaseID:  caseID,
		Description: req.Description,
		PerformedBy: req.PerformedBy,
		OutcomeNote: req.OutcomeNote,
	}
	if err := s.interventions.Create(ctx, intervention); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record intervention")
	}
	s.logger.Info("intervention recorded",
		zap.String("case_id", caseID),
		zap.String("intervention_id", intervention.ID),
		zap.String("performed_by", req.PerformedBy))
	return intervention, nil
}

// List returns a case's ledger ordered by performed_at ascending.
func (s *InterventionService) List(ctx context.Context, caseID string) ([]models.Intervention, error) {
	if _, err := s.cases.FindByID(ctx, caseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "risk case not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load risk case")
	}
	interventions, err := s.interventions.ListByCase(ctx, caseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list interventions")
	}
	return interventions, nil
}
