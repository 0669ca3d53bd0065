package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-risk-api/internal/models"
	appErrors "github.com/noah-isme/sma-risk-api/pkg/errors"
)

// InterventionRepository manages the append-only intervention ledger.
type InterventionRepository struct {
	db *sqlx.DB
}

// NewInterventionRepository constructs a new repository.
func NewInterventionRepository(db *sqlx.DB) *InterventionRepository {
	return &InterventionRepository{db: db}
}

// Create appends an intervention and bumps the owning case's denormalized
// counters in one transaction. The case row is locked first so the terminal
// check and the in-SQL increment cannot race a concurrent resolve.
func (r *InterventionRepository) Create(ctx context.Context, intervention *models.Intervention) error {
	if intervention.ID == "" {
		intervention.ID = uuid.NewString()
	}
	if intervention.PerformedAt.IsZero() {
		intervention.PerformedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin intervention tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var status models.CaseStatus
	var studentID string
	row := tx.QueryRowxContext(ctx, `SELECT status, student_id FROM risk_cases WHERE id = $1 FOR UPDATE`, intervention.RiskCaseID)
	if err := row.Scan(&status, &studentID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "risk case not found")
		}
		return fmt.Errorf("lock risk case: %w", err)
	}
	if status.Terminal() {
		return appErrors.Clone(appErrors.ErrCaseClosed, "cannot add intervention to a closed case")
	}
	intervention.StudentID = studentID

	insert := `INSERT INTO risk_interventions (id, risk_case_id, student_id, description, performed_by, performed_at, outcome_note)
VALUES (:id, :risk_case_id, :student_id, :description, :performed_by, :performed_at, :outcome_note)`
	if _, err := tx.NamedExecContext(ctx, insert, intervention); err != nil {
		return fmt.Errorf("insert intervention: %w", err)
	}

	update := `UPDATE risk_cases SET interventions_count = interventions_count + 1, last_intervention_at = $2, updated_at = $3
WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, intervention.RiskCaseID, intervention.PerformedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("bump intervention counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit intervention tx: %w", err)
	}
	return nil
}

// ListByCase returns the full ledger of a case ordered by performed_at.
func (r *InterventionRepository) ListByCase(ctx context.Context, riskCaseID string) ([]models.Intervention, error) {
	query := `SELECT id, risk_case_id, student_id, description, performed_by, performed_at, outcome_note
FROM risk_interventions WHERE risk_case_id = $1 ORDER BY performed_at ASC, id ASC`
	var interventions []models.Intervention
	if err := r.db.SelectContext(ctx, &interventions, query, riskCaseID); err != nil {
		return nil, fmt.Errorf("list interventions: %w", err)
	}
	return interventions, nil
}
