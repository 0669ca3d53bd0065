package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-risk-api/internal/models"
	appErrors "github.com/noah-isme/sma-risk-api/pkg/errors"
)

const riskCaseColumns = `id, student_id, risk_level, risk_score, status, identified_at, identified_by, assigned_to,
        attendance_percentage, grade_average, absences_last_30_days, missed_activities,
        resolution_notes, resolved_at, interventions_count, last_intervention_at, created_at, updated_at`

// openStatuses is the set of statuses counting against the one-open-case rule.
var openStatuses = []string{string(models.CaseStatusActive), string(models.CaseStatusMonitoring)}

// RiskCaseRepository manages persistence for risk cases.
type RiskCaseRepository struct {
	db *sqlx.DB
}

// NewRiskCaseRepository constructs a new repository.
func NewRiskCaseRepository(db *sqlx.DB) *RiskCaseRepository {
	return &RiskCaseRepository{db: db}
}

// Create inserts a new case. The partial unique index on open cases is the
// authoritative duplicate guard; a violation maps to ErrCaseConflict.
func (r *RiskCaseRepository) Create(ctx context.Context, riskCase *models.RiskCase) error {
	if riskCase.ID == "" {
		riskCase.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if riskCase.IdentifiedAt.IsZero() {
		riskCase.IdentifiedAt = now
	}
	riskCase.CreatedAt = now
	riskCase.UpdatedAt = now
	query := `INSERT INTO risk_cases (id, student_id, risk_level, risk_score, status, identified_at, identified_by, assigned_to,
        attendance_percentage, grade_average, absences_last_30_days, missed_activities,
        interventions_count, created_at, updated_at)
VALUES (:id, :student_id, :risk_level, :risk_score, :status, :identified_at, :identified_by, :assigned_to,
        :attendance_percentage, :grade_average, :absences_last_30_days, :missed_activities,
        :interventions_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, riskCase); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return appErrors.Wrap(err, appErrors.ErrCaseConflict.Code, appErrors.ErrCaseConflict.Status, appErrors.ErrCaseConflict.Message)
		}
		return fmt.Errorf("create risk case: %w", err)
	}
	return nil
}

// FindByID loads a single case.
func (r *RiskCaseRepository) FindByID(ctx context.Context, id string) (*models.RiskCase, error) {
	query := fmt.Sprintf("SELECT %s FROM risk_cases WHERE id = $1", riskCaseColumns)
	var riskCase models.RiskCase
	if err := r.db.GetContext(ctx, &riskCase, query, id); err != nil {
		return nil, err
	}
	return &riskCase, nil
}

// FindOpenByStudent returns the student's open case when one exists.
func (r *RiskCaseRepository) FindOpenByStudent(ctx context.Context, studentID string) (*models.RiskCase, error) {
	query := fmt.Sprintf("SELECT %s FROM risk_cases WHERE student_id = $1 AND status = ANY($2)", riskCaseColumns)
	var riskCase models.RiskCase
	if err := r.db.GetContext(ctx, &riskCase, query, studentID, pq.Array(openStatuses)); err != nil {
		return nil, err
	}
	return &riskCase, nil
}

// UpdateAssignee reassigns an open case. Returns the affected row count so
// the caller can distinguish missing from sealed cases.
func (r *RiskCaseRepository) UpdateAssignee(ctx context.Context, id, actorID string) (int64, error) {
	query := `UPDATE risk_cases SET assigned_to = $2, updated_at = $3 WHERE id = $1 AND status = ANY($4)`
	result, err := r.db.ExecContext(ctx, query, id, actorID, time.Now().UTC(), pq.Array(openStatuses))
	if err != nil {
		return 0, fmt.Errorf("update risk case assignee: %w", err)
	}
	return result.RowsAffected()
}

// UpdateStatus switches an open case between the non-terminal statuses.
func (r *RiskCaseRepository) UpdateStatus(ctx context.Context, id string, status models.CaseStatus) (int64, error) {
	query := `UPDATE risk_cases SET status = $2, updated_at = $3 WHERE id = $1 AND status = ANY($4)`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC(), pq.Array(openStatuses))
	if err != nil {
		return 0, fmt.Errorf("update risk case status: %w", err)
	}
	return result.RowsAffected()
}

// UpdateScore refreshes the score snapshot of an open case.
func (r *RiskCaseRepository) UpdateScore(ctx context.Context, id string, indicators models.RiskIndicators, score models.RiskScore) (int64, error) {
	query := `UPDATE risk_cases SET risk_score = $2, risk_level = $3,
        attendance_percentage = $4, grade_average = $5, absences_last_30_days = $6, missed_activities = $7,
        updated_at = $8
WHERE id = $1 AND status = ANY($9)`
	result, err := r.db.ExecContext(ctx, query, id, score.Score, score.Level,
		indicators.AttendancePercentage, indicators.GradeAverage, indicators.AbsencesLast30Days, indicators.MissedActivities,
		time.Now().UTC(), pq.Array(openStatuses))
	if err != nil {
		return 0, fmt.Errorf("update risk case score: %w", err)
	}
	return result.RowsAffected()
}

// Resolve seals an open case. The status guard in the WHERE clause makes the
// terminal transition single-shot even under concurrent resolvers.
func (r *RiskCaseRepository) Resolve(ctx context.Context, id string, outcome models.CaseStatus, notes string, resolvedAt time.Time) (int64, error) {
	query := `UPDATE risk_cases SET status = $2, resolution_notes = $3, resolved_at = $4, updated_at = $4
WHERE id = $1 AND status = ANY($5)`
	result, err := r.db.ExecContext(ctx, query, id, outcome, notes, resolvedAt, pq.Array(openStatuses))
	if err != nil {
		return 0, fmt.Errorf("resolve risk case: %w", err)
	}
	return result.RowsAffected()
}

// ListOpen returns open cases per provided filter.
func (r *RiskCaseRepository) ListOpen(ctx context.Context, filter models.RiskCaseFilter) ([]models.RiskCase, int, error) {
	where := []string{"status = ANY($1)"}
	args := []interface{}{pq.Array(openStatuses)}
	if filter.RiskLevel != nil {
		where = append(where, fmt.Sprintf("risk_level = $%d", len(args)+1))
		args = append(args, *filter.RiskLevel)
	}
	if filter.AssignedTo != "" {
		where = append(where, fmt.Sprintf("assigned_to = $%d", len(args)+1))
		args = append(args, filter.AssignedTo)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	whereClause := strings.Join(where, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size
	query := fmt.Sprintf("SELECT %s FROM risk_cases WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		riskCaseColumns, whereClause, orderClause(filter.SortBy, filter.SortOrder), size, offset)
	var cases []models.RiskCase
	if err := r.db.SelectContext(ctx, &cases, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list open risk cases: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM risk_cases WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count open risk cases: %w", err)
	}
	return cases, total, nil
}

// orderClause maps a requested sort to a whitelisted ORDER BY fragment. Both
// inputs come straight from query parameters, so anything outside the
// whitelist falls back to the default triage ordering.
func orderClause(sortBy, sortOrder string) string {
	dir := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		dir = "ASC"
	}
	switch sortBy {
	case "identified_at", "risk_score", "updated_at":
		return fmt.Sprintf("%s %s", sortBy, dir)
	default:
		return "risk_score DESC, identified_at ASC"
	}
}

// ListOpenIDs returns one page of open cases for the sweep. Ordering by id
// keeps offset pagination stable while the sweep itself updates scores.
func (r *RiskCaseRepository) ListOpenIDs(ctx context.Context, limit, offset int) ([]models.RiskCase, error) {
	query := `SELECT id, student_id, risk_score, risk_level, status FROM risk_cases
WHERE status = ANY($1) ORDER BY id LIMIT $2 OFFSET $3`
	var cases []models.RiskCase
	if err := r.db.SelectContext(ctx, &cases, query, pq.Array(openStatuses), limit, offset); err != nil {
		return nil, fmt.Errorf("list open risk case ids: %w", err)
	}
	return cases, nil
}

// SummaryByLevel aggregates open cases per risk level.
func (r *RiskCaseRepository) SummaryByLevel(ctx context.Context) ([]models.RiskCaseSummaryRow, error) {
	query := `SELECT risk_level, COUNT(*) AS count FROM risk_cases WHERE status = ANY($1) GROUP BY risk_level`
	var rows []models.RiskCaseSummaryRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(openStatuses)); err != nil {
		return nil, fmt.Errorf("summarise open risk cases: %w", err)
	}
	return rows, nil
}
