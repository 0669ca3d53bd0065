package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-risk-api/internal/models"
)

// AcademicRepository exposes read-only attendance, grade and activity data
// owned by the surrounding administration system. The risk engine never
// writes through it.
type AcademicRepository struct {
	db *sqlx.DB
}

// NewAcademicRepository constructs a new repository.
func NewAcademicRepository(db *sqlx.DB) *AcademicRepository {
	return &AcademicRepository{db: db}
}

// Attendance returns the full attendance history for one student.
func (r *AcademicRepository) Attendance(ctx context.Context, studentID string) ([]models.AttendanceRecord, error) {
	query := `SELECT date, status = 'H' AS present FROM daily_attendances da
JOIN enrollments e ON e.id = da.enrollment_id
WHERE e.student_id = $1 ORDER BY date ASC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("load attendance history: %w", err)
	}
	return records, nil
}

// Grades returns all recorded grades for one student with their scales.
func (r *AcademicRepository) Grades(ctx context.Context, studentID string) ([]models.GradeRecord, error) {
	query := `SELECT g.grade_value AS value, g.max_value FROM grades g
JOIN enrollments e ON e.id = g.enrollment_id
WHERE e.student_id = $1`
	var grades []models.GradeRecord
	if err := r.db.SelectContext(ctx, &grades, query, studentID); err != nil {
		return nil, fmt.Errorf("load grade history: %w", err)
	}
	return grades, nil
}

// MissedActivities counts mandatory activities the student was flagged as
// having missed.
func (r *AcademicRepository) MissedActivities(ctx context.Context, studentID string) (int, error) {
	query := `SELECT COUNT(*) FROM missed_activities WHERE student_id = $1 AND mandatory = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID); err != nil {
		return 0, fmt.Errorf("count missed activities: %w", err)
	}
	return count, nil
}
