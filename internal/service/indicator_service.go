package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-api/internal/models"
)

const recentAbsenceWindow = 30 * 24 * time.Hour

type attendanceSource interface {
	Attendance(ctx context.Context, studentID string) ([]models.AttendanceRecord, error)
}

type gradeSource interface {
	Grades(ctx context.Context, studentID string) ([]models.GradeRecord, error)
}

type activitySource interface {
	MissedActivities(ctx context.Context, studentID string) (int, error)
}

// IndicatorService reduces raw attendance and grade history into the fixed
// indicator tuple consumed by the scorer.
//
// Missing or unreadable upstream data never fails the computation: each
// indicator degrades to its least-alarming default and the result is marked
// IncompleteData so callers can surface it. A brand-new student with no
// records at all therefore scores as zero risk; that fail-open bias is
// deliberate.
type IndicatorService struct {
	attendance attendanceSource
	grades     gradeSource
	activities activitySource
	logger     *zap.Logger
	now        func() time.Time
}

// NewIndicatorService constructs the service. The activity source may be nil
// when the deployment has no mandatory-activity tracking.
func NewIndicatorService(attendance attendanceSource, grades gradeSource, activities activitySource, logger *zap.Logger) *IndicatorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndicatorService{
		attendance: attendance,
		grades:     grades,
		activities: activities,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Compute builds a fresh indicator tuple for the student. Snapshots are
// point-in-time; callers must not reuse them across a status transition.
func (s *IndicatorService) Compute(ctx context.Context, studentID string) (models.RiskIndicators, error) {
	indicators := models.RiskIndicators{
		StudentID:            studentID,
		AttendancePercentage: 100,
		GradeAverage:         10,
	}

	records, err := s.attendance.Attendance(ctx, studentID)
	if err != nil {
		s.logger.Warn("attendance history unavailable, using optimistic default",
			zap.String("student_id", studentID), zap.Error(err))
		indicators.IncompleteData = true
	} else if len(records) > 0 {
		cutoff := s.now().Add(-recentAbsenceWindow)
		present := 0
		for _, record := range records {
			if record.Present {
				present++
				continue
			}
			if !record.Date.Before(cutoff) {
				indicators.AbsencesLast30Days++
			}
		}
		indicators.AttendancePercentage = float64(present) / float64(len(records)) * 100
	}

	grades, err := s.grades.Grades(ctx, studentID)
	if err != nil {
		s.logger.Warn("grade history unavailable, using optimistic default",
			zap.String("student_id", studentID), zap.Error(err))
		indicators.IncompleteData = true
	} else if normalized := normalizeGrades(grades); len(normalized) > 0 {
		sum := 0.0
		for _, value := range normalized {
			sum += value
		}
		indicators.GradeAverage = sum / float64(len(normalized))
	}

	if s.activities != nil {
		missed, err := s.activities.MissedActivities(ctx, studentID)
		if err != nil {
			s.logger.Warn("missed activity count unavailable, assuming zero",
				zap.String("student_id", studentID), zap.Error(err))
			indicators.IncompleteData = true
		} else {
			indicators.MissedActivities = missed
		}
	}

	return indicators, nil
}

// normalizeGrades converts grades to the 0-10 scale, skipping rows with a
// non-positive scale.
func normalizeGrades(grades []models.GradeRecord) []float64 {
	normalized := make([]float64, 0, len(grades))
	for _, grade := range grades {
		if grade.MaxValue <= 0 {
			continue
		}
		normalized = append(normalized, grade.Value/grade.MaxValue*10)
	}
	return normalized
}
