package service

import (
	"fmt"
	"math"

	"github.com/noah-isme/sma-risk-api/internal/models"
)

// Weighted-deficit scoring constants. Each indicator contributes a deficit
// proportional to its distance below the healthy threshold, capped so the
// four caps sum to exactly 100.
const (
	healthyAttendancePct = 85.0
	attendanceWeight     = 1.2
	attendanceDeficitCap = 40.0

	healthyGradeAverage = 6.0
	gradeWeight         = 8.0
	gradeDeficitCap     = 35.0

	absenceWeight     = 2.0
	absenceCountCap   = 10
	absenceDeficitCap = 15.0

	missedWeight     = 2.0
	missedCountCap   = 5
	missedDeficitCap = 10.0
)

// ScoreRisk reduces an indicator tuple to a score, level and the list of
// contributing factors. Pure and deterministic: no I/O, no clock, and
// increasing any indicator's severity never decreases the score.
func ScoreRisk(indicators models.RiskIndicators) models.RiskScore {
	total := 0.0
	factors := []string{}

	attendanceDeficit := math.Min(attendanceDeficitCap, math.Max(0, healthyAttendancePct-indicators.AttendancePercentage)*attendanceWeight)
	if attendanceDeficit > 0 {
		factors = append(factors, fmt.Sprintf("attendance below %.0f%%", healthyAttendancePct))
	}
	total += attendanceDeficit

	gradeDeficit := math.Min(gradeDeficitCap, math.Max(0, healthyGradeAverage-indicators.GradeAverage)*gradeWeight)
	if gradeDeficit > 0 {
		factors = append(factors, fmt.Sprintf("grade average below %.1f", healthyGradeAverage))
	}
	total += gradeDeficit

	absences := indicators.AbsencesLast30Days
	if absences > absenceCountCap {
		absences = absenceCountCap
	}
	absenceDeficit := math.Min(absenceDeficitCap, float64(absences)*absenceWeight)
	if absenceDeficit > 0 {
		factors = append(factors, fmt.Sprintf("%d absences in last 30 days", indicators.AbsencesLast30Days))
	}
	total += absenceDeficit

	missed := indicators.MissedActivities
	if missed > missedCountCap {
		missed = missedCountCap
	}
	missedDeficit := math.Min(missedDeficitCap, float64(missed)*missedWeight)
	if missedDeficit > 0 {
		factors = append(factors, fmt.Sprintf("%d missed mandatory activities", indicators.MissedActivities))
	}
	total += missedDeficit

	score := int(math.Round(math.Min(100, total)))
	return models.RiskScore{Score: score, Level: LevelFromScore(score), Factors: factors}
}

// LevelFromScore maps a score onto its severity band. Kept separate so the
// level/score consistency rule can be asserted anywhere a case is touched.
func LevelFromScore(score int) models.RiskLevel {
	switch {
	case score < 25:
		return models.RiskLevelLow
	case score < 50:
		return models.RiskLevelMedium
	case score < 75:
		return models.RiskLevelHigh
	default:
		return models.RiskLevelCritical
	}
}
