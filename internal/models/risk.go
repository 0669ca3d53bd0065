package models

import "time"

// RiskLevel buckets a risk score into a coarse severity band.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// Valid returns true when the level is a supported value.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical:
		return true
	default:
		return false
	}
}

// CaseStatus represents the lifecycle state of a risk case.
type CaseStatus string

const (
	CaseStatusActive     CaseStatus = "active"
	CaseStatusMonitoring CaseStatus = "monitoring"
	CaseStatusResolved   CaseStatus = "resolved"
	CaseStatusEvaded     CaseStatus = "evaded"
)

// Valid returns true when the status is a supported value.
func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusActive, CaseStatusMonitoring, CaseStatusResolved, CaseStatusEvaded:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status permanently seals a case.
func (s CaseStatus) Terminal() bool {
	return s == CaseStatusResolved || s == CaseStatusEvaded
}

// RiskIndicators is the point-in-time indicator tuple computed for one
// student. It is never persisted on its own; cases carry a snapshot.
type RiskIndicators struct {
	StudentID            string  `json:"student_id"`
	AttendancePercentage float64 `json:"attendance_percentage"`
	GradeAverage         float64 `json:"grade_average"`
	AbsencesLast30Days   int     `json:"absences_last_30_days"`
	MissedActivities     int     `json:"missed_activities"`
	// IncompleteData marks indicators that fell back to optimistic
	// defaults because an upstream read failed.
	IncompleteData bool `json:"incomplete_data,omitempty"`
}

// RiskScore is the scorer output for one indicator tuple.
type RiskScore struct {
	Score   int       `json:"score"`
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors"`
}

// RiskCase tracks one student from identification through resolution.
type RiskCase struct {
	ID                   string     `db:"id" json:"id"`
	StudentID            string     `db:"student_id" json:"student_id"`
	RiskLevel            RiskLevel  `db:"risk_level" json:"risk_level"`
	RiskScore            int        `db:"risk_score" json:"risk_score"`
	Status               CaseStatus `db:"status" json:"status"`
	IdentifiedAt         time.Time  `db:"identified_at" json:"identified_at"`
	IdentifiedBy         string     `db:"identified_by" json:"identified_by"`
	AssignedTo           *string    `db:"assigned_to" json:"assigned_to,omitempty"`
	AttendancePercentage float64    `db:"attendance_percentage" json:"attendance_percentage"`
	GradeAverage         float64    `db:"grade_average" json:"grade_average"`
	AbsencesLast30Days   int        `db:"absences_last_30_days" json:"absences_last_30_days"`
	MissedActivities     int        `db:"missed_activities" json:"missed_activities"`
	ResolutionNotes      *string    `db:"resolution_notes" json:"resolution_notes,omitempty"`
	ResolvedAt           *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	InterventionsCount   int        `db:"interventions_count" json:"interventions_count"`
	LastInterventionAt   *time.Time `db:"last_intervention_at" json:"last_intervention_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// Open reports whether the case still counts against the one-open-case rule.
func (c *RiskCase) Open() bool {
	return !c.Status.Terminal()
}

// RiskCaseFilter scopes open-case listing queries.
type RiskCaseFilter struct {
	RiskLevel  *RiskLevel
	AssignedTo string
	StudentID  string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// RiskCaseSummaryRow aggregates open cases per level for dashboards.
type RiskCaseSummaryRow struct {
	RiskLevel RiskLevel `db:"risk_level" json:"risk_level"`
	Count     int       `db:"count" json:"count"`
}

// Intervention is one immutable action logged against an open case.
type Intervention struct {
	ID          string    `db:"id" json:"id"`
	RiskCaseID  string    `db:"risk_case_id" json:"risk_case_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	Description string    `db:"description" json:"description"`
	PerformedBy string    `db:"performed_by" json:"performed_by"`
	PerformedAt time.Time `db:"performed_at" json:"performed_at"`
	OutcomeNote *string   `db:"outcome_note" json:"outcome_note,omitempty"`
}

// SweepResult summarises one whole-school re-scoring run.
type SweepResult struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Scanned    int       `json:"scanned"`
	Refreshed  int       `json:"refreshed"`
	Failed     int       `json:"failed"`
}
