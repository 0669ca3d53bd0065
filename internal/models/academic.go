package models

import "time"

// AttendanceRecord is the read-only attendance shape consumed by the
// indicator aggregator. The attendance module itself lives outside this
// service; only date and presence matter here.
type AttendanceRecord struct {
	Date    time.Time `db:"date" json:"date"`
	Present bool      `db:"present" json:"present"`
}

// GradeRecord is the read-only grade shape consumed by the indicator
// aggregator. Value is normalised against MaxValue before averaging.
type GradeRecord struct {
	Value    float64 `db:"value" json:"value"`
	MaxValue float64 `db:"max_value" json:"max_value"`
}

// Student carries the minimal roster fields the risk engine needs.
type Student struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	Active   bool   `db:"active" json:"active"`
}
