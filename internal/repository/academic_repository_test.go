package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAcademicRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAcademicRepositoryAttendance(t *testing.T) {
	db, mock, cleanup := newAcademicRepoMock(t)
	defer cleanup()
	repo := NewAcademicRepository(db)

	now := time.Now()
	mock.ExpectQuery("FROM daily_attendances").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"date", "present"}).
			AddRow(now.AddDate(0, 0, -2), true).
			AddRow(now.AddDate(0, 0, -1), false))

	records, err := repo.Attendance(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Present)
	assert.False(t, records[1].Present)
}

func TestAcademicRepositoryGrades(t *testing.T) {
	db, mock, cleanup := newAcademicRepoMock(t)
	defer cleanup()
	repo := NewAcademicRepository(db)

	mock.ExpectQuery("FROM grades").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"value", "max_value"}).
			AddRow(80.0, 100.0).
			AddRow(7.5, 10.0))

	grades, err := repo.Grades(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, grades, 2)
	assert.Equal(t, 100.0, grades[0].MaxValue)
}

func TestAcademicRepositoryMissedActivities(t *testing.T) {
	db, mock, cleanup := newAcademicRepoMock(t)
	defer cleanup()
	repo := NewAcademicRepository(db)

	mock.ExpectQuery("FROM missed_activities").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.MissedActivities(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
