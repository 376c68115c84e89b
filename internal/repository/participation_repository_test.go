package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardn-app/ardn-api/internal/models"
)

func newParticipationMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestParticipationRepositoryCreateWithBalance(t *testing.T) {
	db, mock, cleanup := newParticipationMock(t)
	defer cleanup()
	repo := NewParticipationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO participations").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("UPDATE students SET total_points = total_points").
		WithArgs("s1", 10, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"total_points"}).AddRow(40))
	mock.ExpectCommit()

	p := &models.Participation{
		StudentID:      "s1",
		ActivityID:     "a1",
		ParticipatedAt: time.Now().UTC(),
		PointsEarned:   10,
		RecordedByID:   "staff",
	}
	oldTotal, newTotal, err := repo.CreateWithBalance(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 30, oldTotal)
	assert.Equal(t, 40, newTotal)
	assert.NotEmpty(t, p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipationRepositoryCreateWithBalanceRollsBackOnInsertError(t *testing.T) {
	db, mock, cleanup := newParticipationMock(t)
	defer cleanup()
	repo := NewParticipationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO participations").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, _, err := repo.CreateWithBalance(context.Background(), &models.Participation{StudentID: "s1", ActivityID: "a1"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipationRepositoryDeleteWithBalance(t *testing.T) {
	db, mock, cleanup := newParticipationMock(t)
	defer cleanup()
	repo := NewParticipationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM participations").
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE students SET total_points = GREATEST\(total_points - \$2, 0\)`).
		WithArgs("s1", 10, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.DeleteWithBalance(context.Background(), &models.Participation{ID: "p1", StudentID: "s1", PointsEarned: 10})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipationRepositoryAutoEnroll(t *testing.T) {
	db, mock, cleanup := newParticipationMock(t)
	defer cleanup()
	repo := NewParticipationRepository(db)

	activity := &models.Activity{ID: "a1", OrganizationID: "org", ProgramID: "prog", Points: 10}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT s.id FROM students s").
		WithArgs("org", "prog", "a1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s1").AddRow("s2"))
	mock.ExpectExec("INSERT INTO participations").
		WithArgs(sqlmock.AnyArg(), "s1", "a1", sqlmock.AnyArg(), 10, "staff", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO participations").
		WithArgs(sqlmock.AnyArg(), "s2", "a1", sqlmock.AnyArg(), 10, "staff", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE students SET total_points = total_points").
		WithArgs(10, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	count, err := repo.AutoEnroll(context.Background(), activity, "staff")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipationRepositoryAutoEnrollNoEligibleStudents(t *testing.T) {
	db, mock, cleanup := newParticipationMock(t)
	defer cleanup()
	repo := NewParticipationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT s.id FROM students s").
		WithArgs("org", "prog", "a1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	count, err := repo.AutoEnroll(context.Background(), &models.Activity{ID: "a1", OrganizationID: "org", ProgramID: "prog", Points: 10}, "staff")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipationRepositoryCreateAdjustment(t *testing.T) {
	db, mock, cleanup := newParticipationMock(t)
	defer cleanup()
	repo := NewParticipationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO point_adjustments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`UPDATE students SET total_points = GREATEST\(total_points \+ \$2, 0\)`).
		WithArgs("s1", -20, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"total_points"}).AddRow(0))
	mock.ExpectCommit()

	newTotal, err := repo.CreateAdjustment(context.Background(), &models.PointAdjustment{
		StudentID:   "s1",
		Delta:       -20,
		Reason:      "correction",
		CreatedByID: "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, newTotal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipationRepositoryFindByPair(t *testing.T) {
	db, mock, cleanup := newParticipationMock(t)
	defer cleanup()
	repo := NewParticipationRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "student_id", "activity_id", "participated_at", "points_earned", "is_late", "notes", "recorded_by_id", "created_at"}).
		AddRow("p1", "s1", "a1", now, 10, false, nil, "staff", now)
	mock.ExpectQuery("SELECT id, student_id, activity_id").
		WithArgs("s1", "a1").
		WillReturnRows(rows)

	p, err := repo.FindByPair(context.Background(), "s1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, 10, p.PointsEarned)
	assert.NoError(t, mock.ExpectationsWereMet())
}
