package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub-dev/learnhub-api/internal/models"
)

func newLessonMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLessonRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec("INSERT INTO lessons").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	lesson := &models.Lesson{CourseID: "course-1", Session: "Intro", Description: "First session"}
	err := repo.Create(context.Background(), lesson)
	require.NoError(t, err)
	assert.NotEmpty(t, lesson.ID)
	assert.False(t, lesson.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryUpsertCompletion(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec(`(?s)INSERT INTO lesson_completions.+ON CONFLICT \(lesson_id, student_id\)`).
		WithArgs("lesson-1", "student-1", string(models.CompletionCompleted), 88.5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertCompletion(context.Background(), &models.LessonCompletion{
		LessonID:  "lesson-1",
		StudentID: "student-1",
		Status:    models.CompletionCompleted,
		Score:     88.5,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryListCompletions(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "first_name", "last_name", "status", "completed_at"}).
		AddRow("student-1", "Ada", "Lovelace", "completed", time.Now()).
		AddRow("student-2", "Alan", "Turing", "pending", time.Now())
	mock.ExpectQuery("SELECT lc.student_id, u.first_name, u.last_name, lc.status, lc.completed_at").
		WithArgs("lesson-1").
		WillReturnRows(rows)

	students, err := repo.ListCompletions(context.Background(), "lesson-1")
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, models.CompletionCompleted, students[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec("DELETE FROM lessons").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.Delete(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
