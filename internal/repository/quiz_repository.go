package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnhub-dev/learnhub-api/internal/models"
)

// QuizRepository handles persistence of quizzes, questions and submissions.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs the repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// Create persists a quiz and its questions in a single transaction.
func (r *QuizRepository) Create(ctx context.Context, quiz *models.Quiz, questions []models.Question) error {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = now
	}
	quiz.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin quiz tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const quizQuery = `INSERT INTO quizzes (id, course_id, title, created_at, updated_at)
        VALUES (:id, :course_id, :title, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, quizQuery, quiz); err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}

	const questionQuery = `INSERT INTO quiz_questions (id, quiz_id, text, options, correct_answer, position)
        VALUES (:id, :quiz_id, :text, :options, :correct_answer, :position)`
	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = uuid.NewString()
		}
		questions[i].QuizID = quiz.ID
		questions[i].Position = i
		if _, err := tx.NamedExecContext(ctx, questionQuery, questions[i]); err != nil {
			return fmt.Errorf("create quiz question: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit quiz tx: %w", err)
	}
	return nil
}

// FindByID returns a quiz by its ID.
func (r *QuizRepository) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	const query = `SELECT id, course_id, title, created_at, updated_at FROM quizzes WHERE id = $1`
	var quiz models.Quiz
	if err := r.db.GetContext(ctx, &quiz, query, id); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// ListByCourse returns all quizzes belonging to a course.
func (r *QuizRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error) {
	const query = `SELECT id, course_id, title, created_at, updated_at
        FROM quizzes WHERE course_id = $1 ORDER BY created_at`
	var quizzes []models.Quiz
	if err := r.db.SelectContext(ctx, &quizzes, query, courseID); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzes, nil
}

// Questions returns the ordered question list including the correct answers.
// Callers decide what to expose.
func (r *QuizRepository) Questions(ctx context.Context, quizID string) ([]models.Question, error) {
	const query = `SELECT id, quiz_id, text, options, correct_answer, position
        FROM quiz_questions WHERE quiz_id = $1 ORDER BY position`
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, query, quizID); err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}
	return questions, nil
}

// Update renames a quiz and, when a question set is supplied, replaces its
// questions in the same transaction.
func (r *QuizRepository) Update(ctx context.Context, quiz *models.Quiz, questions []models.Question) error {
	quiz.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin quiz tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const quizQuery = `UPDATE quizzes SET title = :title, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, quizQuery, quiz); err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}

	if questions != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_questions WHERE quiz_id = $1`, quiz.ID); err != nil {
			return fmt.Errorf("clear quiz questions: %w", err)
		}
		const questionQuery = `INSERT INTO quiz_questions (id, quiz_id, text, options, correct_answer, position)
        VALUES (:id, :quiz_id, :text, :options, :correct_answer, :position)`
		for i := range questions {
			if questions[i].ID == "" {
				questions[i].ID = uuid.NewString()
			}
			questions[i].QuizID = quiz.ID
			questions[i].Position = i
			if _, err := tx.NamedExecContext(ctx, questionQuery, questions[i]); err != nil {
				return fmt.Errorf("replace quiz question: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit quiz tx: %w", err)
	}
	return nil
}

// Delete removes a quiz with its questions and submissions.
func (r *QuizRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM quizzes WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete quiz: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete quiz affected rows: %w", err)
	}
	return affected > 0, nil
}

// UpsertSubmission stores a scored attempt, overwriting any previous attempt
// by the same student in a single conditional statement.
func (r *QuizRepository) UpsertSubmission(ctx context.Context, submission *models.QuizSubmission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO quiz_submissions (id, quiz_id, student_id, answers, score, submitted_at)
        VALUES (:id, :quiz_id, :student_id, :answers, :score, :submitted_at)
        ON CONFLICT (quiz_id, student_id)
        DO UPDATE SET answers = EXCLUDED.answers, score = EXCLUDED.score, submitted_at = EXCLUDED.submitted_at`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("upsert quiz submission: %w", err)
	}
	return nil
}

// FindSubmission returns a student's attempt for a quiz.
func (r *QuizRepository) FindSubmission(ctx context.Context, quizID, studentID string) (*models.QuizSubmission, error) {
	const query = `SELECT id, quiz_id, student_id, answers, score, submitted_at
        FROM quiz_submissions WHERE quiz_id = $1 AND student_id = $2`
	var submission models.QuizSubmission
	if err := r.db.GetContext(ctx, &submission, query, quizID, studentID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// ListSubmissions returns all attempts for a quiz.
func (r *QuizRepository) ListSubmissions(ctx context.Context, quizID string) ([]models.QuizSubmission, error) {
	const query = `SELECT id, quiz_id, student_id, answers, score, submitted_at
        FROM quiz_submissions WHERE quiz_id = $1 ORDER BY submitted_at`
	var submissions []models.QuizSubmission
	if err := r.db.SelectContext(ctx, &submissions, query, quizID); err != nil {
		return nil, fmt.Errorf("list quiz submissions: %w", err)
	}
	return submissions, nil
}
