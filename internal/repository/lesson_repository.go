package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnhub-dev/learnhub-api/internal/models"
)

// LessonRepository handles persistence of lessons and completion entries.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs the repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// Create persists a new lesson record.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now
	const query = `INSERT INTO lessons (id, course_id, session, description, video_urls, quiz_id, created_at, updated_at)
        VALUES (:id, :course_id, :session, :description, :video_urls, :quiz_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// FindByID returns a lesson by its ID.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	const query = `SELECT id, course_id, session, description, video_urls, quiz_id, created_at, updated_at
        FROM lessons WHERE id = $1`
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ListByCourse returns all lessons belonging to a course.
func (r *LessonRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error) {
	const query = `SELECT id, course_id, session, description, video_urls, quiz_id, created_at, updated_at
        FROM lessons WHERE course_id = $1 ORDER BY created_at`
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, courseID); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// Update persists the mutable lesson fields.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET session = :session, description = :description,
        video_urls = :video_urls, quiz_id = :quiz_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// Delete removes a lesson and its completion entries.
func (r *LessonRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM lessons WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete lesson: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete lesson affected rows: %w", err)
	}
	return affected > 0, nil
}

// UpsertCompletion records a student's completion status in one conditional
// statement. The (lesson_id, student_id) key keeps a single entry per student
// and the ON CONFLICT arm makes repeated submissions last-write-wins without
// a read-modify-write race.
func (r *LessonRepository) UpsertCompletion(ctx context.Context, completion *models.LessonCompletion) error {
	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = time.Now().UTC()
	}
	const query = `INSERT INTO lesson_completions (lesson_id, student_id, status, score, completed_at)
        VALUES (:lesson_id, :student_id, :status, :score, :completed_at)
        ON CONFLICT (lesson_id, student_id)
        DO UPDATE SET status = EXCLUDED.status, score = EXCLUDED.score, completed_at = EXCLUDED.completed_at`
	if _, err := r.db.NamedExecContext(ctx, query, completion); err != nil {
		return fmt.Errorf("upsert lesson completion: %w", err)
	}
	return nil
}

// FindCompletion returns the completion entry for a (lesson, student) pair.
func (r *LessonRepository) FindCompletion(ctx context.Context, lessonID, studentID string) (*models.LessonCompletion, error) {
	const query = `SELECT lesson_id, student_id, status, score, completed_at
        FROM lesson_completions WHERE lesson_id = $1 AND student_id = $2`
	var completion models.LessonCompletion
	if err := r.db.GetContext(ctx, &completion, query, lessonID, studentID); err != nil {
		return nil, err
	}
	return &completion, nil
}

// ListCompletions returns the name-limited completion entries for a lesson.
func (r *LessonRepository) ListCompletions(ctx context.Context, lessonID string) ([]models.CompletedStudent, error) {
	const query = `SELECT lc.student_id, u.first_name, u.last_name, lc.status, lc.completed_at
        FROM lesson_completions lc
        JOIN users u ON u.id = lc.student_id
        WHERE lc.lesson_id = $1 ORDER BY lc.completed_at`
	var students []models.CompletedStudent
	if err := r.db.SelectContext(ctx, &students, query, lessonID); err != nil {
		return nil, fmt.Errorf("list lesson completions: %w", err)
	}
	return students, nil
}
