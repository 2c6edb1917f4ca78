package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnhub-dev/learnhub-api/internal/models"
)

// AssignmentRepository handles persistence of assignments and submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create persists a new assignment record.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now
	const query = `INSERT INTO assignments (id, course_id, title, description, due_date, created_at, updated_at)
        VALUES (:id, :course_id, :title, :description, :due_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindByID returns an assignment by its ID.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, course_id, title, description, due_date, created_at, updated_at
        FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListByCourse returns all assignments belonging to a course.
func (r *AssignmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	const query = `SELECT id, course_id, title, description, due_date, created_at, updated_at
        FROM assignments WHERE course_id = $1 ORDER BY created_at`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// Update persists the mutable assignment fields.
func (r *AssignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments SET title = :title, description = :description,
        due_date = :due_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment and its submissions.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM assignments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete assignment affected rows: %w", err)
	}
	return affected > 0, nil
}

// UpsertSubmission stores a student's work, overwriting a previous hand-in.
func (r *AssignmentRepository) UpsertSubmission(ctx context.Context, submission *models.AssignmentSubmission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assignment_submissions (id, assignment_id, student_id, content, grade, feedback, submitted_at)
        VALUES (:id, :assignment_id, :student_id, :content, :grade, :feedback, :submitted_at)
        ON CONFLICT (assignment_id, student_id)
        DO UPDATE SET content = EXCLUDED.content, submitted_at = EXCLUDED.submitted_at`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("upsert assignment submission: %w", err)
	}
	return nil
}

// FindSubmissionByID returns a submission by its ID.
func (r *AssignmentRepository) FindSubmissionByID(ctx context.Context, id string) (*models.AssignmentSubmission, error) {
	const query = `SELECT id, assignment_id, student_id, content, grade, feedback, submitted_at
        FROM assignment_submissions WHERE id = $1`
	var submission models.AssignmentSubmission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// ListSubmissions returns all submissions for an assignment.
func (r *AssignmentRepository) ListSubmissions(ctx context.Context, assignmentID string) ([]models.AssignmentSubmission, error) {
	const query = `SELECT id, assignment_id, student_id, content, grade, feedback, submitted_at
        FROM assignment_submissions WHERE assignment_id = $1 ORDER BY submitted_at`
	var submissions []models.AssignmentSubmission
	if err := r.db.SelectContext(ctx, &submissions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list assignment submissions: %w", err)
	}
	return submissions, nil
}

// Grade records an instructor's grade and feedback on a submission.
func (r *AssignmentRepository) Grade(ctx context.Context, id string, grade float64, feedback string) error {
	const query = `UPDATE assignment_submissions SET grade = $2, feedback = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, grade, feedback); err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	return nil
}
