package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnhub-dev/learnhub-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentDetailColumns = `e.id, e.user_id, e.course_id, e.status, e.enrolled_at,
        u.first_name AS student_first_name, u.last_name AS student_last_name,
        u.email AS student_email, c.title AS course_title`

const enrollmentDetailJoins = ` FROM enrollments e
        LEFT JOIN users u ON u.id = e.user_id
        LEFT JOIN courses c ON c.id = e.course_id`

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("e.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s%s%s ORDER BY e.enrolled_at DESC LIMIT %d OFFSET %d",
		enrollmentDetailColumns, enrollmentDetailJoins, clause, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*)%s%s", enrollmentDetailJoins, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, user_id, course_id, status, enrolled_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student and course info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf("SELECT %s%s WHERE e.id = $1", enrollmentDetailColumns, enrollmentDetailJoins)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Exists checks whether the user already has an enrollment for the course.
func (r *EnrollmentRepository) Exists(ctx context.Context, userID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, userID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO enrollments (id, user_id, course_id, status, enrolled_at)
        VALUES (:id, :user_id, :course_id, :status, :enrolled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus updates the status for an enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// Delete removes an enrollment.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM enrollments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete enrollment affected rows: %w", err)
	}
	return affected > 0, nil
}
