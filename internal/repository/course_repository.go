package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/learnhub-dev/learnhub-api/internal/models"
)

// CourseRepository handles persistence of courses and the composed catalog
// read.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create persists a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, title, description, price, duration, category, instructor_id, media_urls, created_at, updated_at)
        VALUES (:id, :title, :description, :price, :duration, :category, :instructor_id, :media_urls, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, description, price, duration, category, instructor_id, media_urls, created_at, updated_at
        FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// List returns courses filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := "FROM courses"
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
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

	query := fmt.Sprintf(`SELECT id, title, description, price, duration, category, instructor_id, media_urls, created_at, updated_at
        %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// Update persists the mutable course fields.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, description = :description, price = :price,
        duration = :duration, category = :category, instructor_id = :instructor_id,
        media_urls = :media_urls, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course. Child rows cascade at the schema level.
func (r *CourseRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM courses WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete course affected rows: %w", err)
	}
	return affected > 0, nil
}

type composedCourseRow struct {
	models.Course
	InstructorFirstName string `db:"instructor_first_name"`
	InstructorLastName  string `db:"instructor_last_name"`
}

// ListComposed resolves every course root together with its instructor and
// child collections. The instructor join is inner: a course whose instructor
// reference does not resolve is dropped. Child collections are resolved in
// follow-up queries over the returned root set; the reads share no
// transaction, so the view is a point-in-time snapshot per collection.
func (r *CourseRepository) ListComposed(ctx context.Context) ([]models.CourseView, error) {
	const rootQuery = `SELECT c.id, c.title, c.description, c.price, c.duration, c.category,
        c.instructor_id, c.media_urls, c.created_at, c.updated_at,
        u.first_name AS instructor_first_name, u.last_name AS instructor_last_name
        FROM courses c
        JOIN users u ON u.id = c.instructor_id
        ORDER BY c.created_at DESC`

	var roots []composedCourseRow
	if err := r.db.SelectContext(ctx, &roots, rootQuery); err != nil {
		return nil, fmt.Errorf("list composed courses: %w", err)
	}
	if len(roots) == 0 {
		return []models.CourseView{}, nil
	}

	ids := make([]string, len(roots))
	for i, root := range roots {
		ids[i] = root.ID
	}

	lessons, err := r.lessonsByCourse(ctx, ids)
	if err != nil {
		return nil, err
	}
	quizzes, err := r.quizzesByCourse(ctx, ids)
	if err != nil {
		return nil, err
	}
	assignments, err := r.assignmentsByCourse(ctx, ids)
	if err != nil {
		return nil, err
	}
	enrollments, err := r.enrollmentsByCourse(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.CourseView, len(roots))
	for i, root := range roots {
		view := models.CourseView{
			Course: root.Course,
			Instructor: models.InstructorInfo{
				FirstName: root.InstructorFirstName,
				LastName:  root.InstructorLastName,
			},
			Lessons:     lessons[root.ID],
			Quizzes:     quizzes[root.ID],
			Assignments: assignments[root.ID],
			Enrollments: enrollments[root.ID],
		}
		if view.Lessons == nil {
			view.Lessons = []models.Lesson{}
		}
		if view.Quizzes == nil {
			view.Quizzes = []models.Quiz{}
		}
		if view.Assignments == nil {
			view.Assignments = []models.Assignment{}
		}
		if view.Enrollments == nil {
			view.Enrollments = []models.Enrollment{}
		}
		views[i] = view
	}
	return views, nil
}

func (r *CourseRepository) lessonsByCourse(ctx context.Context, courseIDs []string) (map[string][]models.Lesson, error) {
	const query = `SELECT id, course_id, session, description, video_urls, quiz_id, created_at, updated_at
        FROM lessons WHERE course_id = ANY($1) ORDER BY created_at`
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("resolve course lessons: %w", err)
	}
	grouped := make(map[string][]models.Lesson, len(courseIDs))
	for _, lesson := range lessons {
		grouped[lesson.CourseID] = append(grouped[lesson.CourseID], lesson)
	}
	return grouped, nil
}

func (r *CourseRepository) quizzesByCourse(ctx context.Context, courseIDs []string) (map[string][]models.Quiz, error) {
	const query = `SELECT id, course_id, title, created_at, updated_at
        FROM quizzes WHERE course_id = ANY($1) ORDER BY created_at`
	var quizzes []models.Quiz
	if err := r.db.SelectContext(ctx, &quizzes, query, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("resolve course quizzes: %w", err)
	}
	grouped := make(map[string][]models.Quiz, len(courseIDs))
	for _, quiz := range quizzes {
		grouped[quiz.CourseID] = append(grouped[quiz.CourseID], quiz)
	}
	return grouped, nil
}

func (r *CourseRepository) assignmentsByCourse(ctx context.Context, courseIDs []string) (map[string][]models.Assignment, error) {
	const query = `SELECT id, course_id, title, description, due_date, created_at, updated_at
        FROM assignments WHERE course_id = ANY($1) ORDER BY created_at`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("resolve course assignments: %w", err)
	}
	grouped := make(map[string][]models.Assignment, len(courseIDs))
	for _, assignment := range assignments {
		grouped[assignment.CourseID] = append(grouped[assignment.CourseID], assignment)
	}
	return grouped, nil
}

func (r *CourseRepository) enrollmentsByCourse(ctx context.Context, courseIDs []string) (map[string][]models.Enrollment, error) {
	const query = `SELECT id, user_id, course_id, status, enrolled_at
        FROM enrollments WHERE course_id = ANY($1) ORDER BY enrolled_at`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("resolve course enrollments: %w", err)
	}
	grouped := make(map[string][]models.Enrollment, len(courseIDs))
	for _, enrollment := range enrollments {
		grouped[enrollment.CourseID] = append(grouped[enrollment.CourseID], enrollment)
	}
	return grouped, nil
}
