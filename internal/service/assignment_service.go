package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

type assignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error)
	Update(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) (bool, error)
	UpsertSubmission(ctx context.Context, submission *models.AssignmentSubmission) error
	FindSubmissionByID(ctx context.Context, id string) (*models.AssignmentSubmission, error)
	ListSubmissions(ctx context.Context, assignmentID string) ([]models.AssignmentSubmission, error)
	Grade(ctx context.Context, id string, grade float64, feedback string) error
}

// CreateAssignmentRequest describes assignment creation payload.
type CreateAssignmentRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateAssignmentRequest carries partial assignment updates.
type UpdateAssignmentRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

// SubmitAssignmentRequest is a student's handed-in work.
type SubmitAssignmentRequest struct {
	Content string `json:"content" validate:"required"`
}

// GradeSubmissionRequest carries an instructor's grade and feedback.
type GradeSubmissionRequest struct {
	Grade    float64 `json:"grade" validate:"gte=0,lte=100"`
	Feedback string  `json:"feedback"`
}

// AssignmentService orchestrates assignment and submission workflows.
type AssignmentService struct {
	repo      assignmentRepository
	courses   courseReader
	catalog   catalogInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(repo assignmentRepository, courses courseReader, catalog catalogInvalidator, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{repo: repo, courses: courses, catalog: catalog, validator: validate, logger: logger}
}

// Create adds an assignment to a course.
func (s *AssignmentService) Create(ctx context.Context, courseID string, req CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	assignment := &models.Assignment{
		CourseID:    courseID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	return assignment, nil
}

// Get returns a single assignment.
func (s *AssignmentService) Get(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

// ListByCourse returns a course's assignments.
func (s *AssignmentService) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	assignments, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	if assignments == nil {
		assignments = []models.Assignment{}
	}
	return assignments, nil
}

// Update applies partial changes to an assignment.
func (s *AssignmentService) Update(ctx context.Context, id string, req UpdateAssignmentRequest) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	if req.Title != nil {
		assignment.Title = *req.Title
	}
	if req.Description != nil {
		assignment.Description = *req.Description
	}
	if req.DueDate != nil {
		assignment.DueDate = req.DueDate
	}

	if err := s.repo.Update(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}

	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	return assignment, nil
}

// Delete removes an assignment and its submissions.
func (s *AssignmentService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	return nil
}

// Submit records a student's work. Resubmission replaces the content but
// keeps any existing grade untouched until regraded.
func (s *AssignmentService) Submit(ctx context.Context, assignmentID, studentID string, req SubmitAssignmentRequest) (*models.AssignmentSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	if _, err := s.repo.FindByID(ctx, assignmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	submission := &models.AssignmentSubmission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Content:      req.Content,
	}
	if err := s.repo.UpsertSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record submission")
	}
	return submission, nil
}

// Submissions lists all handed-in work for an assignment.
func (s *AssignmentService) Submissions(ctx context.Context, assignmentID string) ([]models.AssignmentSubmission, error) {
	submissions, err := s.repo.ListSubmissions(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	if submissions == nil {
		submissions = []models.AssignmentSubmission{}
	}
	return submissions, nil
}

// GradeSubmission records a grade. Only the course instructor or an admin
// may grade; ownership is resolved through the submission's assignment.
func (s *AssignmentService) GradeSubmission(ctx context.Context, submissionID string, actor *models.JWTClaims, req GradeSubmissionRequest) (*models.AssignmentSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	submission, err := s.repo.FindSubmissionByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	assignment, err := s.repo.FindByID(ctx, submission.AssignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	course, err := s.courses.FindByID(ctx, assignment.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if actor.Role != models.RoleAdmin && course.InstructorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course instructor can grade submissions")
	}

	if err := s.repo.Grade(ctx, submissionID, req.Grade, req.Feedback); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}

	submission.Grade = &req.Grade
	submission.Feedback = &req.Feedback
	return submission, nil
}
