package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Exists(ctx context.Context, userID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	Delete(ctx context.Context, id string) (bool, error)
}

// EnrollRequest creates an enrollment for the authenticated user.
type EnrollRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

// UpdateEnrollmentRequest changes an enrollment's status.
type UpdateEnrollmentRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required,oneof=ACTIVE PAID CANCELLED"`
}

// EnrollmentService manages the user-to-course membership lifecycle.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   courseReader
	catalog   catalogInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses courseReader, catalog catalogInvalidator, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, courses: courses, catalog: catalog, validator: validate, logger: logger}
}

// Enroll registers the user on a course. A user holds at most one
// enrollment per course; duplicates are rejected.
func (s *EnrollmentService) Enroll(ctx context.Context, userID string, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	exists, err := s.repo.Exists(ctx, userID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this course")
	}

	enrollment := &models.Enrollment{
		UserID:   userID,
		CourseID: req.CourseID,
		Status:   models.EnrollmentStatusActive,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	return enrollment, nil
}

// List returns enrollments matching the filter with a total count.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}

	pagination := &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	}
	return enrollments, pagination, nil
}

// Get returns a single enrollment with student and course info. Students
// may only read their own enrollments.
func (s *EnrollmentService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if actor.Role == models.RoleStudent && detail.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view another student's enrollment")
	}
	return detail, nil
}

// UpdateStatus changes the enrollment lifecycle state.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req UpdateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}

	enrollment.Status = req.Status
	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	return enrollment, nil
}

// Delete removes an enrollment.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	return nil
}
