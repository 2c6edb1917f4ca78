package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/media"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) (bool, error)
}

type catalogInvalidator interface {
	Invalidate(ctx context.Context)
}

// CourseMedia is one uploaded file attached to a create/update request.
type CourseMedia struct {
	Filename string
	Content  io.Reader
}

// CreateCourseRequest describes course creation payload.
type CreateCourseRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Price       float64 `json:"price" validate:"gte=0"`
	Duration    string  `json:"duration"`
	Category    string  `json:"category"`
}

// UpdateCourseRequest describes a partial course update. Nil fields keep the
// stored value.
type UpdateCourseRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Duration    *string  `json:"duration"`
	Category    *string  `json:"category"`
}

// CourseService orchestrates course workflows.
type CourseService struct {
	repo      courseRepository
	media     media.Store
	catalog   catalogInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService. The media store may be nil when
// uploads are disabled.
func NewCourseService(repo courseRepository, mediaStore media.Store, catalog catalogInvalidator, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, media: mediaStore, catalog: catalog, validator: validate, logger: logger}
}

// Create registers a new course owned by the acting instructor, uploading any
// attached media first so a storage failure leaves nothing persisted.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest, files []CourseMedia, actor *models.JWTClaims) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	urls, err := s.uploadMedia(ctx, files)
	if err != nil {
		return nil, err
	}

	course := &models.Course{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		Duration:     req.Duration,
		Category:     req.Category,
		InstructorID: actor.UserID,
		MediaURLs:    urls,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

// Get returns a course by id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return courses, pagination, nil
}

// Update applies a partial update. Only the owning instructor or an admin may
// mutate; all field changes land in one statement so a failed update persists
// nothing.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest, files []CourseMedia, actor *models.JWTClaims) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor.Role != models.RoleAdmin && course.InstructorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owning instructor may update this course")
	}

	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if req.Duration != nil {
		course.Duration = *req.Duration
	}
	if req.Category != nil {
		course.Category = *req.Category
	}

	if len(files) > 0 {
		urls, err := s.uploadMedia(ctx, files)
		if err != nil {
			return nil, err
		}
		course.MediaURLs = urls
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

// Delete removes a course.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *CourseService) uploadMedia(ctx context.Context, files []CourseMedia) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if s.media == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "media uploads are disabled")
	}
	urls := make([]string, 0, len(files))
	for _, file := range files {
		key := fmt.Sprintf("courses/%s%s", uuid.NewString(), path.Ext(file.Filename))
		url, err := s.media.Upload(ctx, key, file.Content)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upload media")
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
}
