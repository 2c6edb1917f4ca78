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

type lessonRepository interface {
	Create(ctx context.Context, lesson *models.Lesson) error
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error)
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id string) (bool, error)
	UpsertCompletion(ctx context.Context, completion *models.LessonCompletion) error
	ListCompletions(ctx context.Context, lessonID string) ([]models.CompletedStudent, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// CreateLessonRequest describes lesson creation payload.
type CreateLessonRequest struct {
	Session     string   `json:"session" validate:"required"`
	Description string   `json:"description" validate:"required"`
	VideoURLs   []string `json:"video_urls" validate:"dive,url"`
}

// UpdateLessonRequest describes a partial lesson update.
type UpdateLessonRequest struct {
	Session     *string  `json:"session"`
	Description *string  `json:"description"`
	VideoURLs   []string `json:"video_urls" validate:"dive,url"`
}

// CompleteLessonRequest marks the acting student's progress on a lesson.
type CompleteLessonRequest struct {
	Status string  `json:"status" validate:"required,oneof=pending completed"`
	Score  float64 `json:"score" validate:"gte=0"`
}

// LessonService orchestrates lesson workflows including completion tracking.
type LessonService struct {
	repo      lessonRepository
	courses   courseReader
	catalog   catalogInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs LessonService.
func NewLessonService(repo lessonRepository, courses courseReader, catalog catalogInvalidator, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{repo: repo, courses: courses, catalog: catalog, validator: validate, logger: logger}
}

// Create adds a lesson to a course.
func (s *LessonService) Create(ctx context.Context, courseID string, req CreateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	lesson := &models.Lesson{
		CourseID:    courseID,
		Session:     req.Session,
		Description: req.Description,
		VideoURLs:   req.VideoURLs,
	}
	if err := s.repo.Create(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}

	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	return lesson, nil
}

// Get returns a lesson by id.
func (s *LessonService) Get(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

// ListByCourse returns a course's lessons. An existing course with no lessons
// yields an empty list.
func (s *LessonService) ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	lessons, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	if lessons == nil {
		lessons = []models.Lesson{}
	}
	return lessons, nil
}

// Update applies a partial lesson update.
func (s *LessonService) Update(ctx context.Context, id string, req UpdateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	lesson, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Session != nil {
		lesson.Session = *req.Session
	}
	if req.Description != nil {
		lesson.Description = *req.Description
	}
	if req.VideoURLs != nil {
		lesson.VideoURLs = req.VideoURLs
	}

	if err := s.repo.Update(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}

	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	return lesson, nil
}

// Delete removes a lesson.
func (s *LessonService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	return nil
}

// SetCompletion records the student's completion status on the lesson. The
// write is a conditional upsert: after it, exactly one entry references the
// student, holding the latest submitted status.
func (s *LessonService) SetCompletion(ctx context.Context, lessonID, studentID string, req CompleteLessonRequest) (*models.LessonCompletion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}

	if _, err := s.repo.FindByID(ctx, lessonID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}

	completion := &models.LessonCompletion{
		LessonID:  lessonID,
		StudentID: studentID,
		Status:    models.CompletionStatus(req.Status),
		Score:     req.Score,
	}
	if err := s.repo.UpsertCompletion(ctx, completion); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record completion")
	}
	return completion, nil
}

// CompletedStudents lists the name-limited completion entries for a lesson.
func (s *LessonService) CompletedStudents(ctx context.Context, lessonID string) ([]models.CompletedStudent, error) {
	if _, err := s.repo.FindByID(ctx, lessonID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	students, err := s.repo.ListCompletions(ctx, lessonID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list completions")
	}
	if students == nil {
		students = []models.CompletedStudent{}
	}
	return students, nil
}
