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

type quizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz, questions []models.Question) error
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error)
	Questions(ctx context.Context, quizID string) ([]models.Question, error)
	Update(ctx context.Context, quiz *models.Quiz, questions []models.Question) error
	Delete(ctx context.Context, id string) (bool, error)
	UpsertSubmission(ctx context.Context, submission *models.QuizSubmission) error
	FindSubmission(ctx context.Context, quizID, studentID string) (*models.QuizSubmission, error)
	ListSubmissions(ctx context.Context, quizID string) ([]models.QuizSubmission, error)
}

// QuestionInput is one question within a quiz creation request.
type QuestionInput struct {
	Text          string   `json:"text" validate:"required"`
	Options       []string `json:"options" validate:"required,min=2"`
	CorrectAnswer int      `json:"correct_answer" validate:"gte=0"`
}

// CreateQuizRequest describes quiz creation payload.
type CreateQuizRequest struct {
	Title     string          `json:"title" validate:"required"`
	Questions []QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

// UpdateQuizRequest describes quiz updates. A nil Questions slice keeps the
// existing question set; a non-nil slice replaces it.
type UpdateQuizRequest struct {
	Title     *string         `json:"title" validate:"omitempty,min=1"`
	Questions []QuestionInput `json:"questions" validate:"omitempty,min=1,dive"`
}

// SubmitQuizRequest carries a student's selected options.
type SubmitQuizRequest struct {
	Answers models.QuizAnswers `json:"answers" validate:"required,min=1"`
}

// QuizView is a quiz with its questions, correct answers stripped.
type QuizView struct {
	models.Quiz
	Questions []models.Question `json:"questions"`
}

// QuizService orchestrates quiz workflows including server-side scoring.
type QuizService struct {
	repo      quizRepository
	courses   courseReader
	catalog   catalogInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewQuizService constructs QuizService.
func NewQuizService(repo quizRepository, courses courseReader, catalog catalogInvalidator, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{repo: repo, courses: courses, catalog: catalog, validator: validate, logger: logger}
}

// Create adds a quiz with its questions to a course.
func (s *QuizService) Create(ctx context.Context, courseID string, req CreateQuizRequest) (*models.Quiz, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}

	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	questions := make([]models.Question, len(req.Questions))
	for i, q := range req.Questions {
		if q.CorrectAnswer >= len(q.Options) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "correct answer index out of range")
		}
		questions[i] = models.Question{
			Text:          q.Text,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		}
	}

	quiz := &models.Quiz{CourseID: courseID, Title: req.Title}
	if err := s.repo.Create(ctx, quiz, questions); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create quiz")
	}

	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	return quiz, nil
}

// Get returns a quiz with its questions. Correct answers stay server-side
// through the Question JSON projection.
func (s *QuizService) Get(ctx context.Context, id string) (*QuizView, error) {
	quiz, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	questions, err := s.repo.Questions(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz questions")
	}
	if questions == nil {
		questions = []models.Question{}
	}
	return &QuizView{Quiz: *quiz, Questions: questions}, nil
}

// ListByCourse returns a course's quizzes.
func (s *QuizService) ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error) {
	quizzes, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quizzes")
	}
	if quizzes == nil {
		quizzes = []models.Quiz{}
	}
	return quizzes, nil
}

// Update renames a quiz and optionally replaces its question set.
func (s *QuizService) Update(ctx context.Context, id string, req UpdateQuizRequest) (*models.Quiz, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}

	quiz, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}

	if req.Title != nil {
		quiz.Title = *req.Title
	}

	var questions []models.Question
	if req.Questions != nil {
		questions = make([]models.Question, len(req.Questions))
		for i, q := range req.Questions {
			if q.CorrectAnswer >= len(q.Options) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "correct answer index out of range")
			}
			questions[i] = models.Question{
				Text:          q.Text,
				Options:       q.Options,
				CorrectAnswer: q.CorrectAnswer,
			}
		}
	}

	if err := s.repo.Update(ctx, quiz, questions); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update quiz")
	}
	return quiz, nil
}

// Delete removes a quiz.
func (s *QuizService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete quiz")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
	}
	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	return nil
}

// Submit scores the student's answers against the stored correct options and
// upserts the attempt: one row per (quiz, student), resubmission overwrites.
func (s *QuizService) Submit(ctx context.Context, quizID, studentID string, req SubmitQuizRequest) (*models.QuizSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	if _, err := s.repo.FindByID(ctx, quizID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}

	questions, err := s.repo.Questions(ctx, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz questions")
	}

	correct := make(map[string]int, len(questions))
	for _, q := range questions {
		correct[q.ID] = q.CorrectAnswer
	}

	score := 0
	for _, answer := range req.Answers {
		expected, ok := correct[answer.QuestionID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "answer references unknown question")
		}
		if answer.SelectedOption == expected {
			score++
		}
	}

	submission := &models.QuizSubmission{
		QuizID:    quizID,
		StudentID: studentID,
		Answers:   req.Answers,
		Score:     score,
	}
	if err := s.repo.UpsertSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record submission")
	}
	return submission, nil
}

// Submission returns a student's attempt for a quiz.
func (s *QuizService) Submission(ctx context.Context, quizID, studentID string) (*models.QuizSubmission, error) {
	submission, err := s.repo.FindSubmission(ctx, quizID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}

// Submissions lists all attempts for a quiz.
func (s *QuizService) Submissions(ctx context.Context, quizID string) ([]models.QuizSubmission, error) {
	submissions, err := s.repo.ListSubmissions(ctx, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	if submissions == nil {
		submissions = []models.QuizSubmission{}
	}
	return submissions, nil
}
