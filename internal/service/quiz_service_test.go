package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

type submissionKey struct {
	quizID    string
	studentID string
}

type mockQuizRepo struct {
	quizzes     map[string]*models.Quiz
	questions   map[string][]models.Question
	submissions map[submissionKey]*models.QuizSubmission
}

func newMockQuizRepo() *mockQuizRepo {
	return &mockQuizRepo{
		quizzes:     make(map[string]*models.Quiz),
		questions:   make(map[string][]models.Question),
		submissions: make(map[submissionKey]*models.QuizSubmission),
	}
}

func (m *mockQuizRepo) Create(ctx context.Context, quiz *models.Quiz, questions []models.Question) error {
	if quiz.ID == "" {
		quiz.ID = "quiz-" + quiz.Title
	}
	for i := range questions {
		questions[i].QuizID = quiz.ID
		questions[i].Position = i
	}
	m.quizzes[quiz.ID] = quiz
	m.questions[quiz.ID] = questions
	return nil
}

func (m *mockQuizRepo) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	quiz, ok := m.quizzes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return quiz, nil
}

func (m *mockQuizRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error) {
	var out []models.Quiz
	for _, q := range m.quizzes {
		if q.CourseID == courseID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (m *mockQuizRepo) Questions(ctx context.Context, quizID string) ([]models.Question, error) {
	return m.questions[quizID], nil
}

func (m *mockQuizRepo) Update(ctx context.Context, quiz *models.Quiz, questions []models.Question) error {
	m.quizzes[quiz.ID] = quiz
	if questions != nil {
		for i := range questions {
			questions[i].QuizID = quiz.ID
			questions[i].Position = i
		}
		m.questions[quiz.ID] = questions
	}
	return nil
}

func (m *mockQuizRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.quizzes[id]; !ok {
		return false, nil
	}
	delete(m.quizzes, id)
	delete(m.questions, id)
	return true, nil
}

func (m *mockQuizRepo) UpsertSubmission(ctx context.Context, submission *models.QuizSubmission) error {
	m.submissions[submissionKey{submission.QuizID, submission.StudentID}] = submission
	return nil
}

func (m *mockQuizRepo) FindSubmission(ctx context.Context, quizID, studentID string) (*models.QuizSubmission, error) {
	sub, ok := m.submissions[submissionKey{quizID, studentID}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return sub, nil
}

func (m *mockQuizRepo) ListSubmissions(ctx context.Context, quizID string) ([]models.QuizSubmission, error) {
	var out []models.QuizSubmission
	for key, sub := range m.submissions {
		if key.quizID == quizID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func seedQuiz(repo *mockQuizRepo) {
	repo.quizzes["quiz-1"] = &models.Quiz{ID: "quiz-1", CourseID: "course-1", Title: "Basics"}
	repo.questions["quiz-1"] = []models.Question{
		{ID: "q1", QuizID: "quiz-1", Text: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: 1},
		{ID: "q2", QuizID: "quiz-1", Text: "Capital of France?", Options: []string{"Paris", "Rome"}, CorrectAnswer: 0},
		{ID: "q3", QuizID: "quiz-1", Text: "Largest planet?", Options: []string{"Mars", "Jupiter"}, CorrectAnswer: 1},
	}
}

func testQuizService(repo *mockQuizRepo) *QuizService {
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1"},
	}}
	return NewQuizService(repo, courses, &stubInvalidator{}, nil, nil)
}

func TestSubmitScoresAgainstStoredAnswers(t *testing.T) {
	repo := newMockQuizRepo()
	seedQuiz(repo)
	svc := testQuizService(repo)

	submission, err := svc.Submit(context.Background(), "quiz-1", "student-1", SubmitQuizRequest{
		Answers: models.QuizAnswers{
			{QuestionID: "q1", SelectedOption: 1},
			{QuestionID: "q2", SelectedOption: 1},
			{QuestionID: "q3", SelectedOption: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, submission.Score)
}

func TestSubmitResubmissionOverwrites(t *testing.T) {
	repo := newMockQuizRepo()
	seedQuiz(repo)
	svc := testQuizService(repo)

	_, err := svc.Submit(context.Background(), "quiz-1", "student-1", SubmitQuizRequest{
		Answers: models.QuizAnswers{{QuestionID: "q1", SelectedOption: 0}},
	})
	require.NoError(t, err)

	second, err := svc.Submit(context.Background(), "quiz-1", "student-1", SubmitQuizRequest{
		Answers: models.QuizAnswers{{QuestionID: "q1", SelectedOption: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Score)
	assert.Len(t, repo.submissions, 1)
	assert.Equal(t, 1, repo.submissions[submissionKey{"quiz-1", "student-1"}].Score)
}

func TestSubmitRejectsUnknownQuestion(t *testing.T) {
	repo := newMockQuizRepo()
	seedQuiz(repo)
	svc := testQuizService(repo)

	_, err := svc.Submit(context.Background(), "quiz-1", "student-1", SubmitQuizRequest{
		Answers: models.QuizAnswers{{QuestionID: "ghost", SelectedOption: 0}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSubmitUnknownQuiz(t *testing.T) {
	svc := testQuizService(newMockQuizRepo())

	_, err := svc.Submit(context.Background(), "missing", "student-1", SubmitQuizRequest{
		Answers: models.QuizAnswers{{QuestionID: "q1", SelectedOption: 0}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestUpdateQuizRenamesWithoutTouchingQuestions(t *testing.T) {
	repo := newMockQuizRepo()
	seedQuiz(repo)
	svc := testQuizService(repo)

	before := len(repo.questions["quiz-1"])
	title := "Renamed"
	quiz, err := svc.Update(context.Background(), "quiz-1", UpdateQuizRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", quiz.Title)
	assert.Len(t, repo.questions["quiz-1"], before)
}

func TestUpdateQuizReplacesQuestions(t *testing.T) {
	repo := newMockQuizRepo()
	seedQuiz(repo)
	svc := testQuizService(repo)

	_, err := svc.Update(context.Background(), "quiz-1", UpdateQuizRequest{
		Questions: []QuestionInput{{Text: "New?", Options: []string{"a", "b"}, CorrectAnswer: 1}},
	})
	require.NoError(t, err)
	require.Len(t, repo.questions["quiz-1"], 1)
	assert.Equal(t, "New?", repo.questions["quiz-1"][0].Text)
}

func TestUpdateQuizUnknown(t *testing.T) {
	svc := testQuizService(newMockQuizRepo())

	title := "Renamed"
	_, err := svc.Update(context.Background(), "missing", UpdateQuizRequest{Title: &title})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCreateQuizValidatesAnswerIndex(t *testing.T) {
	svc := testQuizService(newMockQuizRepo())

	_, err := svc.Create(context.Background(), "course-1", CreateQuizRequest{
		Title: "Broken",
		Questions: []QuestionInput{
			{Text: "Pick one", Options: []string{"a", "b"}, CorrectAnswer: 5},
		},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestGetQuizIncludesQuestions(t *testing.T) {
	repo := newMockQuizRepo()
	seedQuiz(repo)
	svc := testQuizService(repo)

	view, err := svc.Get(context.Background(), "quiz-1")
	require.NoError(t, err)
	assert.Len(t, view.Questions, 3)
}
