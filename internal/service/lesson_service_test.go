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

type completionKey struct {
	lessonID  string
	studentID string
}

type mockLessonRepo struct {
	lessons     map[string]*models.Lesson
	completions map[completionKey]*models.LessonCompletion
}

func newMockLessonRepo() *mockLessonRepo {
	return &mockLessonRepo{
		lessons:     make(map[string]*models.Lesson),
		completions: make(map[completionKey]*models.LessonCompletion),
	}
}

func (m *mockLessonRepo) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = "lesson-" + lesson.Session
	}
	m.lessons[lesson.ID] = lesson
	return nil
}

func (m *mockLessonRepo) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, ok := m.lessons[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return lesson, nil
}

func (m *mockLessonRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error) {
	var out []models.Lesson
	for _, l := range m.lessons {
		if l.CourseID == courseID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *mockLessonRepo) Update(ctx context.Context, lesson *models.Lesson) error {
	m.lessons[lesson.ID] = lesson
	return nil
}

func (m *mockLessonRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.lessons[id]; !ok {
		return false, nil
	}
	delete(m.lessons, id)
	return true, nil
}

func (m *mockLessonRepo) UpsertCompletion(ctx context.Context, completion *models.LessonCompletion) error {
	key := completionKey{completion.LessonID, completion.StudentID}
	m.completions[key] = completion
	return nil
}

func (m *mockLessonRepo) ListCompletions(ctx context.Context, lessonID string) ([]models.CompletedStudent, error) {
	var out []models.CompletedStudent
	for key, c := range m.completions {
		if key.lessonID == lessonID {
			out = append(out, models.CompletedStudent{
				StudentID: c.StudentID,
				Status:    c.Status,
			})
		}
	}
	return out, nil
}

type mockCourseReader struct {
	courses map[string]*models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return course, nil
}

type stubInvalidator struct {
	calls int
}

func (s *stubInvalidator) Invalidate(ctx context.Context) { s.calls++ }

func testLessonService(repo *mockLessonRepo, courses *mockCourseReader) (*LessonService, *stubInvalidator) {
	inv := &stubInvalidator{}
	return NewLessonService(repo, courses, inv, nil, nil), inv
}

func TestCreateLessonUnknownCourse(t *testing.T) {
	repo := newMockLessonRepo()
	svc, _ := testLessonService(repo, &mockCourseReader{courses: map[string]*models.Course{}})

	_, err := svc.Create(context.Background(), "missing", CreateLessonRequest{
		Session:     "Intro",
		Description: "First session",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCreateLessonInvalidatesCatalog(t *testing.T) {
	repo := newMockLessonRepo()
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1"},
	}}
	svc, inv := testLessonService(repo, courses)

	lesson, err := svc.Create(context.Background(), "course-1", CreateLessonRequest{
		Session:     "Intro",
		Description: "First session",
	})
	require.NoError(t, err)
	assert.Equal(t, "course-1", lesson.CourseID)
	assert.Equal(t, 1, inv.calls)
}

func TestSetCompletionUpsertConverges(t *testing.T) {
	repo := newMockLessonRepo()
	repo.lessons["lesson-1"] = &models.Lesson{ID: "lesson-1", CourseID: "course-1"}
	svc, _ := testLessonService(repo, &mockCourseReader{})

	_, err := svc.SetCompletion(context.Background(), "lesson-1", "student-1", CompleteLessonRequest{
		Status: "pending",
	})
	require.NoError(t, err)

	completion, err := svc.SetCompletion(context.Background(), "lesson-1", "student-1", CompleteLessonRequest{
		Status: "completed",
		Score:  92,
	})
	require.NoError(t, err)
	assert.Equal(t, models.CompletionCompleted, completion.Status)

	// Repeated submissions leave exactly one entry per student.
	assert.Len(t, repo.completions, 1)
	stored := repo.completions[completionKey{"lesson-1", "student-1"}]
	assert.Equal(t, models.CompletionCompleted, stored.Status)
	assert.Equal(t, 92.0, stored.Score)
}

func TestSetCompletionUnknownLesson(t *testing.T) {
	svc, _ := testLessonService(newMockLessonRepo(), &mockCourseReader{})

	_, err := svc.SetCompletion(context.Background(), "missing", "student-1", CompleteLessonRequest{
		Status: "completed",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestSetCompletionRejectsUnknownStatus(t *testing.T) {
	repo := newMockLessonRepo()
	repo.lessons["lesson-1"] = &models.Lesson{ID: "lesson-1"}
	svc, _ := testLessonService(repo, &mockCourseReader{})

	_, err := svc.SetCompletion(context.Background(), "lesson-1", "student-1", CompleteLessonRequest{
		Status: "done",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestListByCourseEmptyIsNotNil(t *testing.T) {
	repo := newMockLessonRepo()
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1"},
	}}
	svc, _ := testLessonService(repo, courses)

	lessons, err := svc.ListByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	assert.NotNil(t, lessons)
	assert.Empty(t, lessons)
}
