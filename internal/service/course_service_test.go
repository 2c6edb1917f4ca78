package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

type mockCourseRepo struct {
	courses map[string]*models.Course
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{courses: make(map[string]*models.Course)}
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = "course-1"
	}
	m.courses[course.ID] = course
	return nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return course, nil
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var out []models.Course
	for _, c := range m.courses {
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	m.courses[course.ID] = course
	return nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.courses[id]; !ok {
		return false, nil
	}
	delete(m.courses, id)
	return true, nil
}

func testCourseService(repo *mockCourseRepo) (*CourseService, *stubInvalidator) {
	inv := &stubInvalidator{}
	return NewCourseService(repo, nil, inv, nil, nil), inv
}

func TestCreateCourseOwnedByActor(t *testing.T) {
	repo := newMockCourseRepo()
	svc, inv := testCourseService(repo)

	actor := &models.JWTClaims{UserID: "instr-1", Role: models.RoleInstructor}
	course, err := svc.Create(context.Background(), CreateCourseRequest{
		Title:       "Go Basics",
		Description: "An introduction",
		Price:       49.99,
		Category:    "programming",
	}, nil, actor)
	require.NoError(t, err)
	assert.Equal(t, "instr-1", course.InstructorID)
	assert.Equal(t, 1, inv.calls)
}

func TestCreateCourseMediaDisabled(t *testing.T) {
	repo := newMockCourseRepo()
	svc, _ := testCourseService(repo)

	actor := &models.JWTClaims{UserID: "instr-1", Role: models.RoleInstructor}
	files := []CourseMedia{{Filename: "intro.mp4", Content: strings.NewReader("payload")}}
	_, err := svc.Create(context.Background(), CreateCourseRequest{
		Title:       "Go Basics",
		Description: "An introduction",
	}, files, actor)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.courses)
}

func TestUpdateCourseByOtherInstructorForbidden(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["course-1"] = &models.Course{ID: "course-1", Title: "Go Basics", InstructorID: "instr-1"}
	svc, _ := testCourseService(repo)

	title := "Hijacked"
	actor := &models.JWTClaims{UserID: "instr-2", Role: models.RoleInstructor}
	_, err := svc.Update(context.Background(), "course-1", UpdateCourseRequest{Title: &title}, nil, actor)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Equal(t, "Go Basics", repo.courses["course-1"].Title)
}

func TestUpdateCoursePartialFields(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["course-1"] = &models.Course{ID: "course-1", Title: "Go Basics", Description: "v1", Price: 10, InstructorID: "instr-1"}
	svc, inv := testCourseService(repo)

	price := 20.0
	actor := &models.JWTClaims{UserID: "instr-1", Role: models.RoleInstructor}
	updated, err := svc.Update(context.Background(), "course-1", UpdateCourseRequest{Price: &price}, nil, actor)
	require.NoError(t, err)
	assert.Equal(t, 20.0, updated.Price)
	assert.Equal(t, "Go Basics", updated.Title)
	assert.Equal(t, "v1", updated.Description)
	assert.Equal(t, 1, inv.calls)
}

func TestDeleteCourseUnknown(t *testing.T) {
	repo := newMockCourseRepo()
	svc, inv := testCourseService(repo)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, 0, inv.calls)
}
