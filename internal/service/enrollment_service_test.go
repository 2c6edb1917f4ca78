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

type mockEnrollmentRepo struct {
	enrollments map[string]*models.Enrollment
}

func newMockEnrollmentRepo() *mockEnrollmentRepo {
	return &mockEnrollmentRepo{enrollments: make(map[string]*models.Enrollment)}
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: *e})
	}
	return out, len(out), nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return e, nil
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.EnrollmentDetail{Enrollment: *e}, nil
}

func (m *mockEnrollmentRepo) Exists(ctx context.Context, userID, courseID string) (bool, error) {
	for _, e := range m.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = "enroll-" + enrollment.UserID + "-" + enrollment.CourseID
	}
	m.enrollments[enrollment.ID] = enrollment
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	e, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	return nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.enrollments[id]; !ok {
		return false, nil
	}
	delete(m.enrollments, id)
	return true, nil
}

func testEnrollmentService(repo *mockEnrollmentRepo) *EnrollmentService {
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1"},
	}}
	return NewEnrollmentService(repo, courses, &stubInvalidator{}, nil, nil)
}

func TestEnrollCreatesActiveMembership(t *testing.T) {
	repo := newMockEnrollmentRepo()
	svc := testEnrollmentService(repo)

	enrollment, err := svc.Enroll(context.Background(), "student-1", EnrollRequest{CourseID: "course-1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Equal(t, "student-1", enrollment.UserID)
}

func TestEnrollDuplicateRejected(t *testing.T) {
	repo := newMockEnrollmentRepo()
	svc := testEnrollmentService(repo)

	_, err := svc.Enroll(context.Background(), "student-1", EnrollRequest{CourseID: "course-1"})
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), "student-1", EnrollRequest{CourseID: "course-1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollUnknownCourse(t *testing.T) {
	svc := testEnrollmentService(newMockEnrollmentRepo())

	_, err := svc.Enroll(context.Background(), "student-1", EnrollRequest{CourseID: "missing"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestGetEnrollmentHidesOtherStudents(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.enrollments["e1"] = &models.Enrollment{ID: "e1", UserID: "student-1", CourseID: "course-1"}
	svc := testEnrollmentService(repo)

	_, err := svc.Get(context.Background(), "e1", &models.JWTClaims{UserID: "student-2", Role: models.RoleStudent})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	detail, err := svc.Get(context.Background(), "e1", &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "student-1", detail.UserID)
}

func TestUpdateEnrollmentStatus(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.enrollments["e1"] = &models.Enrollment{ID: "e1", UserID: "student-1", CourseID: "course-1", Status: models.EnrollmentStatusActive}
	svc := testEnrollmentService(repo)

	enrollment, err := svc.UpdateStatus(context.Background(), "e1", UpdateEnrollmentRequest{Status: models.EnrollmentStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCancelled, enrollment.Status)

	_, err = svc.UpdateStatus(context.Background(), "e1", UpdateEnrollmentRequest{Status: "PAUSED"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
