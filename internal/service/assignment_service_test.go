package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
)

type assignmentSubmissionKey struct {
	assignmentID string
	studentID    string
}

type mockAssignmentRepo struct {
	assignments map[string]*models.Assignment
	submissions map[assignmentSubmissionKey]*models.AssignmentSubmission
}

func newMockAssignmentRepo() *mockAssignmentRepo {
	return &mockAssignmentRepo{
		assignments: make(map[string]*models.Assignment),
		submissions: make(map[assignmentSubmissionKey]*models.AssignmentSubmission),
	}
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = fmt.Sprintf("assignment-%d", len(m.assignments)+1)
	}
	m.assignments[assignment.ID] = assignment
	return nil
}

func (m *mockAssignmentRepo) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, ok := m.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return assignment, nil
}

func (m *mockAssignmentRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range m.assignments {
		if a.CourseID == courseID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAssignmentRepo) Update(ctx context.Context, assignment *models.Assignment) error {
	m.assignments[assignment.ID] = assignment
	return nil
}

func (m *mockAssignmentRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.assignments[id]; !ok {
		return false, nil
	}
	delete(m.assignments, id)
	return true, nil
}

func (m *mockAssignmentRepo) UpsertSubmission(ctx context.Context, submission *models.AssignmentSubmission) error {
	key := assignmentSubmissionKey{submission.AssignmentID, submission.StudentID}
	if existing, ok := m.submissions[key]; ok {
		submission.ID = existing.ID
	} else if submission.ID == "" {
		submission.ID = fmt.Sprintf("submission-%d", len(m.submissions)+1)
	}
	m.submissions[key] = submission
	return nil
}

func (m *mockAssignmentRepo) FindSubmissionByID(ctx context.Context, id string) (*models.AssignmentSubmission, error) {
	for _, s := range m.submissions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssignmentRepo) ListSubmissions(ctx context.Context, assignmentID string) ([]models.AssignmentSubmission, error) {
	var out []models.AssignmentSubmission
	for _, s := range m.submissions {
		if s.AssignmentID == assignmentID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockAssignmentRepo) Grade(ctx context.Context, id string, grade float64, feedback string) error {
	for _, s := range m.submissions {
		if s.ID == id {
			s.Grade = &grade
			s.Feedback = &feedback
			return nil
		}
	}
	return sql.ErrNoRows
}

func testAssignmentService(repo *mockAssignmentRepo) (*AssignmentService, *stubInvalidator) {
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", Title: "Go Basics", InstructorID: "instr-1"},
	}}
	inv := &stubInvalidator{}
	return NewAssignmentService(repo, courses, inv, nil, nil), inv
}

func seedAssignment(repo *mockAssignmentRepo) *models.Assignment {
	assignment := &models.Assignment{ID: "assignment-1", CourseID: "course-1", Title: "Essay"}
	repo.assignments[assignment.ID] = assignment
	return assignment
}

func TestSubmitAssignmentResubmissionOverwrites(t *testing.T) {
	repo := newMockAssignmentRepo()
	seedAssignment(repo)
	svc, _ := testAssignmentService(repo)

	first, err := svc.Submit(context.Background(), "assignment-1", "student-1", SubmitAssignmentRequest{Content: "draft"})
	require.NoError(t, err)

	second, err := svc.Submit(context.Background(), "assignment-1", "student-1", SubmitAssignmentRequest{Content: "final"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.submissions, 1)
	stored := repo.submissions[assignmentSubmissionKey{"assignment-1", "student-1"}]
	assert.Equal(t, "final", stored.Content)
}

func TestSubmitAssignmentUnknownAssignment(t *testing.T) {
	repo := newMockAssignmentRepo()
	svc, _ := testAssignmentService(repo)

	_, err := svc.Submit(context.Background(), "missing", "student-1", SubmitAssignmentRequest{Content: "late"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestGradeSubmissionByCourseInstructor(t *testing.T) {
	repo := newMockAssignmentRepo()
	seedAssignment(repo)
	svc, _ := testAssignmentService(repo)

	submitted, err := svc.Submit(context.Background(), "assignment-1", "student-1", SubmitAssignmentRequest{Content: "work"})
	require.NoError(t, err)

	actor := &models.JWTClaims{UserID: "instr-1", Role: models.RoleInstructor}
	graded, err := svc.GradeSubmission(context.Background(), submitted.ID, actor, GradeSubmissionRequest{Grade: 91, Feedback: "solid"})
	require.NoError(t, err)
	require.NotNil(t, graded.Grade)
	assert.Equal(t, 91.0, *graded.Grade)
	require.NotNil(t, graded.Feedback)
	assert.Equal(t, "solid", *graded.Feedback)
}

func TestGradeSubmissionOtherInstructorForbidden(t *testing.T) {
	repo := newMockAssignmentRepo()
	seedAssignment(repo)
	svc, _ := testAssignmentService(repo)

	submitted, err := svc.Submit(context.Background(), "assignment-1", "student-1", SubmitAssignmentRequest{Content: "work"})
	require.NoError(t, err)

	actor := &models.JWTClaims{UserID: "instr-2", Role: models.RoleInstructor}
	_, err = svc.GradeSubmission(context.Background(), submitted.ID, actor, GradeSubmissionRequest{Grade: 50})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestGradeSubmissionAdminBypassesOwnership(t *testing.T) {
	repo := newMockAssignmentRepo()
	seedAssignment(repo)
	svc, _ := testAssignmentService(repo)

	submitted, err := svc.Submit(context.Background(), "assignment-1", "student-1", SubmitAssignmentRequest{Content: "work"})
	require.NoError(t, err)

	actor := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	graded, err := svc.GradeSubmission(context.Background(), submitted.ID, actor, GradeSubmissionRequest{Grade: 75})
	require.NoError(t, err)
	require.NotNil(t, graded.Grade)
}

func TestGradeSubmissionOutOfRange(t *testing.T) {
	repo := newMockAssignmentRepo()
	seedAssignment(repo)
	svc, _ := testAssignmentService(repo)

	submitted, err := svc.Submit(context.Background(), "assignment-1", "student-1", SubmitAssignmentRequest{Content: "work"})
	require.NoError(t, err)

	actor := &models.JWTClaims{UserID: "instr-1", Role: models.RoleInstructor}
	_, err = svc.GradeSubmission(context.Background(), submitted.ID, actor, GradeSubmissionRequest{Grade: 120})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCreateAssignmentInvalidatesCatalog(t *testing.T) {
	repo := newMockAssignmentRepo()
	svc, inv := testAssignmentService(repo)

	_, err := svc.Create(context.Background(), "course-1", CreateAssignmentRequest{Title: "Essay"})
	require.NoError(t, err)
	assert.Equal(t, 1, inv.calls)
}
