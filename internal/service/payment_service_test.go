package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	"github.com/learnhub-dev/learnhub-api/pkg/config"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/payment"
)

type mockPaymentRepo struct {
	payments map[string]*models.Payment
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[string]*models.Payment)}
}

func (m *mockPaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	if p.ID == "" {
		p.ID = "pay-" + p.IntentID
	}
	m.payments[p.IntentID] = p
	return nil
}

func (m *mockPaymentRepo) FindByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	p, ok := m.payments[intentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (m *mockPaymentRepo) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	for _, p := range m.payments {
		if p.ID == id {
			p.Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockPaymentRepo) ListByUser(ctx context.Context, userID string) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range m.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockGateway struct {
	intents    map[string]*payment.Intent
	createErr  error
	lastAmount int64
	calls      int
}

func newMockGateway() *mockGateway {
	return &mockGateway{intents: make(map[string]*payment.Intent)}
}

func (m *mockGateway) CreateIntent(ctx context.Context, amountCents int64, currency, paymentMethodID, description string) (*payment.Intent, error) {
	m.calls++
	m.lastAmount = amountCents
	if m.createErr != nil {
		return nil, m.createErr
	}
	intent := &payment.Intent{
		ID:          "pi_test",
		Status:      "succeeded",
		AmountCents: amountCents,
		Currency:    currency,
	}
	m.intents[intent.ID] = intent
	return intent, nil
}

func (m *mockGateway) GetIntent(ctx context.Context, id string) (*payment.Intent, error) {
	intent, ok := m.intents[id]
	if !ok {
		return nil, errors.New("no such intent")
	}
	return intent, nil
}

func testPaymentService(repo *mockPaymentRepo, enrollments *mockEnrollmentRepo, gateway *mockGateway) *PaymentService {
	cfg := config.PaymentsConfig{
		Currency:       "usd",
		MaxAmountCents: 99999999,
	}
	return NewPaymentService(repo, enrollments, gateway, cfg, nil, nil)
}

func TestChargeSucceededMarksEnrollmentPaid(t *testing.T) {
	repo := newMockPaymentRepo()
	enrollments := newMockEnrollmentRepo()
	enrollments.enrollments["e1"] = &models.Enrollment{ID: "e1", UserID: "student-1", CourseID: "course-1", Status: models.EnrollmentStatusActive}
	gateway := newMockGateway()
	svc := testPaymentService(repo, enrollments, gateway)

	result, err := svc.Charge(context.Background(), "student-1", ChargeRequest{
		EnrollmentID:    "e1",
		Amount:          49.99,
		PaymentMethodID: "pm_card",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, result.Status)
	assert.Equal(t, int64(4999), result.AmountCents)
	assert.Equal(t, models.EnrollmentStatusPaid, enrollments.enrollments["e1"].Status)
}

func TestChargeCeilingRejectedBeforeGatewayCall(t *testing.T) {
	repo := newMockPaymentRepo()
	enrollments := newMockEnrollmentRepo()
	enrollments.enrollments["e1"] = &models.Enrollment{ID: "e1", UserID: "student-1", Status: models.EnrollmentStatusActive}
	gateway := newMockGateway()
	svc := testPaymentService(repo, enrollments, gateway)

	_, err := svc.Charge(context.Background(), "student-1", ChargeRequest{
		EnrollmentID:    "e1",
		Amount:          1000000.00,
		PaymentMethodID: "pm_card",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, 0, gateway.calls)
}

func TestChargeAtCeilingAccepted(t *testing.T) {
	repo := newMockPaymentRepo()
	enrollments := newMockEnrollmentRepo()
	enrollments.enrollments["e1"] = &models.Enrollment{ID: "e1", UserID: "student-1", Status: models.EnrollmentStatusActive}
	gateway := newMockGateway()
	svc := testPaymentService(repo, enrollments, gateway)

	result, err := svc.Charge(context.Background(), "student-1", ChargeRequest{
		EnrollmentID:    "e1",
		Amount:          999999.99,
		PaymentMethodID: "pm_card",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(99999999), result.AmountCents)
}

func TestChargeOtherUsersEnrollment(t *testing.T) {
	repo := newMockPaymentRepo()
	enrollments := newMockEnrollmentRepo()
	enrollments.enrollments["e1"] = &models.Enrollment{ID: "e1", UserID: "student-1", Status: models.EnrollmentStatusActive}
	svc := testPaymentService(repo, enrollments, newMockGateway())

	_, err := svc.Charge(context.Background(), "student-2", ChargeRequest{
		EnrollmentID:    "e1",
		Amount:          10,
		PaymentMethodID: "pm_card",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestChargeAlreadyPaid(t *testing.T) {
	repo := newMockPaymentRepo()
	enrollments := newMockEnrollmentRepo()
	enrollments.enrollments["e1"] = &models.Enrollment{ID: "e1", UserID: "student-1", Status: models.EnrollmentStatusPaid}
	svc := testPaymentService(repo, enrollments, newMockGateway())

	_, err := svc.Charge(context.Background(), "student-1", ChargeRequest{
		EnrollmentID:    "e1",
		Amount:          10,
		PaymentMethodID: "pm_card",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestChargeProviderFailure(t *testing.T) {
	repo := newMockPaymentRepo()
	enrollments := newMockEnrollmentRepo()
	enrollments.enrollments["e1"] = &models.Enrollment{ID: "e1", UserID: "student-1", Status: models.EnrollmentStatusActive}
	gateway := newMockGateway()
	gateway.createErr = errors.New("card declined")
	svc := testPaymentService(repo, enrollments, gateway)

	_, err := svc.Charge(context.Background(), "student-1", ChargeRequest{
		EnrollmentID:    "e1",
		Amount:          10,
		PaymentMethodID: "pm_card",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPaymentFailed.Code, appErr.Code)
	assert.Equal(t, 502, appErr.Status)
	assert.Empty(t, repo.payments)
}

func TestStatusHidesOtherUsersPayments(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.payments["pi_1"] = &models.Payment{ID: "pay-1", IntentID: "pi_1", UserID: "student-1", Status: models.PaymentStatusProcessing}
	svc := testPaymentService(repo, newMockEnrollmentRepo(), newMockGateway())

	_, err := svc.Status(context.Background(), "pi_1", &models.JWTClaims{UserID: "student-2", Role: models.RoleStudent})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
