package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	"github.com/learnhub-dev/learnhub-api/pkg/config"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/payment"
)

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error
	ListByUser(ctx context.Context, userID string) ([]models.Payment, error)
}

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

// ChargeRequest initiates a payment for an enrollment. Amount is expressed
// in whole currency units and converted to cents before hitting the provider.
type ChargeRequest struct {
	EnrollmentID    string  `json:"enrollment_id" validate:"required"`
	Amount          float64 `json:"amount" validate:"required,gt=0"`
	PaymentMethodID string  `json:"payment_method_id" validate:"required"`
}

// PaymentService charges enrollments through the configured gateway.
type PaymentService struct {
	repo        paymentRepository
	enrollments enrollmentReader
	gateway     payment.Gateway
	cfg         config.PaymentsConfig
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentRepository, enrollments enrollmentReader, gateway payment.Gateway, cfg config.PaymentsConfig, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		repo:        repo,
		enrollments: enrollments,
		gateway:     gateway,
		cfg:         cfg,
		validator:   validate,
		logger:      logger,
	}
}

// SetMetrics attaches payment instrumentation. A nil metrics service is a no-op.
func (s *PaymentService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// Charge converts the amount to cents, enforces the configured ceiling
// before any provider call, creates the intent and records the outcome. A
// succeeded intent marks the enrollment as paid.
func (s *PaymentService) Charge(ctx context.Context, userID string, req ChargeRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	amountCents := int64(math.Round(req.Amount * 100))
	if amountCents <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}
	if amountCents > s.cfg.MaxAmountCents {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("amount exceeds the maximum of %d cents", s.cfg.MaxAmountCents))
	}

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot pay for another user's enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is already paid")
	}

	description := fmt.Sprintf("enrollment %s", enrollment.ID)
	intent, err := s.gateway.CreateIntent(ctx, amountCents, s.cfg.Currency, req.PaymentMethodID, description)
	if err != nil {
		s.metrics.RecordPayment("provider_error")
		return nil, appErrors.Wrap(err, appErrors.ErrPaymentFailed.Code, appErrors.ErrPaymentFailed.Status, "payment provider rejected the charge")
	}

	record := &models.Payment{
		EnrollmentID: enrollment.ID,
		UserID:       userID,
		IntentID:     intent.ID,
		AmountCents:  amountCents,
		Currency:     s.cfg.Currency,
		Status:       models.PaymentStatus(intent.Status),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	s.metrics.RecordPayment(string(record.Status))

	if record.Status == models.PaymentStatusSucceeded {
		if err := s.enrollments.UpdateStatus(ctx, enrollment.ID, models.EnrollmentStatusPaid); err != nil {
			s.logger.Error("failed to mark enrollment paid",
				zap.String("enrollment_id", enrollment.ID),
				zap.Error(err))
		}
	}
	return record, nil
}

// Status refreshes a payment from the provider and syncs the stored record.
func (s *PaymentService) Status(ctx context.Context, intentID string, actor *models.JWTClaims) (*models.Payment, error) {
	record, err := s.repo.FindByIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if actor.Role == models.RoleStudent && record.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view another user's payment")
	}

	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		s.logger.Warn("failed to refresh payment intent", zap.String("intent_id", intentID), zap.Error(err))
		return record, nil
	}

	status := models.PaymentStatus(intent.Status)
	if status != record.Status {
		if err := s.repo.UpdateStatus(ctx, record.ID, status); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
		}
		record.Status = status
		if status == models.PaymentStatusSucceeded {
			if err := s.enrollments.UpdateStatus(ctx, record.EnrollmentID, models.EnrollmentStatusPaid); err != nil {
				s.logger.Error("failed to mark enrollment paid",
					zap.String("enrollment_id", record.EnrollmentID),
					zap.Error(err))
			}
		}
	}
	return record, nil
}

// ListByUser returns a user's payment history.
func (s *PaymentService) ListByUser(ctx context.Context, userID string) ([]models.Payment, error) {
	payments, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return payments, nil
}
