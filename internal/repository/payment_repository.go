package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnhub-dev/learnhub-api/internal/models"
)

// PaymentRepository handles persistence of payment attempts.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create persists a new payment record.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payments (id, enrollment_id, user_id, intent_id, amount_cents, currency, status, created_at)
        VALUES (:id, :enrollment_id, :user_id, :intent_id, :amount_cents, :currency, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByIntentID returns a payment by its provider intent id.
func (r *PaymentRepository) FindByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	const query = `SELECT id, enrollment_id, user_id, intent_id, amount_cents, currency, status, created_at
        FROM payments WHERE intent_id = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, intentID); err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdateStatus records the latest provider status for a payment.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	const query = `UPDATE payments SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

// ListByUser returns all payments made by a user.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]models.Payment, error) {
	const query = `SELECT id, enrollment_id, user_id, intent_id, amount_cents, currency, status, created_at
        FROM payments WHERE user_id = $1 ORDER BY created_at DESC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, userID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
