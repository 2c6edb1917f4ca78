package models

import "time"

// PaymentStatus mirrors the provider's intent lifecycle.
type PaymentStatus string

const (
	PaymentStatusSucceeded      PaymentStatus = "succeeded"
	PaymentStatusProcessing     PaymentStatus = "processing"
	PaymentStatusRequiresAction PaymentStatus = "requires_action"
	PaymentStatusFailed         PaymentStatus = "failed"
)

// Payment records a charge attempt against an enrollment.
type Payment struct {
	ID           string        `db:"id" json:"id"`
	EnrollmentID string        `db:"enrollment_id" json:"enrollment_id"`
	UserID       string        `db:"user_id" json:"user_id"`
	IntentID     string        `db:"intent_id" json:"intent_id"`
	AmountCents  int64         `db:"amount_cents" json:"amount_cents"`
	Currency     string        `db:"currency" json:"currency"`
	Status       PaymentStatus `db:"status" json:"status"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}
