package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/learnhub-dev/learnhub-api/pkg/config"
)

// Intent is the provider-neutral view of a payment attempt.
type Intent struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// Gateway is the narrow contract the rest of the system sees. The provider is
// opaque beyond create/retrieve.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency, paymentMethodID, description string) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
}

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway constructs a gateway from the configured secret key.
func NewStripeGateway(cfg config.PaymentsConfig) *StripeGateway {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &StripeGateway{api: api}
}

// CreateIntent creates and confirms a payment intent.
func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64, currency, paymentMethodID, description string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(paymentMethodID),
		Description:   stripe.String(description),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return fromStripe(pi), nil
}

// GetIntent retrieves an existing payment intent by provider id.
func (g *StripeGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve payment intent: %w", err)
	}
	return fromStripe(pi), nil
}

func fromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:          pi.ID,
		Status:      string(pi.Status),
		AmountCents: pi.Amount,
		Currency:    string(pi.Currency),
	}
}
