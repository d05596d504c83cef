package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeGateway implements Gateway against the Stripe API.  The API
// client is constructed once at startup and injected; no package-global
// key is set.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway builds a gateway from the secret API key and the
// webhook signing secret.
func NewStripeGateway(apiKey, webhookSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

// VerifyWebhook validates the Stripe-Signature header against the
// payload and extracts the payment intent id for payment-intent events.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	ev := Event{Type: string(event.Type)}
	if strings.HasPrefix(ev.Type, "payment_intent.") {
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return Event{}, fmt.Errorf("parse payment intent: %w", err)
		}
		ev.PaymentID = intent.ID
	}
	return ev, nil
}

// CreateIntent creates a Stripe payment intent carrying the reservation
// id as metadata.
func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64, currency string, reservationID uint64, idempotencyKey string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(idempotencyKey)
	params.AddMetadata("reservation_id", strconv.FormatUint(reservationID, 10))

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return Intent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// Refund refunds the payment intent in full.
func (g *StripeGateway) Refund(ctx context.Context, paymentID string) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentID)}
	params.Context = ctx
	if _, err := g.api.Refunds.New(params); err != nil {
		return fmt.Errorf("refund %s: %w", paymentID, err)
	}
	return nil
}
