// Package payment wraps the payment provider behind a small gateway
// interface so the reservation core never imports the provider SDK
// directly and tests can substitute fakes.
package payment

import (
	"context"
	"errors"
)

// EventPaymentSucceeded is the provider event type that confirms a
// reservation.  Every other event type is ignored by reconciliation.
const EventPaymentSucceeded = "payment_intent.succeeded"

// ErrInvalidSignature is returned when a webhook payload fails
// cryptographic verification.  The operation aborts without mutating
// any state; handlers map it to HTTP 400.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Event is a verified webhook event.  PaymentID is only populated for
// payment-intent events.
type Event struct {
	Type      string
	PaymentID string
}

// Succeeded reports whether the event confirms a completed payment.
func (e Event) Succeeded() bool { return e.Type == EventPaymentSucceeded }

// Intent is a freshly created payment intent.  The client secret goes
// back to the browser to complete the payment; the ID is stored on the
// reservation so webhook events can be correlated later.
type Intent struct {
	ID           string
	ClientSecret string
}

// Gateway is the payment provider client consumed by the reservation
// core.
type Gateway interface {
	// VerifyWebhook checks the payload signature and parses the event.
	// Returns ErrInvalidSignature when the signature does not match.
	VerifyWebhook(payload []byte, signature string) (Event, error)

	// CreateIntent registers a payment of amountCents for the given
	// reservation with the provider.  The idempotency key guards
	// against double submission.
	CreateIntent(ctx context.Context, amountCents int64, currency string, reservationID uint64, idempotencyKey string) (Intent, error)

	// Refund refunds the payment with the given provider identifier in
	// full.
	Refund(ctx context.Context, paymentID string) error
}
