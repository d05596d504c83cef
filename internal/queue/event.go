// Package queue defines the message payloads exchanged over the broker
// and the publisher/consumer machinery around them.
package queue

// QueueReservationCancelled carries cancellation events.  The refund
// consumer listens here and issues a refund when the reservation had a
// payment taken.
const QueueReservationCancelled = "reservation.cancelled"

// ReservationCancelledEvent is published whenever a reservation is
// cancelled by its owner.  ProviderPaymentID is nil when no payment
// intent was ever created, in which case there is nothing to refund.
type ReservationCancelledEvent struct {
	ReservationID     uint64  `json:"reservation_id"`
	ProviderPaymentID *string `json:"provider_payment_id,omitempty"`
	CancelledAt       string  `json:"cancelled_at"`
}
