package model

import "time"

// Reservation status values.  PENDING is the only non-terminal state; a
// pending reservation becomes CONFIRMED on successful payment or CANCELLED
// on expiry or user cancellation.  A cancelled reservation that had a
// payment taken becomes REFUNDED once the refund goes through.
const (
	ReservationPending   = "PENDING"
	ReservationConfirmed = "CONFIRMED"
	ReservationCancelled = "CANCELLED"
	ReservationRefunded  = "REFUNDED"
)

// Reservation binds a user, a showtime and a set of seats under one
// lifecycle.  The creation timestamp drives expiry: pending reservations
// older than the configured window are swept and their seats released.
//
// Fields:
//
//	ID               – primary key identifier.
//	UserID           – user who made the reservation.
//	ShowtimeID       – showtime being reserved.
//	Status           – PENDING, CONFIRMED, CANCELLED or REFUNDED.
//	TotalAmountCents – total price in cents for all seats.
//	PaymentRef       – payment provider identifier, set once a payment
//	                   intent has been created for this reservation.
//	CreatedAt        – creation timestamp, basis for expiry.
//	UpdatedAt        – last update timestamp.
type Reservation struct {
	ID               uint64    // reservations.id
	UserID           uint64    // reservations.user_id
	ShowtimeID       uint64    // reservations.showtime_id
	Status           string    // reservations.status
	TotalAmountCents uint32    // reservations.total_amount_cents
	PaymentRef       *string   // reservations.payment_ref (nullable)
	CreatedAt        time.Time // reservations.created_at
	UpdatedAt        time.Time // reservations.updated_at
}

// Terminal reports whether the reservation has reached a final state.
// Terminal reservations never transition again, with the single exception
// of CANCELLED -> REFUNDED after a successful refund.
func (r *Reservation) Terminal() bool {
	return r.Status != ReservationPending
}
