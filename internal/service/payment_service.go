package service

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cinebook/cinebook/internal/model"
	"github.com/cinebook/cinebook/internal/payment"
	"github.com/cinebook/cinebook/internal/repository"
)

// PaymentService reconciles payment gateway events with reservation
// state and issues refunds for cancelled paid reservations.
type PaymentService struct {
	db           *sql.DB
	reservations *repository.ReservationRepo
	seats        *repository.SeatRepo
	gateway      payment.Gateway
	currency     string
	log          *logrus.Entry
}

// NewPaymentService wires payment reconciliation.
func NewPaymentService(
	db *sql.DB,
	reservations *repository.ReservationRepo,
	seats *repository.SeatRepo,
	gateway payment.Gateway,
	currency string,
	log *logrus.Entry,
) *PaymentService {
	return &PaymentService{
		db:           db,
		reservations: reservations,
		seats:        seats,
		gateway:      gateway,
		currency:     currency,
		log:          log,
	}
}

// CreateIntent registers a payment intent with the gateway for a
// reservation the user owns and records the provider's identifier on the
// reservation so later webhook events can be correlated.  Only PENDING
// reservations can start a payment.
func (s *PaymentService) CreateIntent(ctx context.Context, reservationID, userID uint64) (payment.Intent, error) {
	res, err := s.reservations.GetByIDForUser(ctx, reservationID, userID)
	if err != nil {
		return payment.Intent{}, err
	}
	if res.Status != model.ReservationPending {
		return payment.Intent{}, repository.ErrReservationNotPayable
	}

	intent, err := s.gateway.CreateIntent(ctx, int64(res.TotalAmountCents), s.currency, res.ID, uuid.NewString())
	if err != nil {
		return payment.Intent{}, err
	}
	if err := s.reservations.SetPaymentRef(ctx, res.ID, intent.ID); err != nil {
		return payment.Intent{}, err
	}
	s.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"payment_id":     intent.ID,
	}).Info("payment intent created")
	return intent, nil
}

// ConfirmWebhook verifies a signed webhook payload and, when it reports
// a successful payment, confirms the matching reservation and marks its
// seats OCCUPIED.  Every other event type is silently ignored.
//
// Webhooks can be delivered more than once: re-confirming an already
// CONFIRMED reservation commits without further writes and returns nil.
// A success event for a reservation the sweep already cancelled is
// logged and otherwise ignored; the seats are gone, so the customer is
// made whole out of band.
func (s *PaymentService) ConfirmWebhook(ctx context.Context, body []byte, signature string) error {
	ev, err := s.gateway.VerifyWebhook(body, signature)
	if err != nil {
		return err
	}
	if !ev.Succeeded() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := s.reservations.GetByPaymentRefForUpdateTx(ctx, tx, ev.PaymentID)
	if err != nil {
		return err
	}
	switch res.Status {
	case model.ReservationConfirmed:
		// Duplicate delivery; already confirmed.
	case model.ReservationPending:
		if err := s.reservations.UpdateStatusTx(ctx, tx, res.ID, model.ReservationConfirmed); err != nil {
			return err
		}
		if err := s.seats.OccupyByReservationTx(ctx, tx, res.ID); err != nil {
			return err
		}
	default:
		s.log.WithFields(logrus.Fields{
			"reservation_id": res.ID,
			"status":         res.Status,
			"payment_id":     ev.PaymentID,
		}).Warn("payment succeeded for a released reservation")
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	if res.Status == model.ReservationPending {
		s.log.WithField("reservation_id", res.ID).Info("reservation confirmed by payment")
	}
	return nil
}

// Refund pays back a cancelled reservation.  It is best-effort: the
// caller (the refund consumer) logs failures and never retries inline.
// On success the reservation moves CANCELLED -> REFUNDED.
func (s *PaymentService) Refund(ctx context.Context, reservationID uint64, paymentID string) error {
	if err := s.gateway.Refund(ctx, paymentID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := s.reservations.GetForUpdateTx(ctx, tx, reservationID)
	if err != nil {
		return err
	}
	if res.Status == model.ReservationCancelled {
		if err := s.reservations.UpdateStatusTx(ctx, tx, reservationID, model.ReservationRefunded); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	s.log.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"payment_id":     paymentID,
	}).Info("reservation refunded")
	return nil
}
