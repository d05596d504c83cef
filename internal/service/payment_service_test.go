package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/cinebook/internal/model"
	"github.com/cinebook/cinebook/internal/payment"
	"github.com/cinebook/cinebook/internal/repository"
)

type fakeGateway struct {
	verifyEvent payment.Event
	verifyErr   error

	intent    payment.Intent
	intentErr error
	intents   []int64

	refunded  []string
	refundErr error
}

func (f *fakeGateway) VerifyWebhook(body []byte, signature string) (payment.Event, error) {
	return f.verifyEvent, f.verifyErr
}

func (f *fakeGateway) CreateIntent(_ context.Context, amountCents int64, currency string, reservationID uint64, idempotencyKey string) (payment.Intent, error) {
	f.intents = append(f.intents, amountCents)
	return f.intent, f.intentErr
}

func (f *fakeGateway) Refund(_ context.Context, paymentID string) error {
	f.refunded = append(f.refunded, paymentID)
	return f.refundErr
}

func newPaymentService(t *testing.T, gw *fakeGateway) (*PaymentService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewPaymentService(db,
		repository.NewReservationRepo(db),
		repository.NewSeatRepo(db),
		gw, "usd", testLogger())
	return svc, mock
}

func TestCreateIntent(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		gw := &fakeGateway{intent: payment.Intent{ID: "pi_123", ClientSecret: "pi_123_secret"}}
		svc, mock := newPaymentService(t, gw)

		mock.ExpectQuery("SELECT id, user_id, showtime_id, status").
			WithArgs(uint64(42), uint64(3)).
			WillReturnRows(reservationRow(42, 3, model.ReservationPending, nil))
		mock.ExpectExec("UPDATE reservations SET payment_ref").
			WithArgs("pi_123", uint64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		intent, err := svc.CreateIntent(context.Background(), 42, 3)
		require.NoError(t, err)
		assert.Equal(t, "pi_123", intent.ID)
		assert.Equal(t, "pi_123_secret", intent.ClientSecret)

		require.Len(t, gw.intents, 1)
		assert.Equal(t, int64(3000), gw.intents[0])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Pending", func(t *testing.T) {
		gw := &fakeGateway{}
		svc, mock := newPaymentService(t, gw)

		mock.ExpectQuery("SELECT id, user_id, showtime_id, status").
			WithArgs(uint64(42), uint64(3)).
			WillReturnRows(reservationRow(42, 3, model.ReservationCancelled, nil))

		_, err := svc.CreateIntent(context.Background(), 42, 3)
		assert.ErrorIs(t, err, repository.ErrReservationNotPayable)
		assert.Empty(t, gw.intents)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Owned", func(t *testing.T) {
		gw := &fakeGateway{}
		svc, mock := newPaymentService(t, gw)

		mock.ExpectQuery("SELECT id, user_id, showtime_id, status").
			WithArgs(uint64(42), uint64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "showtime_id", "status", "total_amount_cents", "payment_ref", "created_at", "updated_at"}))

		_, err := svc.CreateIntent(context.Background(), 42, 99)
		assert.ErrorIs(t, err, repository.ErrReservationNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConfirmWebhook(t *testing.T) {
	t.Run("Invalid Signature", func(t *testing.T) {
		gw := &fakeGateway{verifyErr: payment.ErrInvalidSignature}
		svc, mock := newPaymentService(t, gw)

		err := svc.ConfirmWebhook(context.Background(), []byte("{}"), "bad")
		assert.ErrorIs(t, err, payment.ErrInvalidSignature)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Ignores Other Events", func(t *testing.T) {
		gw := &fakeGateway{verifyEvent: payment.Event{Type: "payment_intent.created", PaymentID: "pi_123"}}
		svc, mock := newPaymentService(t, gw)

		require.NoError(t, svc.ConfirmWebhook(context.Background(), []byte("{}"), "sig"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Confirms Pending Reservation", func(t *testing.T) {
		gw := &fakeGateway{verifyEvent: payment.Event{Type: payment.EventPaymentSucceeded, PaymentID: "pi_123"}}
		svc, mock := newPaymentService(t, gw)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, showtime_id, status").
			WithArgs("pi_123").
			WillReturnRows(reservationRow(42, 3, model.ReservationPending, "pi_123"))
		mock.ExpectExec("UPDATE reservations SET status").
			WithArgs(model.ReservationConfirmed, uint64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE seats SET status").
			WithArgs(uint64(42)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		require.NoError(t, svc.ConfirmWebhook(context.Background(), []byte("{}"), "sig"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate Delivery", func(t *testing.T) {
		// Re-delivering a success event for an already confirmed
		// reservation commits without writes.
		gw := &fakeGateway{verifyEvent: payment.Event{Type: payment.EventPaymentSucceeded, PaymentID: "pi_123"}}
		svc, mock := newPaymentService(t, gw)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, showtime_id, status").
			WithArgs("pi_123").
			WillReturnRows(reservationRow(42, 3, model.ReservationConfirmed, "pi_123"))
		mock.ExpectCommit()

		require.NoError(t, svc.ConfirmWebhook(context.Background(), []byte("{}"), "sig"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Released Reservation", func(t *testing.T) {
		// Payment landed after the reservation was swept; nothing to
		// confirm, handled out of band.
		gw := &fakeGateway{verifyEvent: payment.Event{Type: payment.EventPaymentSucceeded, PaymentID: "pi_123"}}
		svc, mock := newPaymentService(t, gw)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, showtime_id, status").
			WithArgs("pi_123").
			WillReturnRows(reservationRow(42, 3, model.ReservationCancelled, "pi_123"))
		mock.ExpectCommit()

		require.NoError(t, svc.ConfirmWebhook(context.Background(), []byte("{}"), "sig"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Payment Ref", func(t *testing.T) {
		gw := &fakeGateway{verifyEvent: payment.Event{Type: payment.EventPaymentSucceeded, PaymentID: "pi_gone"}}
		svc, mock := newPaymentService(t, gw)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, showtime_id, status").
			WithArgs("pi_gone").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "showtime_id", "status", "total_amount_cents", "payment_ref", "created_at", "updated_at"}))
		mock.ExpectRollback()

		err := svc.ConfirmWebhook(context.Background(), []byte("{}"), "sig")
		assert.ErrorIs(t, err, repository.ErrReservationNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRefund(t *testing.T) {
	t.Run("Refunds Cancelled Reservation", func(t *testing.T) {
		gw := &fakeGateway{}
		svc, mock := newPaymentService(t, gw)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, showtime_id, status").
			WithArgs(uint64(42)).
			WillReturnRows(reservationRow(42, 3, model.ReservationCancelled, "pi_123"))
		mock.ExpectExec("UPDATE reservations SET status").
			WithArgs(model.ReservationRefunded, uint64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, svc.Refund(context.Background(), 42, "pi_123"))
		assert.Equal(t, []string{"pi_123"}, gw.refunded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Gateway Failure", func(t *testing.T) {
		gw := &fakeGateway{refundErr: errors.New("stripe unavailable")}
		svc, mock := newPaymentService(t, gw)

		err := svc.Refund(context.Background(), 42, "pi_123")
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Refunded", func(t *testing.T) {
		gw := &fakeGateway{}
		svc, mock := newPaymentService(t, gw)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, showtime_id, status").
			WithArgs(uint64(42)).
			WillReturnRows(reservationRow(42, 3, model.ReservationRefunded, "pi_123"))
		mock.ExpectCommit()

		require.NoError(t, svc.Refund(context.Background(), 42, "pi_123"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
