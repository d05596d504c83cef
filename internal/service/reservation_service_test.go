package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/cinebook/internal/model"
	"github.com/cinebook/cinebook/internal/queue"
	"github.com/cinebook/cinebook/internal/repository"
)

type fakeScheduler struct {
	calls []struct {
		id    uint64
		delay time.Duration
	}
}

func (f *fakeScheduler) Schedule(id uint64, delay time.Duration) {
	f.calls = append(f.calls, struct {
		id    uint64
		delay time.Duration
	}{id, delay})
}

type fakePublisher struct {
	events []queue.ReservationCancelledEvent
	err    error
}

func (f *fakePublisher) PublishReservationCancelled(_ context.Context, ev queue.ReservationCancelledEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestService(t *testing.T) (*ReservationService, sqlmock.Sqlmock, *fakeScheduler, *fakePublisher) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sched := &fakeScheduler{}
	pub := &fakePublisher{}
	svc := NewReservationService(db,
		repository.NewReservationRepo(db),
		repository.NewSeatRepo(db),
		repository.NewShowtimeRepo(db),
		sched, pub, 15*time.Minute, testLogger())
	return svc, mock, sched, pub
}

func showtimeRows(id uint64, price uint32, startsAt time.Time) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "movie_id", "room_id", "starts_at", "ends_at", "price_cents", "created_at", "updated_at"}).
		AddRow(id, 1, 1, startsAt, startsAt.Add(2*time.Hour), price, now, now)
}

func seatLockRows(seats ...model.Seat) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "showtime_id", "row_num", "seat_number", "status", "reservation_id"})
	for _, s := range seats {
		var resID interface{}
		if s.ReservationID != nil {
			resID = *s.ReservationID
		}
		rows.AddRow(s.ID, s.ShowtimeID, s.Row, s.Number, s.Status, resID)
	}
	return rows
}

func TestCreateReservation(t *testing.T) {
	startsAt := time.Now().UTC().Add(4 * time.Hour)

	t.Run("Success", func(t *testing.T) {
		svc, mock, sched, _ := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, movie_id, room_id").
			WithArgs(uint64(9)).
			WillReturnRows(showtimeRows(9, 1500, startsAt))
		mock.ExpectQuery("SELECT id, showtime_id, row_num").
			WithArgs(uint64(9), uint64(11), uint64(12)).
			WillReturnRows(seatLockRows(
				model.Seat{ID: 11, ShowtimeID: 9, Row: 1, Number: 1, Status: model.SeatAvailable},
				model.Seat{ID: 12, ShowtimeID: 9, Row: 1, Number: 2, Status: model.SeatAvailable},
			))
		mock.ExpectExec("INSERT INTO reservations").
			WithArgs(uint64(3), uint64(9), model.ReservationPending, uint32(3000)).
			WillReturnResult(sqlmock.NewResult(42, 1))
		now := time.Now().UTC()
		mock.ExpectQuery("SELECT created_at, updated_at FROM reservations").
			WithArgs(uint64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectExec("UPDATE seats SET status").
			WithArgs(uint64(42), uint64(11), uint64(12)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		res, err := svc.Create(context.Background(), 3, 9, []uint64{11, 12})
		require.NoError(t, err)
		assert.Equal(t, uint64(42), res.ID)
		assert.Equal(t, model.ReservationPending, res.Status)
		assert.Equal(t, uint32(3000), res.TotalAmountCents)

		require.Len(t, sched.calls, 1)
		assert.Equal(t, uint64(42), sched.calls[0].id)
		assert.Equal(t, 15*time.Minute, sched.calls[0].delay)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Seat Already Reserved", func(t *testing.T) {
		svc, mock, sched, _ := newTestService(t)

		owner := uint64(7)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, movie_id, room_id").
			WithArgs(uint64(9)).
			WillReturnRows(showtimeRows(9, 1500, startsAt))
		mock.ExpectQuery("SELECT id, showtime_id, row_num").
			WithArgs(uint64(9), uint64(11), uint64(12)).
			WillReturnRows(seatLockRows(
				model.Seat{ID: 11, ShowtimeID: 9, Row: 1, Number: 1, Status: model.SeatAvailable},
				model.Seat{ID: 12, ShowtimeID: 9, Row: 1, Number: 2, Status: model.SeatReserved, ReservationID: &owner},
			))
		mock.ExpectRollback()

		_, err := svc.Create(context.Background(), 3, 9, []uint64{11, 12})
		assert.ErrorIs(t, err, repository.ErrSeatsNotAvailable)
		assert.Empty(t, sched.calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Seat", func(t *testing.T) {
		svc, mock, _, _ := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, movie_id, room_id").
			WithArgs(uint64(9)).
			WillReturnRows(showtimeRows(9, 1500, startsAt))
		mock.ExpectQuery("SELECT id, showtime_id, row_num").
			WithArgs(uint64(9), uint64(11), uint64(999)).
			WillReturnRows(seatLockRows(
				model.Seat{ID: 11, ShowtimeID: 9, Row: 1, Number: 1, Status: model.SeatAvailable},
			))
		mock.ExpectRollback()

		_, err := svc.Create(context.Background(), 3, 9, []uint64{11, 999})
		assert.ErrorIs(t, err, repository.ErrSeatsNotAvailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate Seat IDs", func(t *testing.T) {
		svc, mock, _, _ := newTestService(t)

		_, err := svc.Create(context.Background(), 3, 9, []uint64{11, 11})
		assert.ErrorIs(t, err, repository.ErrDuplicateSeats)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No Seats", func(t *testing.T) {
		svc, mock, _, _ := newTestService(t)

		_, err := svc.Create(context.Background(), 3, 9, nil)
		assert.ErrorIs(t, err, repository.ErrSeatsNotAvailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func reservationRow(id, userID uint64, status string, payRef interface{}) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "user_id", "showtime_id", "status", "total_amount_cents", "payment_ref", "created_at", "updated_at"}).
		AddRow(id, userID, 9, status, 3000, payRef, now, now)
}

func TestRelease(t *testing.T) {
	t.Run("Releases Pending", func(t *testing.T) {
		svc, mock, _, _ := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, showtime_id, status").
			WithArgs(uint64(42)).
			WillReturnRows(reservationRow(42, 3, model.ReservationPending, nil))
		mock.ExpectExec("UPDATE reservations SET status").
			WithArgs(model.ReservationCancelled, uint64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE seats SET status").
			WithArgs(uint64(42)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		require.NoError(t, svc.Release(context.Background(), 42))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Confirmed Wins", func(t *testing.T) {
		// A payment confirmed before the timer fired must not be undone.
		svc, mock, _, _ := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, showtime_id, status").
			WithArgs(uint64(42)).
			WillReturnRows(reservationRow(42, 3, model.ReservationConfirmed, "pi_123"))
		mock.ExpectCommit()

		require.NoError(t, svc.Release(context.Background(), 42))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Cancelled", func(t *testing.T) {
		// Releasing twice is a no-op, not an error.
		svc, mock, _, _ := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, showtime_id, status").
			WithArgs(uint64(42)).
			WillReturnRows(reservationRow(42, 3, model.ReservationCancelled, nil))
		mock.ExpectCommit()

		require.NoError(t, svc.Release(context.Background(), 42))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func cancelRow(id, userID uint64, status string, payRef interface{}, startsAt time.Time) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "user_id", "showtime_id", "status", "total_amount_cents", "payment_ref", "created_at", "updated_at", "starts_at"}).
		AddRow(id, userID, 9, status, 3000, payRef, now, now, startsAt)
}

func TestCancel(t *testing.T) {
	future := time.Now().UTC().Add(6 * time.Hour)

	t.Run("Publishes Cancellation Event", func(t *testing.T) {
		svc, mock, _, pub := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT r.id, r.user_id").
			WithArgs(uint64(42)).
			WillReturnRows(cancelRow(42, 3, model.ReservationConfirmed, "pi_123", future))
		mock.ExpectExec("UPDATE reservations SET status").
			WithArgs(model.ReservationCancelled, uint64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE seats SET status").
			WithArgs(uint64(42)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		require.NoError(t, svc.Cancel(context.Background(), 42, 3))

		require.Len(t, pub.events, 1)
		assert.Equal(t, uint64(42), pub.events[0].ReservationID)
		require.NotNil(t, pub.events[0].ProviderPaymentID)
		assert.Equal(t, "pi_123", *pub.events[0].ProviderPaymentID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Wrong User", func(t *testing.T) {
		svc, mock, _, pub := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT r.id, r.user_id").
			WithArgs(uint64(42)).
			WillReturnRows(cancelRow(42, 3, model.ReservationPending, nil, future))
		mock.ExpectRollback()

		err := svc.Cancel(context.Background(), 42, 99)
		assert.ErrorIs(t, err, repository.ErrUnauthorizedCancellation)
		assert.Empty(t, pub.events)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Showtime Started", func(t *testing.T) {
		svc, mock, _, _ := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT r.id, r.user_id").
			WithArgs(uint64(42)).
			WillReturnRows(cancelRow(42, 3, model.ReservationPending, nil, time.Now().UTC().Add(-time.Minute)))
		mock.ExpectRollback()

		err := svc.Cancel(context.Background(), 42, 3)
		assert.ErrorIs(t, err, repository.ErrCancellationNotAllowed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Cancelled Is NoOp", func(t *testing.T) {
		svc, mock, _, pub := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT r.id, r.user_id").
			WithArgs(uint64(42)).
			WillReturnRows(cancelRow(42, 3, model.ReservationCancelled, nil, future))
		mock.ExpectCommit()

		require.NoError(t, svc.Cancel(context.Background(), 42, 3))
		assert.Empty(t, pub.events)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		svc, mock, _, _ := newTestService(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT r.id, r.user_id").
			WithArgs(uint64(77)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "showtime_id", "status", "total_amount_cents", "payment_ref", "created_at", "updated_at", "starts_at"}))
		mock.ExpectRollback()

		err := svc.Cancel(context.Background(), 77, 3)
		assert.ErrorIs(t, err, repository.ErrReservationNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSweepExpired(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	window := 30 * time.Minute

	t.Run("Cancels Batch", func(t *testing.T) {
		svc, mock, _, _ := newTestService(t)
		svc.now = func() time.Time { return fixed }

		cutoff := fixed.Add(-window)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM reservations").
			WithArgs(cutoff).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5).AddRow(6))
		mock.ExpectExec("UPDATE reservations SET status").
			WithArgs(uint64(5), uint64(6)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec("UPDATE seats SET status").
			WithArgs(uint64(5), uint64(6)).
			WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectCommit()

		n, err := svc.SweepExpired(context.Background(), window)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Nothing Expired", func(t *testing.T) {
		svc, mock, _, _ := newTestService(t)
		svc.now = func() time.Time { return fixed }

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM reservations").
			WithArgs(fixed.Add(-window)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectCommit()

		n, err := svc.SweepExpired(context.Background(), window)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
