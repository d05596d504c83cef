// Package service implements the reservation lifecycle: claiming seats,
// releasing them on expiry or cancellation, and reconciling payments.
// Every state transition runs inside one database transaction so seat
// rows and reservation rows can never disagree.
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cinebook/cinebook/internal/model"
	"github.com/cinebook/cinebook/internal/queue"
	"github.com/cinebook/cinebook/internal/repository"
)

// ReleaseScheduler fires a release for a reservation after the delay.
// Scheduled releases are never cancelled: they always fire and no-op
// when the reservation has since been confirmed or already released.
type ReleaseScheduler interface {
	Schedule(reservationID uint64, delay time.Duration)
}

// CancelledPublisher emits cancellation events for asynchronous refund
// handling.
type CancelledPublisher interface {
	PublishReservationCancelled(ctx context.Context, ev queue.ReservationCancelledEvent) error
}

// ReservationService orchestrates create -> (confirm | expire | cancel)
// -> release transitions for reservations.
type ReservationService struct {
	db           *sql.DB
	reservations *repository.ReservationRepo
	seats        *repository.SeatRepo
	showtimes    *repository.ShowtimeRepo
	scheduler    ReleaseScheduler
	publisher    CancelledPublisher
	releaseDelay time.Duration
	log          *logrus.Entry
	now          func() time.Time
}

// NewReservationService wires the lifecycle controller.  releaseDelay is
// how long a pending reservation may sit unpaid before its scheduled
// release fires.
func NewReservationService(
	db *sql.DB,
	reservations *repository.ReservationRepo,
	seats *repository.SeatRepo,
	showtimes *repository.ShowtimeRepo,
	scheduler ReleaseScheduler,
	publisher CancelledPublisher,
	releaseDelay time.Duration,
	log *logrus.Entry,
) *ReservationService {
	return &ReservationService{
		db:           db,
		reservations: reservations,
		seats:        seats,
		showtimes:    showtimes,
		scheduler:    scheduler,
		publisher:    publisher,
		releaseDelay: releaseDelay,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create claims the requested seats for the user and builds a PENDING
// reservation.  The availability check and the claim happen under row
// locks inside one transaction: of two concurrent requests for
// overlapping seats, exactly one commits; the other observes non-free
// rows and fails with ErrSeatsNotAvailable, leaving nothing persisted.
//
// Duplicate seat ids are rejected with ErrDuplicateSeats rather than
// deduplicated, so a malformed request is visible to the caller.
func (s *ReservationService) Create(ctx context.Context, userID, showtimeID uint64, seatIDs []uint64) (*model.Reservation, error) {
	if len(seatIDs) == 0 {
		return nil, repository.ErrSeatsNotAvailable
	}
	seen := make(map[uint64]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if _, dup := seen[id]; dup {
			return nil, repository.ErrDuplicateSeats
		}
		seen[id] = struct{}{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	showtime, err := s.showtimes.GetTx(ctx, tx, showtimeID)
	if err != nil {
		return nil, err
	}

	seats, err := s.seats.LockForClaimTx(ctx, tx, showtimeID, seatIDs)
	if err != nil {
		return nil, err
	}
	// A missing seat counts as unavailable, same as a reserved one.
	if len(seats) != len(seatIDs) {
		return nil, repository.ErrSeatsNotAvailable
	}
	for i := range seats {
		if !seats[i].Available() {
			return nil, repository.ErrSeatsNotAvailable
		}
	}

	res := &model.Reservation{
		UserID:           userID,
		ShowtimeID:       showtimeID,
		Status:           model.ReservationPending,
		TotalAmountCents: showtime.PriceCents * uint32(len(seatIDs)),
	}
	if err := s.reservations.CreateTx(ctx, tx, res); err != nil {
		return nil, err
	}
	if err := s.seats.ClaimTx(ctx, tx, res.ID, seatIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.scheduler.Schedule(res.ID, s.releaseDelay)
	s.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"showtime_id":    showtimeID,
		"seats":          len(seatIDs),
	}).Info("reservation created")
	return res, nil
}

// Release reverts a reservation's seats to AVAILABLE and marks the
// reservation CANCELLED.  It is invoked by the delayed release task and
// is a no-op for any non-PENDING reservation: a payment confirmed before
// the task fired wins, and a second release of an already cancelled
// reservation changes nothing.
func (s *ReservationService) Release(ctx context.Context, reservationID uint64) error {
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
	if res.Status != model.ReservationPending {
		// Confirmed, cancelled or refunded meanwhile; nothing to release.
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		return nil
	}

	if err := s.reservations.UpdateStatusTx(ctx, tx, reservationID, model.ReservationCancelled); err != nil {
		return err
	}
	if err := s.seats.ReleaseByReservationTx(ctx, tx, reservationID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	s.log.WithField("reservation_id", reservationID).Info("reservation released")
	return nil
}

// Cancel handles a user-initiated cancellation.  The requester must own
// the reservation and the showtime must not have started.  Both PENDING
// and CONFIRMED reservations can be cancelled; cancelling an already
// cancelled or refunded reservation is a no-op.  On success a
// cancellation event is published so the refund worker can pay the user
// back when a payment had been taken; publish failures are logged, never
// surfaced, since the cancellation itself already committed.
func (s *ReservationService) Cancel(ctx context.Context, reservationID, userID uint64) error {
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

	res, startsAt, err := s.reservations.GetWithShowtimeForUpdateTx(ctx, tx, reservationID)
	if err != nil {
		return err
	}
	if res.UserID != userID {
		return repository.ErrUnauthorizedCancellation
	}
	if !startsAt.After(s.now()) {
		return repository.ErrCancellationNotAllowed
	}
	if res.Status == model.ReservationCancelled || res.Status == model.ReservationRefunded {
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		return nil
	}

	if err := s.reservations.UpdateStatusTx(ctx, tx, reservationID, model.ReservationCancelled); err != nil {
		return err
	}
	if err := s.seats.ReleaseByReservationTx(ctx, tx, reservationID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	ev := queue.ReservationCancelledEvent{
		ReservationID:     reservationID,
		ProviderPaymentID: res.PaymentRef,
		CancelledAt:       s.now().Format(time.RFC3339),
	}
	if err := s.publisher.PublishReservationCancelled(ctx, ev); err != nil {
		s.log.WithError(err).WithField("reservation_id", reservationID).
			Error("failed to publish cancellation event")
	}
	s.log.WithField("reservation_id", reservationID).Info("reservation cancelled by user")
	return nil
}

// SweepExpired cancels, in one bulk transaction, every PENDING
// reservation created before now minus the expiration window, and frees
// their seats.  It is the safety net behind the per-reservation delayed
// release; both paths only touch PENDING rows, so they are idempotent
// against each other.  Returns the number of reservations cancelled.
func (s *ReservationService) SweepExpired(ctx context.Context, window time.Duration) (int, error) {
	cutoff := s.now().Add(-window)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ids, err := s.reservations.FindPendingBeforeTx(ctx, tx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		if err := tx.Commit(); err != nil {
			return 0, err
		}
		committed = true
		return 0, nil
	}

	if err := s.reservations.CancelBulkTx(ctx, tx, ids); err != nil {
		return 0, err
	}
	if err := s.seats.ReleaseByReservationsTx(ctx, tx, ids); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true

	s.log.WithFields(logrus.Fields{"count": len(ids), "cutoff": cutoff}).
		Info("expired pending reservations swept")
	return len(ids), nil
}

// GetForUser returns a reservation owned by the user together with its
// seat ids.
func (s *ReservationService) GetForUser(ctx context.Context, reservationID, userID uint64) (*model.Reservation, []uint64, error) {
	res, err := s.reservations.GetByIDForUser(ctx, reservationID, userID)
	if err != nil {
		return nil, nil, err
	}
	seatIDs, err := s.reservations.SeatIDsByReservation(ctx, reservationID)
	if err != nil {
		return nil, nil, err
	}
	return res, seatIDs, nil
}

// ListForUser returns all reservations of the user, newest first.
func (s *ReservationService) ListForUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return s.reservations.ListByUser(ctx, userID)
}
