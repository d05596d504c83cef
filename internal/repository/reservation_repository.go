package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/cinebook/cinebook/internal/model"
)

// ReservationRepo provides persistence for reservations.  Status
// transitions always happen inside caller-owned transactions together
// with the matching seat mutations, so the two tables never disagree.
// All timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// CreateTx inserts a new reservation within the scope of an existing
// transaction and populates the generated ID and timestamps on the
// provided value.  The caller must commit or roll back the transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (user_id, showtime_id, status, total_amount_cents) VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.UserID, res.ShowtimeID, res.Status, res.TotalAmountCents)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	// Query back the full row to populate timestamps and defaults.
	const sel = `SELECT created_at, updated_at FROM reservations WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, res.ID).Scan(&res.CreatedAt, &res.UpdatedAt)
}

func scanReservation(row *sql.Row) (*model.Reservation, error) {
	var res model.Reservation
	var payRef sql.NullString
	err := row.Scan(&res.ID, &res.UserID, &res.ShowtimeID, &res.Status,
		&res.TotalAmountCents, &payRef, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	if payRef.Valid {
		ref := payRef.String
		res.PaymentRef = &ref
	}
	return &res, nil
}

// GetForUpdateTx loads a reservation under a row lock.  Every release
// path (delayed task, sweep, cancel, payment confirmation) reads through
// this method so the read-decide-write sequence on reservation status is
// serialized: a release racing a payment confirmation deterministically
// sees the other's committed state.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	const q = `SELECT id, user_id, showtime_id, status, total_amount_cents, payment_ref, created_at, updated_at
               FROM reservations WHERE id = ? FOR UPDATE`
	return scanReservation(tx.QueryRowContext(ctx, q, id))
}

// GetByPaymentRefForUpdateTx loads a reservation by the payment
// provider's identifier, under a row lock.  Used by webhook
// reconciliation; returns ErrReservationNotFound when no reservation
// carries the reference (e.g. a duplicate delivery for a reservation
// that no longer exists).
func (r *ReservationRepo) GetByPaymentRefForUpdateTx(ctx context.Context, tx *sql.Tx, paymentRef string) (*model.Reservation, error) {
	const q = `SELECT id, user_id, showtime_id, status, total_amount_cents, payment_ref, created_at, updated_at
               FROM reservations WHERE payment_ref = ? FOR UPDATE`
	return scanReservation(tx.QueryRowContext(ctx, q, paymentRef))
}

// UpdateStatusTx sets the reservation status within a transaction.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	const q = `UPDATE reservations SET status = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, status, id)
	return err
}

// SetPaymentRef records the payment provider identifier on a reservation
// once a payment intent has been created for it.
func (r *ReservationRepo) SetPaymentRef(ctx context.Context, id uint64, paymentRef string) error {
	const q = `UPDATE reservations SET payment_ref = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, paymentRef, id)
	return err
}

// FindPendingBeforeTx returns the ids of all PENDING reservations created
// strictly before the cutoff, locking the matched rows for the duration
// of the transaction.  The sweep cancels the whole batch in bulk.
func (r *ReservationRepo) FindPendingBeforeTx(ctx context.Context, tx *sql.Tx, cutoff time.Time) ([]uint64, error) {
	const q = `SELECT id FROM reservations WHERE status = 'PENDING' AND created_at < ? FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// CancelBulkTx sets a batch of reservations to CANCELLED in a single
// statement.  Only rows still PENDING are touched, which makes the sweep
// idempotent against the per-reservation delayed release.
func (r *ReservationRepo) CancelBulkTx(ctx context.Context, tx *sql.Tx, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := `UPDATE reservations SET status = 'CANCELLED'
              WHERE status = 'PENDING' AND id IN (` + strings.Join(placeholders, ",") + `)`
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetWithShowtimeForUpdateTx loads a reservation under a row lock
// together with the start time of its showtime, which the cancellation
// path needs to decide whether cancelling is still allowed.
func (r *ReservationRepo) GetWithShowtimeForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, time.Time, error) {
	const q = `SELECT r.id, r.user_id, r.showtime_id, r.status, r.total_amount_cents, r.payment_ref,
                      r.created_at, r.updated_at, s.starts_at
               FROM reservations r
               JOIN showtimes s ON s.id = r.showtime_id
               WHERE r.id = ?
               FOR UPDATE`
	var res model.Reservation
	var payRef sql.NullString
	var startsAt time.Time
	err := tx.QueryRowContext(ctx, q, id).Scan(&res.ID, &res.UserID, &res.ShowtimeID, &res.Status,
		&res.TotalAmountCents, &payRef, &res.CreatedAt, &res.UpdatedAt, &startsAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, ErrReservationNotFound
		}
		return nil, time.Time{}, err
	}
	if payRef.Valid {
		ref := payRef.String
		res.PaymentRef = &ref
	}
	return &res, startsAt.UTC(), nil
}

// GetByIDForUser returns a reservation owned by the given user.  Lookup
// misses and ownership mismatches are both reported as
// ErrReservationNotFound so the endpoint does not leak other users'
// reservation ids.
func (r *ReservationRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Reservation, error) {
	const q = `SELECT id, user_id, showtime_id, status, total_amount_cents, payment_ref, created_at, updated_at
               FROM reservations WHERE id = ? AND user_id = ?`
	return scanReservation(r.db.QueryRowContext(ctx, q, id, userID))
}

// ListByUser returns all reservations of a user, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	const q = `SELECT id, user_id, showtime_id, status, total_amount_cents, payment_ref, created_at, updated_at
               FROM reservations WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		var res model.Reservation
		var payRef sql.NullString
		if err := rows.Scan(&res.ID, &res.UserID, &res.ShowtimeID, &res.Status,
			&res.TotalAmountCents, &payRef, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		if payRef.Valid {
			ref := payRef.String
			res.PaymentRef = &ref
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SeatIDsByReservation returns the ids of the seats currently owned by a
// reservation, ordered by row and number.
func (r *ReservationRepo) SeatIDsByReservation(ctx context.Context, reservationID uint64) ([]uint64, error) {
	const q = `SELECT id FROM seats WHERE reservation_id = ? ORDER BY row_num, seat_number`
	rows, err := r.db.QueryContext(ctx, q, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
