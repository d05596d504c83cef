package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cinebook/cinebook/internal/model"
)

// SeatRepo provides persistence for seats.  Seat rows carry all
// availability state for a showtime, so every mutation that claims or
// releases seats runs inside a caller-owned transaction alongside the
// matching reservation mutation.  All timestamps are stored in UTC.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a SeatRepo bound to the given database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// CreateBulkTx inserts one AVAILABLE seat per position of a rows x perRow
// grid for the given showtime, in a single statement.  It is called when
// a showtime is created, inside the same transaction that inserts the
// showtime row.
func (r *SeatRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, rows, perRow uint32) error {
	if rows == 0 || perRow == 0 {
		return nil
	}
	query := `INSERT INTO seats (showtime_id, row_num, seat_number, status) VALUES `
	args := make([]interface{}, 0, int(rows)*int(perRow)*4)
	first := true
	for row := uint32(1); row <= rows; row++ {
		for num := uint32(1); num <= perRow; num++ {
			if !first {
				query += ","
			}
			first = false
			query += "(?, ?, ?, ?)"
			args = append(args, showtimeID, row, num, model.SeatAvailable)
		}
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// LockForClaimTx loads the requested seats of a showtime with row-level
// locks (SELECT ... FOR UPDATE).  The locks hold until the transaction
// commits or rolls back, so no concurrent transaction can observe the
// same seats as AVAILABLE while this one is mid-claim.  Seat ids that do
// not exist for the showtime are simply absent from the result; the
// caller treats a short result as an availability failure.
func (r *SeatRepo) LockForClaimTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64) ([]model.Seat, error) {
	if len(seatIDs) == 0 {
		return []model.Seat{}, nil
	}
	placeholders := make([]string, len(seatIDs))
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, showtimeID)
	for i, id := range seatIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := `SELECT id, showtime_id, row_num, seat_number, status, reservation_id
              FROM seats
              WHERE showtime_id = ? AND id IN (` + strings.Join(placeholders, ",") + `)
              FOR UPDATE`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]model.Seat, 0, len(seatIDs))
	for rows.Next() {
		var s model.Seat
		var resID sql.NullInt64
		if err := rows.Scan(&s.ID, &s.ShowtimeID, &s.Row, &s.Number, &s.Status, &resID); err != nil {
			return nil, err
		}
		if resID.Valid {
			rid := uint64(resID.Int64)
			s.ReservationID = &rid
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// ClaimTx marks the given seats RESERVED with a back-reference to the
// reservation that owns them.  The caller must already hold row locks on
// the seats via LockForClaimTx within the same transaction.
func (r *SeatRepo) ClaimTx(ctx context.Context, tx *sql.Tx, reservationID uint64, seatIDs []uint64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	placeholders := make([]string, len(seatIDs))
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, reservationID)
	for i, id := range seatIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := `UPDATE seats SET status = '` + model.SeatReserved + `', reservation_id = ?
              WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ReleaseByReservationTx returns every seat owned by the reservation to
// AVAILABLE and clears the back-reference.
func (r *SeatRepo) ReleaseByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) error {
	const q = `UPDATE seats SET status = 'AVAILABLE', reservation_id = NULL WHERE reservation_id = ?`
	_, err := tx.ExecContext(ctx, q, reservationID)
	return err
}

// ReleaseByReservationsTx is the bulk form of ReleaseByReservationTx used
// by the expiry sweep: one statement frees the seats of a whole batch of
// reservations to bound lock contention.
func (r *SeatRepo) ReleaseByReservationsTx(ctx context.Context, tx *sql.Tx, reservationIDs []uint64) error {
	if len(reservationIDs) == 0 {
		return nil
	}
	placeholders := make([]string, len(reservationIDs))
	args := make([]interface{}, len(reservationIDs))
	for i, id := range reservationIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := `UPDATE seats SET status = 'AVAILABLE', reservation_id = NULL
              WHERE reservation_id IN (` + strings.Join(placeholders, ",") + `)`
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// OccupyByReservationTx marks every seat owned by the reservation as
// OCCUPIED.  Called when the reservation is confirmed by a successful
// payment; the seats stay occupied unless the user later cancels.
func (r *SeatRepo) OccupyByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) error {
	const q = `UPDATE seats SET status = 'OCCUPIED' WHERE reservation_id = ?`
	_, err := tx.ExecContext(ctx, q, reservationID)
	return err
}

// ListByShowtime returns the full seat map of a showtime ordered by row
// and number, for display to customers picking seats.
func (r *SeatRepo) ListByShowtime(ctx context.Context, showtimeID uint64) ([]model.Seat, error) {
	const q = `SELECT id, showtime_id, row_num, seat_number, status, reservation_id, created_at, updated_at
               FROM seats
               WHERE showtime_id = ?
               ORDER BY row_num, seat_number`
	rows, err := r.db.QueryContext(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]model.Seat, 0)
	for rows.Next() {
		var s model.Seat
		var resID sql.NullInt64
		if err := rows.Scan(&s.ID, &s.ShowtimeID, &s.Row, &s.Number, &s.Status, &resID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if resID.Valid {
			rid := uint64(resID.Int64)
			s.ReservationID = &rid
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}
