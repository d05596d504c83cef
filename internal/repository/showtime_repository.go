package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cinebook/cinebook/internal/model"
)

// ShowtimeRepo provides persistence for showtimes.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo returns a ShowtimeRepo bound to the given database.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo { return &ShowtimeRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span showtime and seat writes.
func (r *ShowtimeRepo) DB() *sql.DB { return r.db }

// CreateTx inserts a showtime within an existing transaction and
// populates its generated ID.  Seat creation from the room template runs
// in the same transaction via SeatRepo.CreateBulkTx.
func (r *ShowtimeRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Showtime) error {
	const q = `INSERT INTO showtimes (movie_id, room_id, starts_at, ends_at, price_cents) VALUES (?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, s.MovieID, s.RoomID, s.StartsAt.UTC(), s.EndsAt.UTC(), s.PriceCents)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

func scanShowtime(row *sql.Row) (*model.Showtime, error) {
	var s model.Showtime
	err := row.Scan(&s.ID, &s.MovieID, &s.RoomID, &s.StartsAt, &s.EndsAt,
		&s.PriceCents, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowtimeNotFound
		}
		return nil, err
	}
	s.StartsAt = s.StartsAt.UTC()
	s.EndsAt = s.EndsAt.UTC()
	return &s, nil
}

// GetByID returns a showtime or ErrShowtimeNotFound.
func (r *ShowtimeRepo) GetByID(ctx context.Context, id uint64) (*model.Showtime, error) {
	const q = `SELECT id, movie_id, room_id, starts_at, ends_at, price_cents, created_at, updated_at
               FROM showtimes WHERE id = ?`
	return scanShowtime(r.db.QueryRowContext(ctx, q, id))
}

// GetTx is GetByID within an existing transaction.  The reservation
// claim path reads the showtime through the claim transaction to price
// the seats it is about to lock.
func (r *ShowtimeRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Showtime, error) {
	const q = `SELECT id, movie_id, room_id, starts_at, ends_at, price_cents, created_at, updated_at
               FROM showtimes WHERE id = ?`
	return scanShowtime(tx.QueryRowContext(ctx, q, id))
}

// ListByMovie returns upcoming showtimes for a movie ordered by start time.
func (r *ShowtimeRepo) ListByMovie(ctx context.Context, movieID uint64) ([]model.Showtime, error) {
	const q = `SELECT id, movie_id, room_id, starts_at, ends_at, price_cents, created_at, updated_at
               FROM showtimes WHERE movie_id = ? ORDER BY starts_at`
	rows, err := r.db.QueryContext(ctx, q, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Showtime, 0)
	for rows.Next() {
		var s model.Showtime
		if err := rows.Scan(&s.ID, &s.MovieID, &s.RoomID, &s.StartsAt, &s.EndsAt,
			&s.PriceCents, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.StartsAt = s.StartsAt.UTC()
		s.EndsAt = s.EndsAt.UTC()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountOverlappingTx counts showtimes in the same room whose time range
// intersects [startsAt, endsAt).  Used inside the showtime creation
// transaction to reject double-booked rooms.
func (r *ShowtimeRepo) CountOverlappingTx(ctx context.Context, tx *sql.Tx, roomID uint64, startsAt, endsAt time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM showtimes WHERE room_id = ? AND starts_at < ? AND ends_at > ?`
	var n int
	err := tx.QueryRowContext(ctx, q, roomID, endsAt.UTC(), startsAt.UTC()).Scan(&n)
	return n, err
}
