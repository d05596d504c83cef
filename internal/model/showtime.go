package model

import "time"

// Showtime schedules a movie in a room at a specific time.  Creating a
// showtime also creates one seat row per position in the room's seat
// template; the seats then carry all availability state.
type Showtime struct {
	ID         uint64    // showtimes.id
	MovieID    uint64    // showtimes.movie_id
	RoomID     uint64    // showtimes.room_id
	StartsAt   time.Time // showtimes.starts_at
	EndsAt     time.Time // showtimes.ends_at
	PriceCents uint32    // showtimes.price_cents, per seat
	CreatedAt  time.Time // showtimes.created_at
	UpdatedAt  time.Time // showtimes.updated_at
}

// Started reports whether the showtime has already begun at the given
// instant.  Reservations may no longer be cancelled once it has.
func (s *Showtime) Started(now time.Time) bool {
	return !s.StartsAt.After(now)
}
