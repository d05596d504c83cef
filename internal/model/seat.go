package model

import "time"

// Seat status values.  A seat moves AVAILABLE -> RESERVED when a pending
// reservation claims it, RESERVED -> OCCUPIED when the reservation is paid,
// and back to AVAILABLE whenever the owning reservation is released.
const (
	SeatAvailable = "AVAILABLE"
	SeatReserved  = "RESERVED"
	SeatOccupied  = "OCCUPIED"
)

// Seat is the smallest unit of inventory: one bookable position for one
// showtime.  Seats are created in bulk from the room's seat template when
// the showtime is created and live as long as the showtime does.
//
// Invariant: ReservationID is non-nil exactly when Status != AVAILABLE.
type Seat struct {
	ID            uint64    // seats.id
	ShowtimeID    uint64    // seats.showtime_id
	Row           uint32    // seats.row_num
	Number        uint32    // seats.seat_number
	Status        string    // seats.status
	ReservationID *uint64   // seats.reservation_id (nullable)
	CreatedAt     time.Time // seats.created_at
	UpdatedAt     time.Time // seats.updated_at
}

// Available reports whether the seat can currently be claimed.
func (s *Seat) Available() bool { return s.Status == SeatAvailable }
