package model

import "time"

// Room describes a physical screening room and its seat template.  The
// template is a simple grid: SeatRows rows of SeatsPerRow seats each.
// Seats for a showtime are generated from this grid when the showtime is
// created.
type Room struct {
	ID          uint64    // rooms.id
	Name        string    // rooms.name
	SeatRows    uint32    // rooms.seat_rows
	SeatsPerRow uint32    // rooms.seats_per_row
	CreatedAt   time.Time // rooms.created_at
	UpdatedAt   time.Time // rooms.updated_at
}

// Capacity returns the total number of seats in the room's template.
func (r *Room) Capacity() uint32 { return r.SeatRows * r.SeatsPerRow }
