package model

import "time"

// Movie holds the catalog entry a showtime screens.
type Movie struct {
	ID          uint64    // movies.id
	Title       string    // movies.title
	Description string    // movies.description
	Genre       string    // movies.genre
	DurationMin uint32    // movies.duration_min
	CreatedAt   time.Time // movies.created_at
	UpdatedAt   time.Time // movies.updated_at
}
