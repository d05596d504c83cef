// Package repository implements data access over MySQL.  This file defines
// sentinel error values reused across repositories and services.  Handlers
// compare against them with errors.Is and translate each into an HTTP
// status code; none of them is ever retried automatically.
package repository

import "errors"

// ErrSeatsNotAvailable is returned when at least one requested seat is not
// AVAILABLE at claim time (reserved, occupied or missing).  The whole
// request fails; no partial reservation is ever created.  Handlers map it
// to HTTP 400.
var ErrSeatsNotAvailable = errors.New("seats not available")

// ErrDuplicateSeats is returned when the requested seat id list contains
// the same seat more than once.  Handlers map it to HTTP 400.
var ErrDuplicateSeats = errors.New("duplicate seat ids in request")

// ErrReservationNotFound is returned when a reservation lookup by id or by
// payment reference matches nothing.  Handlers map it to HTTP 404.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrUnauthorizedCancellation is returned when a user attempts to cancel a
// reservation owned by someone else.  Handlers map it to HTTP 403.
var ErrUnauthorizedCancellation = errors.New("reservation belongs to another user")

// ErrCancellationNotAllowed is returned when a cancellation arrives after
// the showtime has already started.  Handlers map it to HTTP 409.
var ErrCancellationNotAllowed = errors.New("showtime already started")

// ErrReservationNotPayable is returned when a payment intent is
// requested for a reservation that is no longer PENDING.  Handlers map
// it to HTTP 409.
var ErrReservationNotPayable = errors.New("reservation is not payable")

// ErrMovieNotFound is returned when a movie lookup by id matches nothing.
var ErrMovieNotFound = errors.New("movie not found")

// ErrRoomNotFound is returned when a room lookup by id matches nothing.
var ErrRoomNotFound = errors.New("room not found")

// ErrShowtimeNotFound is returned when a showtime lookup by id matches nothing.
var ErrShowtimeNotFound = errors.New("showtime not found")

// ErrEmailExists is returned when registering with an email that is
// already taken.  Handlers map it to HTTP 409.
var ErrEmailExists = errors.New("email already exists")
