package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cinebook/cinebook/internal/model"
	"github.com/cinebook/cinebook/internal/repository"
)

// ShowtimeHandler schedules movies into rooms and exposes seat maps.
// Creating a showtime also materializes its seats from the room's seat
// template, in the same transaction as the schedule row.
type ShowtimeHandler struct {
	Movies    *repository.MovieRepo
	Rooms     *repository.RoomRepo
	Showtimes *repository.ShowtimeRepo
	Seats     *repository.SeatRepo
}

func NewShowtimeHandler(movies *repository.MovieRepo, rooms *repository.RoomRepo,
	showtimes *repository.ShowtimeRepo, seats *repository.SeatRepo) *ShowtimeHandler {
	return &ShowtimeHandler{Movies: movies, Rooms: rooms, Showtimes: showtimes, Seats: seats}
}

type createShowtimeReq struct {
	MovieID    uint64    `json:"movie_id"`
	RoomID     uint64    `json:"room_id"`
	StartsAt   time.Time `json:"starts_at"`
	PriceCents uint32    `json:"price_cents"`
}

type showtimeResp struct {
	ID         uint64    `json:"id"`
	MovieID    uint64    `json:"movie_id"`
	RoomID     uint64    `json:"room_id"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	PriceCents uint32    `json:"price_cents"`
}

func toShowtimeResp(s *model.Showtime) showtimeResp {
	return showtimeResp{ID: s.ID, MovieID: s.MovieID, RoomID: s.RoomID,
		StartsAt: s.StartsAt, EndsAt: s.EndsAt, PriceCents: s.PriceCents}
}

type seatResp struct {
	ID     uint64 `json:"id"`
	Row    uint32 `json:"row"`
	Number uint32 `json:"number"`
	Status string `json:"status"`
}

// Create schedules a showtime.  The room must be free for the whole
// slot; the end time is derived from the movie's duration.
func (h *ShowtimeHandler) Create(c echo.Context) error {
	var req createShowtimeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.MovieID == 0 || req.RoomID == 0 || req.StartsAt.IsZero() || req.PriceCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "movie_id, room_id, starts_at and price_cents required"})
	}
	if req.StartsAt.Before(time.Now()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be in the future"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	movie, err := h.Movies.GetByID(ctx, req.MovieID)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load movie failed"})
	}
	room, err := h.Rooms.GetByID(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load room failed"})
	}

	st := model.Showtime{
		MovieID:    req.MovieID,
		RoomID:     req.RoomID,
		StartsAt:   req.StartsAt.UTC(),
		EndsAt:     req.StartsAt.UTC().Add(time.Duration(movie.DurationMin) * time.Minute),
		PriceCents: req.PriceCents,
	}

	tx, err := h.Showtimes.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	n, err := h.Showtimes.CountOverlappingTx(ctx, tx, st.RoomID, st.StartsAt, st.EndsAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "overlap check failed"})
	}
	if n > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "room already booked for this slot"})
	}

	if err := h.Showtimes.CreateTx(ctx, tx, &st); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create showtime failed"})
	}
	if err := h.Seats.CreateBulkTx(ctx, tx, st.ID, room.SeatRows, room.SeatsPerRow); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create seats failed"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	return c.JSON(http.StatusCreated, toShowtimeResp(&st))
}

// Get returns a showtime together with its full seat map.
func (h *ShowtimeHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.Showtimes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrShowtimeNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "get showtime failed"})
	}

	seats, err := h.Seats.ListByShowtime(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list seats failed"})
	}
	out := make([]seatResp, 0, len(seats))
	for i := range seats {
		s := &seats[i]
		out = append(out, seatResp{ID: s.ID, Row: s.Row, Number: s.Number, Status: s.Status})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"showtime": toShowtimeResp(st),
		"seats":    out,
	})
}

// ListByMovie returns upcoming showtimes for a movie.
func (h *ShowtimeHandler) ListByMovie(c echo.Context) error {
	movieID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	showtimes, err := h.Showtimes.ListByMovie(ctx, movieID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list showtimes failed"})
	}
	out := make([]showtimeResp, 0, len(showtimes))
	for i := range showtimes {
		out = append(out, toShowtimeResp(&showtimes[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"showtimes": out})
}
