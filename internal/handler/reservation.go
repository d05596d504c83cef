package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cinebook/cinebook/internal/model"
	"github.com/cinebook/cinebook/internal/repository"
	"github.com/cinebook/cinebook/internal/service"
)

// ReservationHandler exposes the reservation lifecycle to customers:
// claim seats, cancel, list, and start payment.
type ReservationHandler struct {
	Reservations *service.ReservationService
	Payments     *service.PaymentService
}

func NewReservationHandler(r *service.ReservationService, p *service.PaymentService) *ReservationHandler {
	return &ReservationHandler{Reservations: r, Payments: p}
}

type createReservationReq struct {
	ShowtimeID uint64   `json:"showtime_id"`
	SeatIDs    []uint64 `json:"seat_ids"`
}

type reservationResp struct {
	ID               uint64   `json:"id"`
	ShowtimeID       uint64   `json:"showtime_id"`
	Status           string   `json:"status"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	SeatIDs          []uint64 `json:"seat_ids,omitempty"`
	CreatedAt        string   `json:"created_at"`
}

func toReservationResp(r *model.Reservation, seatIDs []uint64) reservationResp {
	return reservationResp{
		ID:               r.ID,
		ShowtimeID:       r.ShowtimeID,
		Status:           r.Status,
		TotalAmountCents: r.TotalAmountCents,
		SeatIDs:          seatIDs,
		CreatedAt:        r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Create claims the requested seats for the authenticated user.  The
// claim is all-or-nothing: one unavailable seat fails the whole request.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ShowtimeID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtime_id required"})
	}

	res, err := h.Reservations.Create(c.Request().Context(), userID, req.ShowtimeID, req.SeatIDs)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateSeats):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "duplicate seat ids"})
		case errors.Is(err, repository.ErrSeatsNotAvailable):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats not available"})
		case errors.Is(err, repository.ErrShowtimeNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create reservation failed"})
	}
	return c.JSON(http.StatusCreated, toReservationResp(res, req.SeatIDs))
}

// Cancel cancels the user's reservation and frees its seats.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	if err := h.Reservations.Cancel(c.Request().Context(), id, userID); err != nil {
		switch {
		case errors.Is(err, repository.ErrReservationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrUnauthorizedCancellation):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not your reservation"})
		case errors.Is(err, repository.ErrCancellationNotAllowed):
			return c.JSON(http.StatusConflict, echo.Map{"error": "showtime already started"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel reservation failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Get returns one of the user's reservations with its seat ids.
func (h *ReservationHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	res, seatIDs, err := h.Reservations.GetForUser(c.Request().Context(), id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "get reservation failed"})
	}
	return c.JSON(http.StatusOK, toReservationResp(res, seatIDs))
}

// List returns all reservations belonging to the user.
func (h *ReservationHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}

	list, err := h.Reservations.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list reservations failed"})
	}
	out := make([]reservationResp, 0, len(list))
	for i := range list {
		out = append(out, toReservationResp(&list[i], nil))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// CreateIntent starts payment for a pending reservation and returns the
// provider's client secret.
func (h *ReservationHandler) CreateIntent(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	intent, err := h.Payments.CreateIntent(c.Request().Context(), id, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReservationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrReservationNotPayable):
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not payable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create payment intent failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"payment_id":    intent.ID,
		"client_secret": intent.ClientSecret,
	})
}
