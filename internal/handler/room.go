package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cinebook/cinebook/internal/model"
	"github.com/cinebook/cinebook/internal/repository"
)

// RoomHandler manages screening rooms and their seat templates.
type RoomHandler struct {
	Rooms *repository.RoomRepo
}

func NewRoomHandler(rooms *repository.RoomRepo) *RoomHandler {
	return &RoomHandler{Rooms: rooms}
}

type createRoomReq struct {
	Name        string `json:"name"`
	SeatRows    uint32 `json:"seat_rows"`
	SeatsPerRow uint32 `json:"seats_per_row"`
}

type roomResp struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	SeatRows    uint32 `json:"seat_rows"`
	SeatsPerRow uint32 `json:"seats_per_row"`
	Capacity    uint32 `json:"capacity"`
}

func toRoomResp(r *model.Room) roomResp {
	return roomResp{ID: r.ID, Name: r.Name, SeatRows: r.SeatRows, SeatsPerRow: r.SeatsPerRow, Capacity: r.Capacity()}
}

func (h *RoomHandler) Create(c echo.Context) error {
	var req createRoomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.SeatRows == 0 || req.SeatsPerRow == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, seat_rows and seats_per_row required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room := model.Room{Name: req.Name, SeatRows: req.SeatRows, SeatsPerRow: req.SeatsPerRow}
	if err := h.Rooms.Create(ctx, &room); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create room failed"})
	}
	return c.JSON(http.StatusCreated, toRoomResp(&room))
}

func (h *RoomHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rooms, err := h.Rooms.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list rooms failed"})
	}
	out := make([]roomResp, 0, len(rooms))
	for i := range rooms {
		out = append(out, toRoomResp(&rooms[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": out})
}
