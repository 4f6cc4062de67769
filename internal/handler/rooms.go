package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/youkebox/internal/repository"
)

type RoomHandler struct {
	Rooms   RoomStore
	Spawner RoomSpawner
	Log     *logrus.Entry
}

func NewRoomHandler(r RoomStore, s RoomSpawner, log *logrus.Entry) *RoomHandler {
	return &RoomHandler{Rooms: r, Spawner: s, Log: log}
}

type createRoomReq struct {
	Name string `json:"name"`
}

// List returns every room ordered by name.
func (h *RoomHandler) List(c echo.Context) error {
	return h.list(c, "")
}

// Search returns the rooms whose name contains :query.
func (h *RoomHandler) Search(c echo.Context) error {
	return h.list(c, repository.NormalizeRoom(c.Param("query")))
}

func (h *RoomHandler) list(c echo.Context, query string) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	rooms, err := h.Rooms.List(ctx, query)
	if err != nil {
		h.Log.WithError(err).Error("list rooms")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, rooms)
}

// Create stores a room and starts its playlist worker.
func (h *RoomHandler) Create(c echo.Context) error {
	var req createRoomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	name := repository.NormalizeRoom(req.Name)
	if name == "" || name == freeForAll {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room name"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	room, err := h.Rooms.Create(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrRoomExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "room already exists"})
		}
		h.Log.WithError(err).Error("create room")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create room failed"})
	}
	// The row exists either way; a worker that fails to start here is
	// spawned on the next process start.
	if _, err := h.Spawner.AddRoom(room.Name); err != nil {
		h.Log.WithError(err).WithField("room", room.Name).Warn("start room worker")
	}
	return c.JSON(http.StatusCreated, room)
}
