package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/youkebox/internal/repository"
	"github.com/iliyamo/youkebox/internal/youtube"
)

// maxQueueRequest caps how many ids one POST may queue.
const maxQueueRequest = 50

// PlaylistHandler serves the per-room queues.
type PlaylistHandler struct {
	Videos  PlaylistStore
	Rooms   RoomStore
	Catalog Catalog
	Skipper Skipper
	Log     *logrus.Entry
}

func NewPlaylistHandler(v PlaylistStore, r RoomStore, cat Catalog, s Skipper, log *logrus.Entry) *PlaylistHandler {
	return &PlaylistHandler{Videos: v, Rooms: r, Catalog: cat, Skipper: s, Log: log}
}

// Show lists the unplayed videos of a room, oldest first.
func (h *PlaylistHandler) Show(c echo.Context) error {
	room := roomParam(c.Param("room"))
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	videos, err := h.Videos.Playlist(ctx, room)
	if err != nil {
		h.Log.WithError(err).WithField("room", room).Error("load playlist")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load playlist failed"})
	}
	return c.JSON(http.StatusOK, videos)
}

// Add queues catalog videos given as a JSON array of ids.  Ids unknown to
// the catalog are ignored.
func (h *PlaylistHandler) Add(c echo.Context) error {
	room := roomParam(c.Param("room"))

	var ids []string
	if err := json.NewDecoder(c.Request().Body).Decode(&ids); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "body must be a JSON array of video ids"})
	}
	ids = lo.Compact(lo.Map(ids, func(id string, _ int) string { return strings.TrimSpace(id) }))
	if len(ids) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no video ids given"})
	}
	if len(ids) > maxQueueRequest {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "too many video ids"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if room != "" {
		ok, err := h.Rooms.Exists(ctx, room)
		if err != nil {
			h.Log.WithError(err).WithField("room", room).Error("check room")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if !ok {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
	}

	found, err := h.Catalog.Lookup(ctx, ids)
	if err != nil {
		h.Log.WithError(err).Warn("catalog lookup")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "catalog unavailable"})
	}
	if len(found) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no known videos"})
	}

	items := lo.Map(found, func(v youtube.Video, _ int) repository.NewVideo {
		return repository.NewVideo{
			VideoID:     v.ID,
			Title:       v.Title,
			Description: lo.EmptyableToPtr(v.Description),
			Duration:    v.Duration,
		}
	})
	created, err := h.Videos.CreateMany(ctx, room, items)
	if err != nil {
		h.Log.WithError(err).WithField("room", room).Error("queue videos")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "queue videos failed"})
	}
	h.Log.WithFields(logrus.Fields{"room": room, "count": len(created)}).Info("videos queued")
	return c.JSON(http.StatusCreated, created)
}

// Skip ends the video playing in a room.  It always answers 200; rooms
// without a running worker are left untouched.
func (h *PlaylistHandler) Skip(c echo.Context) error {
	room := roomParam(c.Param("room"))
	msg := "skipped"
	ok, err := h.Skipper.Skip(c.Request().Context(), room)
	switch {
	case err != nil:
		h.Log.WithError(err).WithField("room", room).Warn("skip")
		msg = "skip could not be stored"
	case !ok:
		msg = "nothing is playing in this room"
	}
	return c.JSON(http.StatusOK, echo.Map{"status": http.StatusOK, "message": msg})
}
