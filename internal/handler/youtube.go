package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type YouTubeHandler struct {
	Catalog Catalog
	Log     *logrus.Entry
}

func NewYouTubeHandler(cat Catalog, log *logrus.Entry) *YouTubeHandler {
	return &YouTubeHandler{Catalog: cat, Log: log}
}

// Search proxies a catalog search and returns its JSON unchanged.
func (h *YouTubeHandler) Search(c echo.Context) error {
	q := strings.TrimSpace(c.Param("query"))
	if q == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "query required"})
	}
	body, err := h.Catalog.Search(c.Request().Context(), q)
	if err != nil {
		h.Log.WithError(err).WithField("query", q).Warn("catalog search")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "catalog unavailable"})
	}
	return c.JSONBlob(http.StatusOK, body)
}
