// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/youkebox/internal/handler"
	"github.com/iliyamo/youkebox/internal/middleware"
	"github.com/iliyamo/youkebox/internal/model"
)

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session endpoints under /v1/auth and the
// protected /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleHost, model.RoleListener))
}

// RegisterPlaylist registers the queue endpoints.  Listing and skipping
// are open; queueing videos needs a session.
func RegisterPlaylist(e *echo.Echo, p *handler.PlaylistHandler, jwtSecret string) {
	g := e.Group("/v1/playlist")
	g.GET("/:room", p.Show)
	g.POST("/:room/skip", p.Skip)
	g.POST("/:room", p.Add,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleHost, model.RoleListener))
}

// RegisterRooms registers room browsing and creation.  Only hosts may
// create rooms.
func RegisterRooms(e *echo.Echo, r *handler.RoomHandler, jwtSecret string) {
	g := e.Group("/v1/rooms")
	g.GET("", r.List)
	g.GET("/search/:query", r.Search)
	g.POST("", r.Create, middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleHost))
}

// RegisterYouTube registers the catalog search proxy behind the response
// cache.
func RegisterYouTube(e *echo.Echo, y *handler.YouTubeHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/youtube/:query", y.Search, cache)
}
