package handler

import (
	"context"
	"net/url"

	"github.com/iliyamo/youkebox/internal/model"
	"github.com/iliyamo/youkebox/internal/repository"
	"github.com/iliyamo/youkebox/internal/youtube"
)

// The interfaces below are the slices of the repositories, catalog client
// and supervisor that handlers use.

type PlaylistStore interface {
	Playlist(ctx context.Context, room string) ([]model.Video, error)
	CreateMany(ctx context.Context, room string, items []repository.NewVideo) ([]model.Video, error)
}

type RoomStore interface {
	List(ctx context.Context, query string) ([]model.Room, error)
	Create(ctx context.Context, name string) (*model.Room, error)
	Exists(ctx context.Context, name string) (bool, error)
}

type Catalog interface {
	Search(ctx context.Context, query string) ([]byte, error)
	Lookup(ctx context.Context, ids []string) ([]youtube.Video, error)
}

// Skipper ends the current video of a room.
type Skipper interface {
	Skip(ctx context.Context, room string) (bool, error)
}

// RoomSpawner starts a worker for a newly created room.
type RoomSpawner interface {
	AddRoom(name string) (bool, error)
}

// freeForAll is the path segment naming the queue without a room.
const freeForAll = "ffa"

// roomParam returns the normalized :room path parameter, mapping "ffa" to
// the no-room queue.
func roomParam(raw string) string {
	if u, err := url.PathUnescape(raw); err == nil {
		raw = u
	}
	room := repository.NormalizeRoom(raw)
	if room == freeForAll {
		return ""
	}
	return room
}
