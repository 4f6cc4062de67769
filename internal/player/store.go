package player

import (
	"context"
	"time"

	"github.com/iliyamo/youkebox/internal/model"
)

// Store is the storage handle owned by a single worker. Only rows of the
// worker's own room are read or written through it.
type Store interface {
	// NextUnplayed returns the oldest unplayed video of room, or nil when
	// the queue is empty. The empty room selects videos without a room.
	NextUnplayed(ctx context.Context, room string) (*model.Video, error)
	MarkStarted(ctx context.Context, id uint64, at time.Time) error
	// MarkPlayed must be durable when it returns and must not fail for a
	// video that is already played.
	MarkPlayed(ctx context.Context, id uint64) error
	Close() error
}

// Opener creates a new Store. Each worker calls it for its own handle.
type Opener func(ctx context.Context) (Store, error)

// RoomLister loads the names of all known rooms.
type RoomLister interface {
	ListRooms(ctx context.Context) ([]string, error)
}
