package model

import "time"

// Room is a named playlist.  Videos without a room belong to the shared
// no-room queue which has no row of its own.
type Room struct {
    ID        uint64    `json:"id"`         // rooms.id
    Name      string    `json:"name"`       // rooms.name, stored lower-case
    CreatedAt time.Time `json:"created_at"` // rooms.created_at
}
