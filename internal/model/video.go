package model

import "time"

// Video is one queue entry in a room's playlist.  It corresponds to a row
// in the `videos` table.
//
// Fields:
//  ID          – primary key identifier.
//  VideoID     – catalog identifier of the video.
//  Title       – title as returned by the catalog.
//  Description – optional catalog description.
//  Duration    – compact duration string, e.g. "PT4M13S".
//  Room        – room name, nil for the no-room queue.
//  Played      – set once the video finished or was skipped.
//  AddedOn     – ordering key within the room.
//  PlayedOn    – when playback started, nil while queued.
type Video struct {
    ID          uint64     `json:"id"`          // videos.id
    VideoID     string     `json:"video_id"`    // videos.video_id
    Title       string     `json:"title"`       // videos.title
    Description *string    `json:"description"` // videos.description (nullable)
    Duration    string     `json:"duration"`    // videos.duration
    Room        *string    `json:"room"`        // videos.room (nullable)
    Played      bool       `json:"played"`      // videos.played
    AddedOn     time.Time  `json:"added_on"`    // videos.added_on
    PlayedOn    *time.Time `json:"played_on"`   // videos.played_on (nullable)
}

// RoomKey returns the room of the video as a command table key.
func (v *Video) RoomKey() string {
    if v.Room == nil {
        return ""
    }
    return *v.Room
}
