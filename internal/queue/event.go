// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"fmt"
	"strings"
)

// PlaybackQueue is the durable queue receiving playback events.
const PlaybackQueue = "playback.events"

// PlaybackEvent is published when a worker starts or finishes a video or
// raises an alert.  Room is empty for the no-room queue.
type PlaybackEvent struct {
	Type            string `json:"type"`
	Room            string `json:"room"`
	VideoID         uint64 `json:"video_id,omitempty"`
	Title           string `json:"title,omitempty"`
	DurationSeconds uint64 `json:"duration_seconds,omitempty"`
	Skipped         bool   `json:"skipped"`
	Error           string `json:"error,omitempty"`
	At              string `json:"at"`
}

// FormatLine renders ev as one human-friendly log line.
func FormatLine(ev PlaybackEvent) string {
	room := ev.Room
	if room == "" {
		room = "ffa"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | room=%q", ev.At, ev.Type, room)
	if ev.VideoID != 0 {
		fmt.Fprintf(&b, " | video_id=%d | title=%q", ev.VideoID, ev.Title)
	}
	if ev.DurationSeconds != 0 {
		fmt.Fprintf(&b, " | duration=%ds", ev.DurationSeconds)
	}
	if ev.Type == "video.finished" {
		fmt.Fprintf(&b, " | skipped=%t", ev.Skipped)
	}
	if ev.Error != "" {
		fmt.Fprintf(&b, " | error=%q", ev.Error)
	}
	b.WriteString("\n")
	return b.String()
}
