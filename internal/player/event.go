package player

import (
	"context"
	"time"
)

type EventType string

const (
	EventStarted  EventType = "video.started"
	EventFinished EventType = "video.finished"
	EventAlert    EventType = "worker.alert"
)

// Event describes a playback transition or a worker alert.
type Event struct {
	Type     EventType
	Room     string
	VideoID  uint64
	Title    string
	Duration time.Duration
	Skipped  bool
	Error    string
	At       time.Time
}

// Notifier receives worker events. Notify is called synchronously from the
// worker loop and should return quickly.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}
