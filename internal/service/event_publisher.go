// Package service holds adapters that connect the playlist workers to
// infrastructure outside the process.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/youkebox/internal/player"
	"github.com/iliyamo/youkebox/internal/queue"
)

const (
	dialTimeout    = 2 * time.Second
	publishTimeout = 2 * time.Second
	// brokerCooldown is how long events are dropped after a failed dial.
	brokerCooldown = 30 * time.Second
)

// ErrBrokerUnavailable is returned while the publisher waits out the
// cooldown after a failed connection attempt.
var ErrBrokerUnavailable = errors.New("broker unavailable")

// EventPublisher publishes worker events to the playback queue.  It keeps
// one connection and reconnects lazily; a broker outage drops events
// instead of slowing playback down.  Only one caller dials at a time and
// it does so without holding the lock, so other rooms never wait on it.
type EventPublisher struct {
	url     string
	log     *logrus.Entry
	now     func() time.Time
	connect func() (*amqp.Connection, *amqp.Channel, error)

	mu        sync.Mutex
	conn      *amqp.Connection
	ch        *amqp.Channel
	dialing   bool
	downUntil time.Time
}

func NewEventPublisher(url string, log *logrus.Entry) *EventPublisher {
	p := &EventPublisher{url: url, log: log, now: time.Now}
	p.connect = p.dial
	return p
}

// Notify implements player.Notifier.  Failures are logged only.
func (p *EventPublisher) Notify(ctx context.Context, ev player.Event) {
	if err := p.Publish(ctx, ToPlaybackEvent(ev)); err != nil {
		p.log.WithError(err).WithField("event", ev.Type).Debug("playback event dropped")
	}
}

// Publish sends ev as a persistent JSON message.
func (p *EventPublisher) Publish(ctx context.Context, ev queue.PlaybackEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ch, err := p.channel()
	if err != nil {
		return err
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err = ch.PublishWithContext(pctx,
		"",                  // default exchange
		queue.PlaybackQueue, // routing key = queue name
		false,               // mandatory
		false,               // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    p.now().UTC(),
			Body:         body,
		})
	if err != nil {
		p.drop(ch)
		return err
	}
	return nil
}

// channel returns the open channel or dials a new one.  While another
// caller is dialing or the cooldown runs, it fails fast.
func (p *EventPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	if p.ch != nil && !p.ch.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	p.reset()
	if p.dialing || p.now().Before(p.downUntil) {
		p.mu.Unlock()
		return nil, ErrBrokerUnavailable
	}
	p.dialing = true
	p.mu.Unlock()

	conn, ch, err := p.connect()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		p.downUntil = p.now().Add(brokerCooldown)
		p.log.WithError(err).Warn("rabbitmq: connect failed")
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// dial opens a connection and a channel with the playback queue declared.
func (p *EventPublisher) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	// Durable so queued events survive broker restarts.
	if _, err := ch.QueueDeclare(queue.PlaybackQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// drop discards ch after a failed publish unless it was already replaced.
func (p *EventPublisher) drop(ch *amqp.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		p.reset()
	}
}

// reset closes the current connection.  Callers hold p.mu.
func (p *EventPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection.
func (p *EventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// ToPlaybackEvent converts a worker event to its wire form.
func ToPlaybackEvent(ev player.Event) queue.PlaybackEvent {
	return queue.PlaybackEvent{
		Type:            string(ev.Type),
		Room:            ev.Room,
		VideoID:         ev.VideoID,
		Title:           ev.Title,
		DurationSeconds: uint64(ev.Duration / time.Second),
		Skipped:         ev.Skipped,
		Error:           ev.Error,
		At:              ev.At.UTC().Format(time.RFC3339),
	}
}
