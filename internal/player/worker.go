package player

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/youkebox/internal/model"
)

// Options tunes the playback protocol of every worker.
type Options struct {
	Tick        time.Duration // poll interval while a video plays
	IdleBackoff time.Duration // wait after an empty queue or a storage failure
	MaxRetries  int           // consecutive storage failures before an alert, 0 disables it
	ResetSkip   bool          // reset the room command to play when a video starts
	OpenTimeout time.Duration // bound on acquiring a storage handle
}

// DefaultOptions returns a 500ms tick, a 1s idle backoff, an alert after five
// consecutive storage failures, skip reset enabled and a 5s open timeout.
func DefaultOptions() Options {
	return Options{
		Tick:        500 * time.Millisecond,
		IdleBackoff: time.Second,
		MaxRetries:  5,
		ResetSkip:   true,
		OpenTimeout: 5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Tick <= 0 {
		o.Tick = def.Tick
	}
	if o.IdleBackoff <= 0 {
		o.IdleBackoff = def.IdleBackoff
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = def.OpenTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return o
}

// markPlayedTimeout bounds the final MarkPlayed of a video, which runs
// detached from the worker context so a shutdown cannot interrupt it.
const markPlayedTimeout = 5 * time.Second

// Worker advances the queue of a single room. It owns its storage handle
// and is the only writer of playback state for that room.
type Worker struct {
	room     string
	open     Opener
	store    Store
	commands CommandTable
	notifier Notifier
	opts     Options
	log      *logrus.Entry

	failures int
	now      func() time.Time
}

// NewWorker returns a worker for room. The store is opened lazily by Run.
func NewWorker(room string, open Opener, commands CommandTable, notifier Notifier, opts Options, log *logrus.Entry) *Worker {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Worker{
		room:     room,
		open:     open,
		commands: commands,
		notifier: notifier,
		opts:     opts.withDefaults(),
		log:      log,
		now:      time.Now,
	}
}

// Room returns the command table key of the worker's room.
func (w *Worker) Room() string { return w.room }

// Run plays the room's queue until ctx is cancelled. Storage failures are
// retried after the idle backoff; Run only returns ctx.Err().
func (w *Worker) Run(ctx context.Context) error {
	defer w.closeStore()
	w.log.Info("worker started")
	for {
		if err := ctx.Err(); err != nil {
			w.log.Info("worker stopped")
			return err
		}
		played, err := w.playNext(ctx)
		if err != nil && ctx.Err() == nil {
			w.fail(ctx, err)
		}
		if !played {
			sleep(ctx, w.opts.IdleBackoff)
		}
	}
}

// playNext selects the head of the queue and plays it. It reports false
// when nothing was played so the caller backs off.
func (w *Worker) playNext(ctx context.Context) (bool, error) {
	store, err := w.handle(ctx)
	if err != nil {
		return false, fmt.Errorf("open store: %w", err)
	}
	video, err := store.NextUnplayed(ctx, w.room)
	if err != nil {
		return false, fmt.Errorf("select next video: %w", err)
	}
	w.recovered()
	if video == nil {
		return false, nil
	}

	log := w.log.WithFields(logrus.Fields{"video_id": video.ID, "title": video.Title})
	secs, err := ParseDuration(video.Duration)
	if err != nil {
		// Leaving it unplayed would select it again on every iteration.
		log.WithError(err).Error("unplayable duration, marking video played")
		return true, w.complete(ctx, video, false, err)
	}

	skipped, err := w.play(ctx, store, video, time.Duration(secs)*time.Second, log)
	if err != nil {
		return false, err
	}
	return true, w.complete(ctx, video, skipped, nil)
}

// play waits out the duration of video, polling the command table every
// tick. It reports whether playback ended because of a skip.
func (w *Worker) play(ctx context.Context, store Store, video *model.Video, total time.Duration, log *logrus.Entry) (bool, error) {
	if w.opts.ResetSkip {
		if err := w.commands.Set(ctx, w.room, Play); err != nil {
			log.WithError(err).Warn("could not reset room command")
		}
	}

	start := w.now()
	if err := store.MarkStarted(ctx, video.ID, start); err != nil {
		log.WithError(err).Warn("could not record playback start")
	}
	log.WithField("duration", video.Duration).Info("start playing")
	w.notifier.Notify(ctx, Event{
		Type:     EventStarted,
		Room:     w.room,
		VideoID:  video.ID,
		Title:    video.Title,
		Duration: total,
		At:       start,
	})

	for {
		if w.now().Sub(start) >= total {
			return false, nil
		}
		if w.skipRequested(ctx, log) {
			return true, nil
		}
		if !sleep(ctx, w.opts.Tick) {
			return false, ctx.Err()
		}
	}
}

// skipRequested treats an absent entry as play and seeds it; any value
// other than play ends the current video.
func (w *Worker) skipRequested(ctx context.Context, log *logrus.Entry) bool {
	cmd, ok, err := w.commands.Get(ctx, w.room)
	if err != nil {
		log.WithError(err).Warn("could not read room command")
		return false
	}
	if !ok {
		if err := w.commands.Initialize(ctx, w.room); err != nil {
			log.WithError(err).Warn("could not initialize room command")
		}
		return false
	}
	return cmd != Play
}

// complete marks video played, retrying until the write succeeds or ctx is
// cancelled. Advancing without a durable mark would replay the video.
func (w *Worker) complete(ctx context.Context, video *model.Video, skipped bool, cause error) error {
	for {
		store, err := w.handle(ctx)
		if err == nil {
			mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markPlayedTimeout)
			err = store.MarkPlayed(mctx, video.ID)
			cancel()
			if err == nil {
				break
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.fail(ctx, fmt.Errorf("mark video %d played: %w", video.ID, err))
		if !sleep(ctx, w.opts.IdleBackoff) {
			return ctx.Err()
		}
	}
	w.recovered()

	ev := Event{
		Type:    EventFinished,
		Room:    w.room,
		VideoID: video.ID,
		Title:   video.Title,
		Skipped: skipped,
		At:      w.now(),
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	w.log.WithFields(logrus.Fields{"video_id": video.ID, "title": video.Title, "skipped": skipped}).Info("done playing")
	w.notifier.Notify(ctx, ev)
	return nil
}

// handle returns the worker's store, opening it when needed. An open that
// does not finish within OpenTimeout counts as a storage failure.
func (w *Worker) handle(ctx context.Context) (Store, error) {
	if w.store != nil {
		return w.store, nil
	}
	octx, cancel := context.WithTimeout(ctx, w.opts.OpenTimeout)
	defer cancel()
	store, err := w.open(octx)
	if err != nil {
		return nil, err
	}
	w.store = store
	return store, nil
}

func (w *Worker) closeStore() {
	if w.store == nil {
		return
	}
	if err := w.store.Close(); err != nil {
		w.log.WithError(err).Warn("close store")
	}
	w.store = nil
}

// fail records a storage failure. Every MaxRetries consecutive failures the
// handle is dropped so the next attempt reconnects; the first time the
// budget runs out an alert is raised.
func (w *Worker) fail(ctx context.Context, err error) {
	w.failures++
	entry := w.log.WithError(err).WithField("failures", w.failures)
	if w.opts.MaxRetries == 0 || w.failures%w.opts.MaxRetries != 0 {
		entry.Warn("storage failure, retrying")
		return
	}
	w.closeStore()
	if w.failures != w.opts.MaxRetries {
		entry.Warn("storage still failing, reopening handle")
		return
	}
	entry.WithField("alert", true).Error("storage retry budget exhausted")
	w.notifier.Notify(ctx, Event{
		Type:  EventAlert,
		Room:  w.room,
		Error: err.Error(),
		At:    w.now(),
	})
}

func (w *Worker) recovered() {
	if w.failures == 0 {
		return
	}
	w.log.WithField("failures", w.failures).Info("storage recovered")
	w.failures = 0
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
