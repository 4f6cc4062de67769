package player

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotStarted     = errors.New("supervisor not started")
	ErrAlreadyStarted = errors.New("supervisor already started")
)

// Supervisor runs one Worker per room. Workers are spawned for the rooms
// known at Start and for every room added afterwards through AddRoom.
type Supervisor struct {
	rooms    RoomLister
	open     Opener
	commands CommandTable
	notifier Notifier
	opts     Options
	log      *logrus.Entry

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	workers map[string]*Worker
	wg      sync.WaitGroup
}

func NewSupervisor(rooms RoomLister, open Opener, commands CommandTable, notifier Notifier, opts Options, log *logrus.Entry) *Supervisor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Supervisor{
		rooms:    rooms,
		open:     open,
		commands: commands,
		notifier: notifier,
		opts:     opts,
		log:      log,
		workers:  make(map[string]*Worker),
	}
}

// Start loads every room, seeds its command with play and spawns its
// worker, plus one for the no-room queue. It returns once all workers are
// running; they stop when ctx is cancelled. When Start fails, workers it
// already spawned are stopped and Start may be called again.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	names, err := s.rooms.ListRooms(ctx)
	if err != nil {
		s.abort()
		return fmt.Errorf("load rooms: %w", err)
	}
	keys := lo.Uniq(append(lo.Map(names, func(n string, _ int) string { return Key(n) }), NoRoom))
	for _, key := range keys {
		if _, err := s.spawn(key); err != nil {
			s.abort()
			return err
		}
	}
	s.log.WithField("workers", len(keys)).Info("playlist listener started")
	return nil
}

// abort stops the workers of a failed Start and resets the supervisor.
func (s *Supervisor) abort() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.ctx, s.cancel = nil, nil
	s.workers = make(map[string]*Worker)
	s.mu.Unlock()
}

// AddRoom starts a worker for a room created after Start. It reports false
// when the room already has a worker.
func (s *Supervisor) AddRoom(name string) (bool, error) {
	return s.spawn(Key(name))
}

// Skip asks the worker of room to end its current video. Rooms that were
// never initialized are ignored; the result reports whether the command
// was stored.
func (s *Supervisor) Skip(ctx context.Context, room string) (bool, error) {
	key := Key(room)
	ok, err := s.commands.SetIfPresent(ctx, key, Skip)
	if err != nil {
		return false, fmt.Errorf("skip room %q: %w", key, err)
	}
	s.log.WithFields(logrus.Fields{"room": label(key), "applied": ok}).Info("skip requested")
	return ok, nil
}

// Rooms returns the keys of all running workers in ascending order.
func (s *Supervisor) Rooms() []string {
	s.mu.Lock()
	keys := lo.Keys(s.workers)
	s.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Wait blocks until every worker has returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// spawn reserves key under the lock and seeds its command outside it, so a
// slow command table does not block Rooms or other AddRoom calls.
func (s *Supervisor) spawn(key string) (bool, error) {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return false, ErrNotStarted
	}
	if _, ok := s.workers[key]; ok {
		s.mu.Unlock()
		return false, nil
	}
	ctx := s.ctx
	w := NewWorker(key, s.open, s.commands, s.notifier, s.opts, s.log.WithField("room", label(key)))
	s.workers[key] = w
	s.wg.Add(1)
	s.mu.Unlock()

	if err := s.commands.Set(ctx, key, Play); err != nil {
		s.mu.Lock()
		delete(s.workers, key)
		s.mu.Unlock()
		s.wg.Done()
		return false, fmt.Errorf("seed command for room %q: %w", key, err)
	}
	go func() {
		defer s.wg.Done()
		_ = w.Run(ctx)
	}()
	return true, nil
}

// label names a room key in logs.
func label(key string) string {
	if key == NoRoom {
		return "ffa"
	}
	return key
}
