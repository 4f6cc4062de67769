package player

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/youkebox/internal/model"
)

var errStoreDown = errors.New("store down")

// fakeDB is the shared state behind every fakeStore handle.
type fakeDB struct {
	mu           sync.Mutex
	videos       []*model.Video
	nextID       uint64
	failures     int
	markFailures int
	opens        int
	blocked      bool
	played       []uint64
}

func newFakeDB() *fakeDB { return &fakeDB{} }

// add queues a video for room ("" is the no-room queue) added at base+offset.
func (d *fakeDB) add(room, duration string, offset time.Duration) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	v := &model.Video{
		ID:       d.nextID,
		VideoID:  "yt" + duration,
		Title:    "video",
		Duration: duration,
		AddedOn:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(offset),
	}
	if room != "" {
		r := room
		v.Room = &r
	}
	d.videos = append(d.videos, v)
	return v.ID
}

func (d *fakeDB) failNext(n int) {
	d.mu.Lock()
	d.failures = n
	d.mu.Unlock()
}

func (d *fakeDB) failMarks(n int) {
	d.mu.Lock()
	d.markFailures = n
	d.mu.Unlock()
}

func (d *fakeDB) playedIDs() []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint64(nil), d.played...)
}

func (d *fakeDB) isPlayed(id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range d.videos {
		if v.ID == id {
			return v.Played
		}
	}
	return false
}

func (d *fakeDB) isStarted(id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range d.videos {
		if v.ID == id {
			return v.PlayedOn != nil
		}
	}
	return false
}

func (d *fakeDB) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// blockOpens makes opens hang until their context ends, like a pool with
// no free connection.
func (d *fakeDB) blockOpens(on bool) {
	d.mu.Lock()
	d.blocked = on
	d.mu.Unlock()
}

func (d *fakeDB) opener() Opener {
	return func(ctx context.Context) (Store, error) {
		d.mu.Lock()
		blocked := d.blocked
		if !blocked {
			d.opens++
		}
		d.mu.Unlock()
		if blocked {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &fakeStore{db: d}, nil
	}
}

// fail consumes one injected failure; callers hold d.mu.
func (d *fakeDB) fail() bool {
	if d.failures > 0 {
		d.failures--
		return true
	}
	return false
}

type fakeStore struct {
	db *fakeDB
}

func (s *fakeStore) NextUnplayed(_ context.Context, room string) (*model.Video, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.fail() {
		return nil, errStoreDown
	}
	var queue []*model.Video
	for _, v := range s.db.videos {
		if !v.Played && v.RoomKey() == room {
			queue = append(queue, v)
		}
	}
	if len(queue) == 0 {
		return nil, nil
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].AddedOn.Before(queue[j].AddedOn) })
	cp := *queue[0]
	return &cp, nil
}

func (s *fakeStore) MarkStarted(_ context.Context, id uint64, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, v := range s.db.videos {
		if v.ID == id {
			t := at
			v.PlayedOn = &t
		}
	}
	return nil
}

func (s *fakeStore) MarkPlayed(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.markFailures > 0 {
		s.db.markFailures--
		return errStoreDown
	}
	for _, v := range s.db.videos {
		if v.ID == id && !v.Played {
			v.Played = true
			s.db.played = append(s.db.played, id)
		}
	}
	return nil
}

func (s *fakeStore) Close() error { return nil }

// recorder collects notifier events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) finished(id uint64) (Event, bool) {
	for _, ev := range r.ofType(EventFinished) {
		if ev.VideoID == id {
			return ev, true
		}
	}
	return Event{}, false
}

type fakeRooms struct {
	names []string
	err   error
}

func (f fakeRooms) ListRooms(context.Context) ([]string, error) { return f.names, f.err }

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testOptions() Options {
	return Options{
		Tick:        10 * time.Millisecond,
		IdleBackoff: 20 * time.Millisecond,
		MaxRetries:  3,
		ResetSkip:   true,
		OpenTimeout: 20 * time.Millisecond,
	}
}

// eventually polls cond until it holds or timeout passes.
func eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// gatedTable wraps a MemoryTable; Set fails for keys in fail and waits on
// gate for keys in hold.
type gatedTable struct {
	*MemoryTable
	mu      sync.Mutex
	fail    map[string]bool
	hold    map[string]bool
	gate    chan struct{}
	once    sync.Once
	entered chan string
}

func (t *gatedTable) release() { t.once.Do(func() { close(t.gate) }) }

func newGatedTable() *gatedTable {
	return &gatedTable{
		MemoryTable: NewMemoryTable(),
		fail:        map[string]bool{},
		hold:        map[string]bool{},
		gate:        make(chan struct{}),
		entered:     make(chan string, 8),
	}
}

func (t *gatedTable) setFailing(key string, on bool) {
	t.mu.Lock()
	t.fail[key] = on
	t.mu.Unlock()
}

func (t *gatedTable) Set(ctx context.Context, room string, cmd Command) error {
	t.mu.Lock()
	fail, hold := t.fail[room], t.hold[room]
	t.mu.Unlock()
	if fail {
		return errStoreDown
	}
	if hold {
		t.entered <- room
		<-t.gate
	}
	return t.MemoryTable.Set(ctx, room, cmd)
}
