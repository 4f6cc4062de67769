package player

import (
	"context"
	"strings"
	"sync"
)

// Command is the instruction a room worker polls for while a video plays.
type Command string

const (
	Play Command = "play"
	Skip Command = "skip"
)

// NoRoom is the key of the catch-all queue holding videos without a room.
const NoRoom = ""

// Key normalizes a room name into a command table key. Room names are
// stored lower-case; the empty key is the no-room queue.
func Key(room string) string {
	return strings.ToLower(strings.TrimSpace(room))
}

// CommandTable maps room keys to the current command. Implementations must
// be safe for concurrent use and must never hold a lock across a call that
// blocks on I/O of the caller.
type CommandTable interface {
	// Get returns the command for room and whether an entry exists.
	Get(ctx context.Context, room string) (Command, bool, error)
	// Set upserts the command for room.
	Set(ctx context.Context, room string, cmd Command) error
	// Initialize stores Play for room unless an entry already exists.
	Initialize(ctx context.Context, room string) error
	// SetIfPresent updates room only when it already has an entry and
	// reports whether it did.
	SetIfPresent(ctx context.Context, room string, cmd Command) (bool, error)
}

// MemoryTable is the in-process CommandTable. Every operation holds the
// mutex only for the single map read or write.
type MemoryTable struct {
	mu       sync.Mutex
	commands map[string]Command
}

func NewMemoryTable() *MemoryTable {
	return &MemoryTable{commands: make(map[string]Command)}
}

func (t *MemoryTable) Get(_ context.Context, room string) (Command, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cmd, ok := t.commands[room]
	return cmd, ok, nil
}

func (t *MemoryTable) Set(_ context.Context, room string, cmd Command) error {
	t.mu.Lock()
	t.commands[room] = cmd
	t.mu.Unlock()
	return nil
}

func (t *MemoryTable) Initialize(_ context.Context, room string) error {
	t.mu.Lock()
	if _, ok := t.commands[room]; !ok {
		t.commands[room] = Play
	}
	t.mu.Unlock()
	return nil
}

func (t *MemoryTable) SetIfPresent(_ context.Context, room string, cmd Command) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.commands[room]; !ok {
		return false, nil
	}
	t.commands[room] = cmd
	return true, nil
}
