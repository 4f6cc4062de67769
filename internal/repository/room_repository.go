package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/youkebox/internal/model"
)

// RoomRepo provides access to the rooms table.
type RoomRepo struct {
	db *sql.DB
}

func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// NormalizeRoom trims and lower-cases a room name the way it is stored.
func NormalizeRoom(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Create inserts a room and returns the stored row.  A duplicate name
// returns ErrRoomExists.
func (r *RoomRepo) Create(ctx context.Context, name string) (*model.Room, error) {
	name = NormalizeRoom(name)
	res, err := r.db.ExecContext(ctx, `INSERT INTO rooms (name) VALUES (?)`, name)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrRoomExists
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID returns a room or ErrNotFound.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
	var room model.Room
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM rooms WHERE id = ?`, id).
		Scan(&room.ID, &room.Name, &room.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// Exists reports whether a room with the given name exists.
func (r *RoomRepo) Exists(ctx context.Context, name string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rooms WHERE name = ?`, NormalizeRoom(name)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns all rooms ordered by name.  A non-empty query keeps only the
// rooms whose name contains it.
func (r *RoomRepo) List(ctx context.Context, query string) ([]model.Room, error) {
	q := `SELECT id, name, created_at FROM rooms`
	var args []any
	if query = NormalizeRoom(query); query != "" {
		q += ` WHERE name LIKE ?`
		args = append(args, "%"+query+"%")
	}
	q += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Room{}
	for rows.Next() {
		var room model.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRooms returns every room name.  The playlist listener calls it once
// at startup.
func (r *RoomRepo) ListRooms(ctx context.Context) ([]string, error) {
	rooms, err := r.List(ctx, "")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rooms))
	for _, room := range rooms {
		names = append(names, room.Name)
	}
	return names, nil
}
