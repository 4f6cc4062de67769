package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/youkebox/internal/model"
)

const videoColumns = `id, video_id, title, description, duration, room, played, added_on, played_on`

// NewVideo is the data needed to queue a video.
type NewVideo struct {
	VideoID     string
	Title       string
	Description *string
	Duration    string
}

// VideoRepo provides access to the videos table.  Room arguments use the
// stored lower-case form; the empty room addresses videos with a NULL room.
type VideoRepo struct {
	db   querier
	pool *sql.DB // nil when bound to a single connection
}

// NewVideoRepo returns a VideoRepo on the shared connection pool.
func NewVideoRepo(db *sql.DB) *VideoRepo { return &VideoRepo{db: db, pool: db} }

// roomFilter returns the WHERE fragment and arguments selecting room.
func roomFilter(room string) (string, []any) {
	if room == "" {
		return "room IS NULL", nil
	}
	return "room = ?", []any{NormalizeRoom(room)}
}

func scanVideo(sc interface{ Scan(...any) error }) (*model.Video, error) {
	var (
		v        model.Video
		desc     sql.NullString
		room     sql.NullString
		playedOn sql.NullTime
	)
	if err := sc.Scan(&v.ID, &v.VideoID, &v.Title, &desc, &v.Duration, &room, &v.Played, &v.AddedOn, &playedOn); err != nil {
		return nil, err
	}
	if desc.Valid {
		v.Description = &desc.String
	}
	if room.Valid {
		v.Room = &room.String
	}
	if playedOn.Valid {
		v.PlayedOn = &playedOn.Time
	}
	return &v, nil
}

// NextUnplayed returns the oldest unplayed video of room, or nil when the
// queue is empty.
func (r *VideoRepo) NextUnplayed(ctx context.Context, room string) (*model.Video, error) {
	where, args := roomFilter(room)
	q := `SELECT ` + videoColumns + ` FROM videos
	      WHERE played = FALSE AND ` + where + `
	      ORDER BY added_on, id
	      LIMIT 1`
	v, err := scanVideo(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// MarkStarted records when playback of a video began.
func (r *VideoRepo) MarkStarted(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE videos SET played_on = ? WHERE id = ?`, at.UTC(), id)
	return err
}

// MarkPlayed flags a video as played.  Marking an already played video is
// not an error.
func (r *VideoRepo) MarkPlayed(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE videos SET played = TRUE WHERE id = ?`, id)
	return err
}

// GetByID returns a video or ErrNotFound.
func (r *VideoRepo) GetByID(ctx context.Context, id uint64) (*model.Video, error) {
	v, err := scanVideo(r.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

// Playlist returns the unplayed videos of room, oldest first.  The head
// has a non-NULL played_on while it is playing.
func (r *VideoRepo) Playlist(ctx context.Context, room string) ([]model.Video, error) {
	where, args := roomFilter(room)
	q := `SELECT ` + videoColumns + ` FROM videos
	      WHERE played = FALSE AND ` + where + `
	      ORDER BY added_on, id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateMany queues videos in room inside one transaction and returns the
// stored rows in insertion order.
func (r *VideoRepo) CreateMany(ctx context.Context, room string, items []NewVideo) ([]model.Video, error) {
	if len(items) == 0 {
		return []model.Video{}, nil
	}
	if r.pool == nil {
		return nil, errors.New("create videos: repository is bound to a single connection")
	}
	var roomArg any
	if room = NormalizeRoom(room); room != "" {
		roomArg = room
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]uint64, 0, len(items))
	for _, it := range items {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO videos (video_id, title, description, duration, room, played, added_on)
			 VALUES (?, ?, ?, ?, ?, FALSE, UTC_TIMESTAMP(6))`,
			it.VideoID, it.Title, it.Description, it.Duration, roomArg)
		if err != nil {
			return nil, fmt.Errorf("insert video %s: %w", it.VideoID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint64(id))
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	out := make([]model.Video, 0, len(ids))
	for _, id := range ids {
		v, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// VideoStore is a VideoRepo bound to one dedicated connection.  Each
// playlist worker owns one so workers never share a session.
type VideoStore struct {
	*VideoRepo
	conn    *sql.Conn
	release func()
}

// Close returns the connection to the pool.
func (s *VideoStore) Close() error {
	err := s.conn.Close()
	if s.release != nil {
		s.release()
		s.release = nil
	}
	return err
}
