package repository

import (
	"context"
	"database/sql"
)

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx so the same
// repository code can run on the shared pool or on a dedicated connection.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
