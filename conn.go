package dbsession

import (
	"context"
	"database/sql"
)

// Conn is a live database connection owned by exactly one Session.
//
// Implementations live under driver/: databasesql wraps a dedicated *sql.Conn,
// pgxv5 wraps a *pgx.Conn.
type Conn interface {
	// Prepare creates a statement that stays valid across Commit and Rollback.
	Prepare(ctx context.Context, query string) (Stmt, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// Close releases the connection. Uncommitted work is discarded.
	Close(ctx context.Context) error

	AutoCommit() bool
	SetAutoCommit(ctx context.Context, on bool) error
}

// Stmt is a prepared statement holding positional bindings and a batch buffer.
type Stmt interface {
	// NumInput returns the number of placeholders, or -1 if the driver
	// cannot tell.
	NumInput() int

	// Bind sets placeholder pos (1-indexed). A nil value binds NULL.
	Bind(pos int, value any) error

	// ClearBindings drops every binding, so values from an earlier argument
	// set never leak into the next one.
	ClearBindings() error

	ExecUpdate(ctx context.Context) (int64, error)

	// Exec runs the statement generically. hasResultSet reports whether the
	// statement produced rows, in which case count is meaningless.
	Exec(ctx context.Context) (count int64, hasResultSet bool, err error)

	// Query returns a nil Cursor when the statement produces no result set.
	Query(ctx context.Context) (Cursor, error)

	// AddBatch snapshots the current bindings into the batch buffer.
	AddBatch() error

	// ExecBatch sends the batch buffer and empties it.
	ExecBatch(ctx context.Context) ([]int64, error)

	Close(ctx context.Context) error
}

// Cursor iterates a result set one row at a time.
type Cursor interface {
	ColumnCount() (int, error)
	Next() bool
	// StringValue returns column col (0-indexed) of the current row.
	StringValue(col int) sql.NullString
	Err() error
	Close() error
}
