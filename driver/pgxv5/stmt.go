package pgxv5

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/TechXTT/dbsession"
)

// Stmt is a named prepared statement. Bindings are kept client side.
type Stmt struct {
	conn  *Conn
	name  string
	desc  *pgconn.StatementDescription
	args  []any
	batch [][]any
}

var _ dbsession.Stmt = (*Stmt)(nil)

// NumInput implements dbsession.Stmt.
func (s *Stmt) NumInput() int {
	return len(s.desc.ParamOIDs)
}

// Bind implements dbsession.Stmt. Values are encoded by pgx at execution time.
func (s *Stmt) Bind(pos int, value any) error {
	if pos < 1 || pos > len(s.desc.ParamOIDs) {
		return fmt.Errorf("placeholder %d out of range 1..%d", pos, len(s.desc.ParamOIDs))
	}
	if s.args == nil {
		s.args = make([]any, len(s.desc.ParamOIDs))
	}
	s.args[pos-1] = value
	return nil
}

// ClearBindings implements dbsession.Stmt.
func (s *Stmt) ClearBindings() error {
	s.args = nil
	return nil
}

// ExecUpdate implements dbsession.Stmt.
func (s *Stmt) ExecUpdate(ctx context.Context) (int64, error) {
	tag, err := s.conn.executor().Exec(ctx, s.name, s.args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Exec implements dbsession.Stmt. The statement has a result set when its
// description carries fields.
func (s *Stmt) Exec(ctx context.Context) (int64, bool, error) {
	tag, err := s.conn.executor().Exec(ctx, s.name, s.args...)
	if err != nil {
		return 0, false, err
	}
	return tag.RowsAffected(), len(s.desc.Fields) > 0, nil
}

// Query implements dbsession.Stmt. Statements without fields are executed and
// yield a nil Cursor.
func (s *Stmt) Query(ctx context.Context) (dbsession.Cursor, error) {
	if len(s.desc.Fields) == 0 {
		_, err := s.conn.executor().Exec(ctx, s.name, s.args...)
		return nil, err
	}
	rows, err := s.conn.executor().Query(ctx, s.name, s.args...)
	if err != nil {
		return nil, err
	}
	return &Cursor{rows: rows, width: len(s.desc.Fields)}, nil
}

// AddBatch implements dbsession.Stmt.
func (s *Stmt) AddBatch() error {
	s.batch = append(s.batch, append([]any(nil), s.args...))
	return nil
}

// ExecBatch implements dbsession.Stmt. The buffer goes out as one pgx.Batch
// and is emptied either way.
func (s *Stmt) ExecBatch(ctx context.Context) (counts []int64, err error) {
	queued := s.batch
	s.batch = nil
	if len(queued) == 0 {
		return nil, nil
	}

	b := &pgx.Batch{}
	for _, args := range queued {
		b.Queue(s.name, args...)
	}

	br := s.conn.executor().SendBatch(ctx, b)
	defer func() {
		if cerr := br.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	counts = make([]int64, 0, len(queued))
	for i := range queued {
		tag, err := br.Exec()
		if err != nil {
			return counts, fmt.Errorf("batch item %d: %w", i, err)
		}
		counts = append(counts, tag.RowsAffected())
	}
	return counts, nil
}

// Close implements dbsession.Stmt by deallocating the statement.
func (s *Stmt) Close(ctx context.Context) error {
	s.batch = nil
	return s.conn.conn.Deallocate(ctx, s.name)
}

// Cursor is a dbsession.Cursor over pgx.Rows.
type Cursor struct {
	rows  pgx.Rows
	width int
	row   []sql.NullString
	err   error
}

var _ dbsession.Cursor = (*Cursor)(nil)

// ColumnCount implements dbsession.Cursor.
func (c *Cursor) ColumnCount() (int, error) {
	return c.width, nil
}

// Next implements dbsession.Cursor.
func (c *Cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	values, err := c.rows.Values()
	if err != nil {
		c.err = err
		return false
	}
	row := make([]sql.NullString, c.width)
	for i := 0; i < len(values) && i < c.width; i++ {
		row[i] = Text(values[i])
	}
	c.row = row
	return true
}

// StringValue implements dbsession.Cursor.
func (c *Cursor) StringValue(col int) sql.NullString {
	if col < 0 || col >= len(c.row) {
		return sql.NullString{}
	}
	return c.row[col]
}

// Err implements dbsession.Cursor.
func (c *Cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

// Close implements dbsession.Cursor.
func (c *Cursor) Close() error {
	c.rows.Close()
	return c.rows.Err()
}

// Text projects a decoded pgx value to its string form. driver.Valuer types
// (pgtype.Numeric, pgtype.Interval, ...) are asked for their driver value
// first.
func Text(v any) sql.NullString {
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return sql.NullString{String: fmt.Sprint(v), Valid: true}
		}
		v = dv
	}

	switch x := v.(type) {
	case nil:
		return sql.NullString{}
	case string:
		return sql.NullString{String: x, Valid: true}
	case []byte:
		return sql.NullString{String: string(x), Valid: true}
	case [16]byte:
		return sql.NullString{String: uuid.UUID(x).String(), Valid: true}
	case bool:
		return sql.NullString{String: strconv.FormatBool(x), Valid: true}
	case time.Time:
		return sql.NullString{String: x.Format(time.RFC3339Nano), Valid: true}
	case fmt.Stringer:
		return sql.NullString{String: x.String(), Valid: true}
	default:
		return sql.NullString{String: fmt.Sprint(x), Valid: true}
	}
}
