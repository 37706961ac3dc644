package databasesql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/TechXTT/dbsession"
)

// Stmt is a dbsession.Stmt over *sql.Stmt. Bindings are kept client side and
// passed as arguments on every execution.
type Stmt struct {
	stmt      *sql.Stmt
	converter driver.ValueConverter
	args      []any
	batch     [][]any
}

var _ dbsession.Stmt = (*Stmt)(nil)

// NumInput implements dbsession.Stmt. database/sql does not expose the
// placeholder count, so arity is checked by the driver at execution time.
func (s *Stmt) NumInput() int {
	return -1
}

// Bind implements dbsession.Stmt.
func (s *Stmt) Bind(pos int, value any) error {
	if pos < 1 {
		return fmt.Errorf("invalid placeholder position %d", pos)
	}
	if value != nil {
		if _, err := s.converter.ConvertValue(value); err != nil {
			return err
		}
	}
	for len(s.args) < pos {
		s.args = append(s.args, nil)
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
	res, err := s.stmt.ExecContext(ctx, s.args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Exec implements dbsession.Stmt. database/sql cannot tell whether a statement
// run through Exec produced rows, so hasResultSet is always false.
func (s *Stmt) Exec(ctx context.Context) (int64, bool, error) {
	n, err := s.ExecUpdate(ctx)
	return n, false, err
}

// Query implements dbsession.Stmt. A result without columns counts as no
// result set.
func (s *Stmt) Query(ctx context.Context) (dbsession.Cursor, error) {
	rows, err := s.stmt.QueryContext(ctx, s.args...)
	if err != nil {
		return nil, err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	if len(cols) == 0 {
		return nil, rows.Close()
	}
	return &Cursor{rows: rows, width: len(cols)}, nil
}

// AddBatch implements dbsession.Stmt.
func (s *Stmt) AddBatch() error {
	s.batch = append(s.batch, append([]any(nil), s.args...))
	return nil
}

// ExecBatch implements dbsession.Stmt. The buffered argument sets are executed
// in order; the first failure stops the run. The buffer is emptied either way.
func (s *Stmt) ExecBatch(ctx context.Context) ([]int64, error) {
	batch := s.batch
	s.batch = nil

	counts := make([]int64, 0, len(batch))
	for i, args := range batch {
		res, err := s.stmt.ExecContext(ctx, args...)
		if err != nil {
			return counts, fmt.Errorf("batch item %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = -1
		}
		counts = append(counts, n)
	}
	return counts, nil
}

// Close implements dbsession.Stmt. *sql.Stmt takes no context to close.
func (s *Stmt) Close(context.Context) error {
	s.batch = nil
	return s.stmt.Close()
}

// Cursor is a dbsession.Cursor over *sql.Rows. Every column is scanned into a
// sql.NullString, which applies database/sql's own string conversion.
type Cursor struct {
	rows  *sql.Rows
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
	row := make([]sql.NullString, c.width)
	dest := make([]any, c.width)
	for i := range row {
		dest[i] = &row[i]
	}
	if err := c.rows.Scan(dest...); err != nil {
		c.err = err
		return false
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
	return c.rows.Close()
}
