package dbsession_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/TechXTT/dbsession"
)

// fakeConn records every call the session makes.
type fakeConn struct {
	autoCommit bool
	calls      []string

	commits   int
	rollbacks int
	closed    int
	prepared  []*fakeStmt

	numInput int // placeholder count reported by statements, -1 = unknown

	prepareErr     error
	commitErr      error
	failCommitAt   int // 1-based commit call that fails, 0 = never
	rollbackErr    error
	closeErr       error
	setAutoErr     error
	execErr        error
	queryErr       error
	bindErr        error
	stmtCloseErr   error
	failBatchAt    int // 1-based ExecBatch call that fails, 0 = never
	updateCount    int64
	hasResultSet   bool
	noResultSet    bool
	resultRows     [][]sql.NullString
	resultCols     int
	cursorErr      error
	flushedBatches [][][]any
	lastCursor     *fakeCursor
}

func newFakeConn() *fakeConn {
	return &fakeConn{autoCommit: true, numInput: -1}
}

var _ dbsession.Conn = (*fakeConn)(nil)

func (c *fakeConn) Prepare(_ context.Context, query string) (dbsession.Stmt, error) {
	c.calls = append(c.calls, "prepare")
	if c.prepareErr != nil {
		return nil, c.prepareErr
	}
	st := &fakeStmt{conn: c, query: query}
	c.prepared = append(c.prepared, st)
	return st, nil
}

func (c *fakeConn) Commit(context.Context) error {
	c.calls = append(c.calls, "commit")
	if c.commitErr != nil {
		return c.commitErr
	}
	if c.failCommitAt > 0 && c.commits+1 == c.failCommitAt {
		c.commits++
		return errors.New("commit refused")
	}
	c.commits++
	return nil
}

func (c *fakeConn) Rollback(context.Context) error {
	c.calls = append(c.calls, "rollback")
	c.rollbacks++
	return c.rollbackErr
}

func (c *fakeConn) Close(context.Context) error {
	c.calls = append(c.calls, "close")
	c.closed++
	return c.closeErr
}

func (c *fakeConn) AutoCommit() bool { return c.autoCommit }

func (c *fakeConn) SetAutoCommit(_ context.Context, on bool) error {
	if c.setAutoErr != nil {
		return c.setAutoErr
	}
	c.autoCommit = on
	return nil
}

// openStatements counts statements that were prepared but never closed.
func (c *fakeConn) openStatements() int {
	n := 0
	for _, st := range c.prepared {
		if st.closed == 0 {
			n++
		}
	}
	return n
}

type fakeStmt struct {
	conn    *fakeConn
	query   string
	args    map[int]any
	batch   [][]any
	flushes  int
	closed   int
	closeCtx context.Context
}

func (s *fakeStmt) NumInput() int { return s.conn.numInput }

func (s *fakeStmt) Bind(pos int, value any) error {
	if s.conn.bindErr != nil {
		return s.conn.bindErr
	}
	if s.args == nil {
		s.args = map[int]any{}
	}
	s.args[pos] = value
	return nil
}

func (s *fakeStmt) ClearBindings() error {
	s.args = nil
	return nil
}

func (s *fakeStmt) bound() []any {
	out := make([]any, len(s.args))
	for pos, v := range s.args {
		out[pos-1] = v
	}
	return out
}

func (s *fakeStmt) ExecUpdate(context.Context) (int64, error) {
	if s.conn.execErr != nil {
		return 0, s.conn.execErr
	}
	return s.conn.updateCount, nil
}

func (s *fakeStmt) Exec(context.Context) (int64, bool, error) {
	if s.conn.execErr != nil {
		return 0, false, s.conn.execErr
	}
	return s.conn.updateCount, s.conn.hasResultSet, nil
}

func (s *fakeStmt) Query(context.Context) (dbsession.Cursor, error) {
	if s.conn.queryErr != nil {
		return nil, s.conn.queryErr
	}
	if s.conn.noResultSet {
		return nil, nil
	}
	s.conn.lastCursor = &fakeCursor{rows: s.conn.resultRows, width: s.conn.resultCols, pos: -1, err: s.conn.cursorErr}
	return s.conn.lastCursor, nil
}

func (s *fakeStmt) AddBatch() error {
	s.batch = append(s.batch, s.bound())
	return nil
}

func (s *fakeStmt) ExecBatch(context.Context) ([]int64, error) {
	s.flushes++
	s.conn.calls = append(s.conn.calls, fmt.Sprintf("flush(%d)", len(s.batch)))
	batch := s.batch
	s.batch = nil
	if s.conn.failBatchAt > 0 && s.flushes == s.conn.failBatchAt {
		return nil, errors.New("batch rejected")
	}
	s.conn.flushedBatches = append(s.conn.flushedBatches, batch)
	counts := make([]int64, len(batch))
	for i := range counts {
		counts[i] = 1
	}
	return counts, nil
}

func (s *fakeStmt) Close(ctx context.Context) error {
	s.closed++
	s.closeCtx = ctx
	return s.conn.stmtCloseErr
}

type fakeCursor struct {
	rows    [][]sql.NullString
	width   int
	pos     int
	fetched int
	err     error
	closed  bool
}

func (c *fakeCursor) ColumnCount() (int, error) { return c.width, nil }

func (c *fakeCursor) Next() bool {
	if c.pos+1 >= len(c.rows) {
		return false
	}
	c.pos++
	c.fetched++
	return true
}

func (c *fakeCursor) StringValue(col int) sql.NullString { return c.rows[c.pos][col] }

func (c *fakeCursor) Err() error { return c.err }

func (c *fakeCursor) Close() error {
	c.closed = true
	return nil
}

// recordingLogger keeps every message.
type recordingLogger struct {
	debug []string
	error []string
}

func (l *recordingLogger) Debug(_ context.Context, msg string, _ ...any) {
	l.debug = append(l.debug, msg)
}

func (l *recordingLogger) Error(_ context.Context, msg string, _ ...any) {
	l.error = append(l.error, msg)
}

func str(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}
