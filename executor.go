package dbsession

import "context"

// ExecuteUpdate runs sql once and returns the affected-row count reported by
// the driver.
func (s *Session) ExecuteUpdate(ctx context.Context, sql string, args ...any) (n int64, err error) {
	const op = "executeUpdate"
	req := StatementRequest{SQL: sql, Args: args}
	if err := s.checkOpen(op); err != nil {
		return 0, err
	}

	ctx, span := s.inst.start(ctx, "ExecuteUpdate", sql)
	defer func() { end(span, err) }()
	s.log.Debug(ctx, op, "session", s.id, "sql", sql, "args", args)

	stmt, release, err := s.prepare(ctx, op, ErrExecution, req)
	if err != nil {
		return 0, s.fail(ctx, op, req, err)
	}
	defer release(&err)

	if err := bind(op, stmt, req); err != nil {
		return 0, s.fail(ctx, op, req, err)
	}
	n, err = stmt.ExecUpdate(ctx)
	if err != nil {
		return 0, s.fail(ctx, op, req, newError(op, ErrExecution, req, err))
	}

	s.countStatements(ctx, op, 1)
	s.countRows(ctx, op, n)
	s.log.Debug(ctx, op+" done", "session", s.id, "sql", sql, "result", n)
	return n, nil
}

// Execute runs sql generically. For statements that produce a result set it
// returns 0: no row count applies, and the rows are not read. Use
// ExecuteQuery to get them.
func (s *Session) Execute(ctx context.Context, sql string, args ...any) (n int64, err error) {
	const op = "execute"
	req := StatementRequest{SQL: sql, Args: args}
	if err := s.checkOpen(op); err != nil {
		return 0, err
	}

	ctx, span := s.inst.start(ctx, "Execute", sql)
	defer func() { end(span, err) }()
	s.log.Debug(ctx, op, "session", s.id, "sql", sql, "args", args)

	stmt, release, err := s.prepare(ctx, op, ErrExecution, req)
	if err != nil {
		return 0, s.fail(ctx, op, req, err)
	}
	defer release(&err)

	if err := bind(op, stmt, req); err != nil {
		return 0, s.fail(ctx, op, req, err)
	}
	count, hasResultSet, err := stmt.Exec(ctx)
	if err != nil {
		return 0, s.fail(ctx, op, req, newError(op, ErrExecution, req, err))
	}

	s.countStatements(ctx, op, 1)
	if hasResultSet {
		s.log.Debug(ctx, op+" done", "session", s.id, "sql", sql, "result_set", true)
		return 0, nil
	}
	s.countRows(ctx, op, count)
	s.log.Debug(ctx, op+" done", "session", s.id, "sql", sql, "result", count)
	return count, nil
}
