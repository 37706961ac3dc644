package dbsession

import (
	"context"
	"database/sql"
	"fmt"
)

// ResultRow is one materialized row, every column projected to its string
// form. Invalid entries are SQL NULLs.
type ResultRow []sql.NullString

// ExecuteQuery runs sql as a query and materializes at most maxRows rows.
// Rows past maxRows are never fetched.
//
// A nil result means either that the statement produced no result set or that
// it produced zero rows; the two cases are not distinguished.
func (s *Session) ExecuteQuery(ctx context.Context, sql string, maxRows int, args ...any) (rows []ResultRow, err error) {
	const op = "executeQuery"
	req := StatementRequest{SQL: sql, Args: args}
	if err := s.checkOpen(op); err != nil {
		return nil, err
	}
	if maxRows < 0 {
		return nil, s.fail(ctx, op, req, newError(op, ErrInvalidArgument, req,
			fmt.Errorf("maxRows must not be negative: %d", maxRows)))
	}

	ctx, span := s.inst.start(ctx, "ExecuteQuery", sql)
	defer func() { end(span, err) }()
	s.log.Debug(ctx, op, "session", s.id, "sql", sql, "args", args, "max_rows", maxRows)

	stmt, release, err := s.prepare(ctx, op, ErrQuery, req)
	if err != nil {
		return nil, s.fail(ctx, op, req, err)
	}
	defer release(&err)

	if err := bind(op, stmt, req); err != nil {
		return nil, s.fail(ctx, op, req, err)
	}
	cur, err := stmt.Query(ctx)
	if err != nil {
		return nil, s.fail(ctx, op, req, newError(op, ErrQuery, req, err))
	}
	s.countStatements(ctx, op, 1)
	if cur == nil {
		s.log.Debug(ctx, op+" no results", "session", s.id, "sql", sql)
		return nil, nil
	}

	rows, err = materialize(cur, maxRows)
	if cerr := cur.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return nil, s.fail(ctx, op, req, newError(op, ErrQuery, req, err))
	}

	if rows == nil {
		s.log.Debug(ctx, op+" no results", "session", s.id, "sql", sql)
		return nil, nil
	}
	s.countRows(ctx, op, int64(len(rows)))
	s.log.Debug(ctx, op+" done", "session", s.id, "sql", sql, "rows", len(rows))
	return rows, nil
}

func materialize(cur Cursor, maxRows int) ([]ResultRow, error) {
	width, err := cur.ColumnCount()
	if err != nil {
		return nil, err
	}

	var rows []ResultRow
	for len(rows) < maxRows && cur.Next() {
		row := make(ResultRow, width)
		for i := range row {
			row[i] = cur.StringValue(i)
		}
		rows = append(rows, row)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
