package dbsession

import (
	"context"
	"fmt"
)

// ExecuteBatch runs sql once per argument set and commits every commitInterval
// items, plus once more for a trailing partial batch. It returns the number of
// argument sets processed.
//
// A nil argument set re-adds the statement with its previous bindings.
//
// On failure the error is returned at once. Checkpoints committed before the
// failure stay committed; the rest of the transaction is left to the caller.
func (s *Session) ExecuteBatch(ctx context.Context, sql string, commitInterval int, argSets [][]any) (int, error) {
	return s.Run(ctx, BatchJob{SQL: sql, CommitInterval: commitInterval, ArgSets: argSets})
}

// Run executes job. See ExecuteBatch.
func (s *Session) Run(ctx context.Context, job BatchJob) (total int, err error) {
	const op = "executeBatch"
	req := StatementRequest{SQL: job.SQL}
	if err := s.checkOpen(op); err != nil {
		return 0, err
	}
	if job.CommitInterval <= 0 {
		return 0, s.fail(ctx, op, req, newError(op, ErrInvalidArgument, req,
			fmt.Errorf("commit interval must be positive: %d", job.CommitInterval)))
	}

	ctx, span := s.inst.start(ctx, "ExecuteBatch", job.SQL)
	defer func() { end(span, err) }()
	s.log.Debug(ctx, op, "session", s.id, "sql", job.SQL, "batch_size", len(job.ArgSets),
		"commit_interval", job.CommitInterval)

	stmt, release, err := s.prepare(ctx, op, ErrExecution, req)
	if err != nil {
		return 0, s.fail(ctx, op, req, err)
	}
	defer release(&err)

	// A statement has one placeholder count. When the driver cannot report
	// it, the first bound set fixes it for the rest of the batch.
	arity := stmt.NumInput()
	pending := 0
	for _, args := range job.ArgSets {
		total++
		pending++

		item := StatementRequest{SQL: job.SQL, Args: args}
		if args != nil {
			if arity < 0 {
				arity = len(args)
			}
			if err := bindArity(op, stmt, item, arity); err != nil {
				return total, s.fail(ctx, op, item, err)
			}
		}
		if err := stmt.AddBatch(); err != nil {
			return total, s.fail(ctx, op, item, newError(op, ErrExecution, item, err))
		}

		if total%job.CommitInterval == 0 {
			s.log.Debug(ctx, op+" commit", "session", s.id, "sql", job.SQL, "at", total)
			if err := s.flush(ctx, op, stmt, req, pending); err != nil {
				return total, err
			}
			pending = 0
		}
	}

	if pending > 0 {
		s.log.Debug(ctx, op+" final commit", "session", s.id, "sql", job.SQL, "at", total)
		if err := s.flush(ctx, op, stmt, req, pending); err != nil {
			return total, err
		}
	}

	s.log.Debug(ctx, op+" done", "session", s.id, "sql", job.SQL, "result", total)
	return total, nil
}

// flush sends the batch buffer and commits it as one checkpoint.
func (s *Session) flush(ctx context.Context, op string, stmt Stmt, req StatementRequest, pending int) error {
	counts, err := stmt.ExecBatch(ctx)
	if err != nil {
		return s.fail(ctx, op, req, newError(op, ErrExecution, req, err))
	}
	s.countStatements(ctx, op, int64(pending))
	var affected int64
	for _, c := range counts {
		if c > 0 {
			affected += c
		}
	}
	s.countRows(ctx, op, affected)

	return s.commit(ctx, op+" commit")
}
