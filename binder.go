package dbsession

import "fmt"

// bind replaces the statement's bindings with req.Args, setting args[i] on
// placeholder i+1. No type inspection happens here; the statement decides what
// it accepts. When the statement knows its placeholder count, any mismatch
// fails before execution instead of running with unbound placeholders.
func bind(op string, stmt Stmt, req StatementRequest) error {
	return bindArity(op, stmt, req, stmt.NumInput())
}

// bindArity is bind with an explicit placeholder count; -1 skips the check.
func bindArity(op string, stmt Stmt, req StatementRequest, n int) error {
	if n >= 0 && len(req.Args) != n {
		return newError(op, ErrBind, req,
			fmt.Errorf("statement has %d placeholders, got %d values", n, len(req.Args)))
	}
	if err := stmt.ClearBindings(); err != nil {
		return newError(op, ErrBind, req, err)
	}
	for i, v := range req.Args {
		if err := stmt.Bind(i+1, v); err != nil {
			return newError(op, ErrBind, req, fmt.Errorf("placeholder %d: %w", i+1, err))
		}
	}
	return nil
}
