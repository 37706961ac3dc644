package dbsession

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a Session matches exactly one of these
// with errors.Is.
var (
	ErrInvalidConnection = errors.New("invalid connection")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrBind              = errors.New("bind error")
	ErrExecution         = errors.New("execution error")
	ErrQuery             = errors.New("query error")
	ErrTransaction       = errors.New("transaction error")
)

// Error carries the failed operation, the statement that was running and the
// underlying driver error.
type Error struct {
	Op      string
	Kind    error
	Request StatementRequest
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Request.SQL != "" {
		msg += fmt.Sprintf(" (sql=%q args=%v)", e.Request.SQL, e.Request.Args)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind error, req StatementRequest, err error) *Error {
	return &Error{Op: op, Kind: kind, Request: req, Err: err}
}
