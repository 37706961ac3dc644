// Package dbsession runs statements over one database connection with explicit
// transaction boundaries. Autocommit is off for the whole life of a Session:
// nothing is durable until Commit, a checkpoint inside ExecuteBatch, or Close.
//
// A Session is not safe for concurrent use. Callers must serialize access.
package dbsession

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StatementRequest is one SQL text with its positional bind values. A nil Args
// means no values were supplied.
type StatementRequest struct {
	SQL  string
	Args []any
}

// BatchJob runs SQL once per argument set, committing every CommitInterval items.
type BatchJob struct {
	SQL            string
	CommitInterval int
	ArgSets        [][]any
}

// Session owns a Conn until Close.
type Session struct {
	id     string
	conn   Conn
	log    Logger
	inst   *instruments
	closed bool
}

// Open takes ownership of conn and turns autocommit off.
func Open(ctx context.Context, conn Conn, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if conn == nil {
		o.logger.Error(ctx, "open: connection is nil")
		return nil, newError("open", ErrInvalidConnection, StatementRequest{}, nil)
	}

	inst, err := newInstruments(o)
	if err != nil {
		return nil, newError("open", ErrInvalidArgument, StatementRequest{}, err)
	}

	s := &Session{
		id:   uuid.NewString(),
		conn: conn,
		log:  o.logger,
		inst: inst,
	}

	if conn.AutoCommit() {
		if err := conn.SetAutoCommit(ctx, false); err != nil {
			s.log.Error(ctx, "open: disable autocommit", "session", s.id, "err", err)
			return nil, newError("open", ErrInvalidConnection, StatementRequest{}, err)
		}
	}

	s.log.Debug(ctx, "session open", "session", s.id)
	return s, nil
}

// ID identifies the session in logs and spans.
func (s *Session) ID() string {
	return s.id
}

// Conn returns the owned connection. Ownership stays with the Session.
func (s *Session) Conn() Conn {
	return s.conn
}

// Commit makes all pending work durable.
func (s *Session) Commit(ctx context.Context) (err error) {
	if err := s.checkOpen("commit"); err != nil {
		return err
	}
	ctx, span := s.inst.start(ctx, "Commit", "")
	defer func() { end(span, err) }()

	return s.commit(ctx, "commit")
}

// Rollback discards all pending work.
func (s *Session) Rollback(ctx context.Context) (err error) {
	if err := s.checkOpen("rollback"); err != nil {
		return err
	}
	ctx, span := s.inst.start(ctx, "Rollback", "")
	defer func() { end(span, err) }()

	if err := s.conn.Rollback(ctx); err != nil {
		s.log.Error(ctx, "rollback failed", "session", s.id, "err", err)
		return newError("rollback", ErrTransaction, StatementRequest{}, err)
	}
	return nil
}

// Close commits pending work and releases the connection. The connection is
// released even if the commit fails. Close never fails: problems go to the
// Logger only. Calling Close twice is a no-op.
func (s *Session) Close(ctx context.Context) {
	if s.closed {
		return
	}
	s.closed = true

	ctx, span := s.inst.start(ctx, "Close", "")
	var errs []error

	if err := s.conn.Commit(ctx); err != nil {
		s.log.Error(ctx, "close: commit failed", "session", s.id, "err", err)
		errs = append(errs, err)
	} else {
		s.inst.commits.Add(ctx, 1)
	}
	if err := s.conn.Close(ctx); err != nil {
		s.log.Error(ctx, "close: release connection failed", "session", s.id, "err", err)
		errs = append(errs, err)
	}

	end(span, errors.Join(errs...))
	s.log.Debug(ctx, "session close", "session", s.id)
}

func (s *Session) commit(ctx context.Context, op string, keyvals ...any) error {
	if err := s.conn.Commit(ctx); err != nil {
		s.log.Error(ctx, op+" failed", append([]any{"session", s.id, "err", err}, keyvals...)...)
		return newError(op, ErrTransaction, StatementRequest{}, err)
	}
	s.inst.commits.Add(ctx, 1)
	return nil
}

func (s *Session) checkOpen(op string) error {
	if s.closed {
		return newError(op, ErrInvalidConnection, StatementRequest{}, errors.New("session is closed"))
	}
	return nil
}

// prepare acquires a statement. The returned release func must be deferred;
// it closes the statement and folds a close failure into *errp when nothing
// else failed.
func (s *Session) prepare(ctx context.Context, op string, kind error, req StatementRequest) (Stmt, func(errp *error), error) {
	stmt, err := s.conn.Prepare(ctx, req.SQL)
	if err != nil {
		return nil, nil, newError(op, kind, req, err)
	}
	release := func(errp *error) {
		if cerr := stmt.Close(ctx); cerr != nil {
			s.log.Error(ctx, op+": close statement", "session", s.id, "sql", req.SQL, "err", cerr)
			if *errp == nil {
				*errp = newError(op, kind, req, cerr)
			}
		}
	}
	return stmt, release, nil
}

// fail logs err with the statement context and returns it.
func (s *Session) fail(ctx context.Context, op string, req StatementRequest, err error) error {
	s.log.Error(ctx, op+" failed", "session", s.id, "sql", req.SQL, "args", req.Args, "err", err)
	return err
}

func (s *Session) countStatements(ctx context.Context, op string, n int64) {
	s.inst.statements.Add(ctx, n, metric.WithAttributes(attribute.String("db.operation.name", op)))
}

func (s *Session) countRows(ctx context.Context, op string, n int64) {
	s.inst.rows.Add(ctx, n, metric.WithAttributes(attribute.String("db.operation.name", op)))
}
