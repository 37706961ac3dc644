// Package pgxv5 implements dbsession.Conn over a *pgx.Conn.
//
// Autocommit off means an open pgx.Tx. Statements are prepared by name on the
// connection, which keeps them alive across commits.
package pgxv5

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/TechXTT/dbsession"
)

var (
	// ErrAutoCommit is returned by Commit and Rollback while autocommit is on.
	ErrAutoCommit = errors.New("pgxv5: no transaction while autocommit is on")

	// ErrTxLost is returned once a transaction ended but the next one could
	// not be started. The Conn refuses new statements from then on.
	ErrTxLost = errors.New("pgxv5: transaction could not be restarted")
)

// Conn is a dbsession.Conn backed by a single pgx connection.
type Conn struct {
	conn   *pgx.Conn
	tx     pgx.Tx
	closed bool
	lost   error
}

var _ dbsession.Conn = (*Conn)(nil)

// New wraps conn. The Conn starts in autocommit mode.
func New(conn *pgx.Conn) *Conn {
	return &Conn{conn: conn}
}

// Connect dials dsn and wraps the new connection.
func Connect(ctx context.Context, dsn string) (*Conn, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return New(conn), nil
}

// Raw returns the wrapped connection.
func (c *Conn) Raw() *pgx.Conn {
	return c.conn
}

// Prepare implements dbsession.Conn.
func (c *Conn) Prepare(ctx context.Context, query string) (dbsession.Stmt, error) {
	if c.lost != nil {
		return nil, fmt.Errorf("%w: %w", ErrTxLost, c.lost)
	}
	name := "dbsession_" + uuid.NewString()
	desc, err := c.conn.Prepare(ctx, name, query)
	if err != nil {
		return nil, err
	}
	return &Stmt{conn: c, name: name, desc: desc}, nil
}

// AutoCommit implements dbsession.Conn.
func (c *Conn) AutoCommit() bool {
	return c.tx == nil
}

// SetAutoCommit implements dbsession.Conn. Turning autocommit on commits the
// open transaction.
func (c *Conn) SetAutoCommit(ctx context.Context, on bool) error {
	switch {
	case on && c.tx != nil:
		err := c.tx.Commit(ctx)
		c.tx = nil
		return err
	case !on && c.tx == nil:
		return c.begin(ctx)
	}
	return nil
}

// Commit implements dbsession.Conn. A new transaction is started right away.
func (c *Conn) Commit(ctx context.Context) error {
	if c.tx == nil {
		return ErrAutoCommit
	}
	err := c.tx.Commit(ctx)
	c.tx = nil
	if err != nil {
		return err
	}
	return c.restart(ctx)
}

// Rollback implements dbsession.Conn. A new transaction is started right away.
func (c *Conn) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return ErrAutoCommit
	}
	err := c.tx.Rollback(ctx)
	c.tx = nil
	if err != nil {
		return err
	}
	return c.restart(ctx)
}

// Close implements dbsession.Conn. An open transaction is rolled back.
func (c *Conn) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true

	var rbErr error
	if c.tx != nil {
		rbErr = c.tx.Rollback(ctx)
		c.tx = nil
	}
	return errors.Join(rbErr, c.conn.Close(ctx))
}

// restart opens the transaction that follows a Commit or Rollback.
func (c *Conn) restart(ctx context.Context) error {
	if err := c.begin(ctx); err != nil {
		c.lost = err
		return fmt.Errorf("%w: %w", ErrTxLost, err)
	}
	return nil
}

func (c *Conn) begin(ctx context.Context) error {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	c.tx = tx
	return nil
}

// pgxExecutor is the part of *pgx.Conn and pgx.Tx used for execution.
type pgxExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// executor returns the open transaction, or the connection in autocommit mode.
func (c *Conn) executor() pgxExecutor {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}
