// Package databasesql implements dbsession.Conn over a dedicated *sql.Conn.
//
// Transactions are driven with plain BEGIN/COMMIT/ROLLBACK statements on the
// connection instead of *sql.Tx, so statements prepared on the connection
// stay valid across commits. This only works because the Conn pins a single
// physical connection; never share it.
package databasesql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/TechXTT/dbsession"
)

var (
	// ErrAutoCommit is returned by Commit and Rollback while autocommit is on.
	ErrAutoCommit = errors.New("databasesql: no transaction while autocommit is on")

	// ErrTxLost is returned once a transaction ended but the next one could
	// not be started. The Conn refuses new statements from then on, so nothing
	// runs in autocommit mode by accident.
	ErrTxLost = errors.New("databasesql: transaction could not be restarted")
)

// Options configures a Conn. Zero values select the defaults.
type Options struct {
	Begin    string
	Commit   string
	Rollback string

	// Converter validates bind values. Defaults to driver.DefaultParameterConverter.
	Converter driver.ValueConverter
}

// Conn is a dbsession.Conn backed by one pinned database/sql connection.
type Conn struct {
	conn  *sql.Conn
	opts  Options
	inTx  bool
	close bool
	lost  error
}

var _ dbsession.Conn = (*Conn)(nil)

// New wraps conn. The Conn starts in autocommit mode; dbsession.Open turns it off.
func New(conn *sql.Conn, opts *Options) *Conn {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	if o.Begin == "" {
		o.Begin = "BEGIN"
	}
	if o.Commit == "" {
		o.Commit = "COMMIT"
	}
	if o.Rollback == "" {
		o.Rollback = "ROLLBACK"
	}
	if o.Converter == nil {
		o.Converter = driver.DefaultParameterConverter
	}
	return &Conn{conn: conn, opts: o}
}

// Open pins a connection from db and wraps it.
func Open(ctx context.Context, db *sql.DB, opts *Options) (*Conn, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return New(conn, opts), nil
}

// Raw returns the pinned connection.
func (c *Conn) Raw() *sql.Conn {
	return c.conn
}

// Prepare implements dbsession.Conn.
func (c *Conn) Prepare(ctx context.Context, query string) (dbsession.Stmt, error) {
	if c.lost != nil {
		return nil, fmt.Errorf("%w: %w", ErrTxLost, c.lost)
	}
	stmt, err := c.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Stmt{stmt: stmt, converter: c.opts.Converter}, nil
}

// AutoCommit implements dbsession.Conn.
func (c *Conn) AutoCommit() bool {
	return !c.inTx
}

// SetAutoCommit implements dbsession.Conn. Turning autocommit on commits the
// open transaction.
func (c *Conn) SetAutoCommit(ctx context.Context, on bool) error {
	switch {
	case on && c.inTx:
		if _, err := c.conn.ExecContext(ctx, c.opts.Commit); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		c.inTx = false
	case !on && !c.inTx:
		if err := c.begin(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Commit implements dbsession.Conn. A new transaction is started right away.
func (c *Conn) Commit(ctx context.Context) error {
	return c.end(ctx, c.opts.Commit)
}

// Rollback implements dbsession.Conn. A new transaction is started right away.
func (c *Conn) Rollback(ctx context.Context) error {
	return c.end(ctx, c.opts.Rollback)
}

// Close implements dbsession.Conn. An open transaction is rolled back before
// the connection goes back to its pool.
func (c *Conn) Close(ctx context.Context) error {
	if c.close {
		return nil
	}
	c.close = true

	var rbErr error
	if c.inTx {
		if _, err := c.conn.ExecContext(ctx, c.opts.Rollback); err != nil {
			rbErr = fmt.Errorf("rollback: %w", err)
		}
		c.inTx = false
	}
	return errors.Join(rbErr, c.conn.Close())
}

func (c *Conn) begin(ctx context.Context) error {
	if _, err := c.conn.ExecContext(ctx, c.opts.Begin); err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	c.inTx = true
	return nil
}

func (c *Conn) end(ctx context.Context, stmt string) error {
	if !c.inTx {
		return ErrAutoCommit
	}
	if _, err := c.conn.ExecContext(ctx, stmt); err != nil {
		return err
	}
	c.inTx = false
	if err := c.begin(ctx); err != nil {
		c.lost = err
		return fmt.Errorf("%w: %w", ErrTxLost, err)
	}
	return nil
}
