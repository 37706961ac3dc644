package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/TechXTT/dbsession"
	"github.com/TechXTT/dbsession/driver/databasesql"
	"github.com/TechXTT/dbsession/driver/pgxv5"
	"github.com/TechXTT/dbsession/pkg/config"
)

// NormalizeDSN disables SSL for postgres URLs that do not pick a mode.
func NormalizeDSN(dsn string) string {
	if (strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")) &&
		!strings.Contains(dsn, "sslmode=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn = dsn + sep + "sslmode=disable"
	}
	return dsn
}

// Connect opens a lib/pq pool using the given DSN and checks it is reachable.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DSN is empty")
	}
	db, err := sql.Open("postgres", NormalizeDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Handle is an open Session plus whatever must be torn down after it.
type Handle struct {
	*dbsession.Session
	cleanup func() error
}

// Close closes the session (committing pending work) and then the resources
// the session was opened from.
func (h *Handle) Close(ctx context.Context) error {
	h.Session.Close(ctx)
	if h.cleanup != nil {
		return h.cleanup()
	}
	return nil
}

// Open opens a Session for cfg using the configured driver.
func Open(ctx context.Context, cfg *config.Config, opts ...dbsession.Option) (*Handle, error) {
	switch cfg.Driver {
	case config.DriverPGX:
		conn, err := pgxv5.Connect(ctx, NormalizeDSN(cfg.DSN))
		if err != nil {
			return nil, err
		}
		s, err := dbsession.Open(ctx, conn, opts...)
		if err != nil {
			return nil, errors.Join(err, conn.Close(ctx))
		}
		return &Handle{Session: s}, nil
	case config.DriverPostgres:
		db, err := Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		h, err := OpenDB(ctx, db, opts...)
		if err != nil {
			return nil, errors.Join(err, db.Close())
		}
		h.cleanup = db.Close
		return h, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Driver)
	}
}

// OpenDB pins one connection of db and opens a Session on it. db stays owned
// by the caller.
func OpenDB(ctx context.Context, db *sql.DB, opts ...dbsession.Option) (*Handle, error) {
	conn, err := databasesql.Open(ctx, db, nil)
	if err != nil {
		return nil, err
	}
	s, err := dbsession.Open(ctx, conn, opts...)
	if err != nil {
		return nil, errors.Join(err, conn.Close(ctx))
	}
	return &Handle{Session: s}, nil
}
