package databasesql_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TechXTT/dbsession"
	"github.com/TechXTT/dbsession/driver/databasesql"
)

var done = sqlmock.NewResult(0, 0)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func openSession(t *testing.T, db *sql.DB) *dbsession.Session {
	t.Helper()
	conn, err := databasesql.Open(context.Background(), db, nil)
	require.NoError(t, err)
	s, err := dbsession.Open(context.Background(), conn)
	require.NoError(t, err)
	return s
}

func TestOpen_BeginsTransaction(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("BEGIN").WillReturnResult(done)

	s := openSession(t, db)
	assert.False(t, s.Conn().AutoCommit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteUpdate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	prep := mock.ExpectPrepare(`UPDATE users SET active`)
	prep.ExpectExec().WithArgs(true, "acme").WillReturnResult(sqlmock.NewResult(0, 3))
	prep.WillBeClosed()

	s := openSession(t, db)
	n, err := s.ExecuteUpdate(context.Background(), "UPDATE users SET active = $1 WHERE org = $2", true, "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteUpdate_RejectsUnsupportedValue(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	mock.ExpectPrepare(`INSERT INTO t`).WillBeClosed()

	s := openSession(t, db)
	_, err := s.ExecuteUpdate(context.Background(), "INSERT INTO t VALUES ($1)", struct{ X int }{1})
	require.ErrorIs(t, err, dbsession.ErrBind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteUpdate_DriverError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	prep := mock.ExpectPrepare(`DELETE FROM t`)
	prep.ExpectExec().WillReturnError(errors.New("relation \"t\" does not exist"))
	prep.WillBeClosed()

	s := openSession(t, db)
	_, err := s.ExecuteUpdate(context.Background(), "DELETE FROM t")
	require.ErrorIs(t, err, dbsession.ErrExecution)
	assert.Contains(t, err.Error(), `does not exist`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteQuery_ProjectsAndCaps(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	prep := mock.ExpectPrepare(`SELECT id, name FROM users`)
	prep.ExpectQuery().WithArgs("acme").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "alice").
			AddRow(2, nil).
			AddRow(3, "carol"),
	)
	prep.WillBeClosed()

	s := openSession(t, db)
	rows, err := s.ExecuteQuery(context.Background(), "SELECT id, name FROM users WHERE org = $1", 2, "acme")
	require.NoError(t, err)
	assert.Equal(t, []dbsession.ResultRow{
		{{String: "1", Valid: true}, {String: "alice", Valid: true}},
		{{String: "2", Valid: true}, {}},
	}, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteQuery_NoRows(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	prep := mock.ExpectPrepare(`SELECT id FROM users`)
	prep.ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"id"}))
	prep.WillBeClosed()

	s := openSession(t, db)
	rows, err := s.ExecuteQuery(context.Background(), "SELECT id FROM users", 10)
	require.NoError(t, err)
	assert.Nil(t, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteBatch_Checkpoints(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	prep := mock.ExpectPrepare(`INSERT INTO t`)
	prep.ExpectExec().WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("COMMIT").WillReturnResult(done)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	prep.ExpectExec().WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("COMMIT").WillReturnResult(done)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	prep.WillBeClosed()

	s := openSession(t, db)
	total, err := s.ExecuteBatch(context.Background(), "INSERT INTO t VALUES ($1)", 2, [][]any{{1}, {2}, {3}})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteBatch_ShorterSetIsBindError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	mock.ExpectPrepare(`INSERT INTO t`).WillBeClosed()

	s := openSession(t, db)
	total, err := s.ExecuteBatch(context.Background(), "INSERT INTO t VALUES ($1, $2)", 5, [][]any{{1, "a"}, {3}})
	require.ErrorIs(t, err, dbsession.ErrBind)
	assert.Equal(t, 2, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStmt_ClearBindings(t *testing.T) {
	db, mock := newMock(t)
	prep := mock.ExpectPrepare(`INSERT INTO t`)
	prep.ExpectExec().WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.WillBeClosed()

	sqlConn, err := db.Conn(context.Background())
	require.NoError(t, err)
	c := databasesql.New(sqlConn, nil)

	ctx := context.Background()
	st, err := c.Prepare(ctx, "INSERT INTO t VALUES ($1)")
	require.NoError(t, err)
	require.NoError(t, st.Bind(1, 1))
	require.NoError(t, st.Bind(2, "a"))
	require.NoError(t, st.ClearBindings())
	require.NoError(t, st.Bind(1, 3))

	n, err := st.ExecUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, st.Close(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommit_BeginFailureStopsStatements(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	mock.ExpectExec("COMMIT").WillReturnResult(done)
	mock.ExpectExec("BEGIN").WillReturnError(errors.New("out of shared memory"))

	s := openSession(t, db)
	err := s.Commit(context.Background())
	require.ErrorIs(t, err, dbsession.ErrTransaction)
	require.ErrorIs(t, err, databasesql.ErrTxLost)

	_, err = s.ExecuteUpdate(context.Background(), "INSERT INTO t VALUES ($1)", 1)
	require.ErrorIs(t, err, dbsession.ErrExecution)
	require.ErrorIs(t, err, databasesql.ErrTxLost)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteBatch_FailureLeavesTransactionOpen(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	prep := mock.ExpectPrepare(`INSERT INTO t`)
	prep.ExpectExec().WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(2).WillReturnError(errors.New("duplicate key value"))
	prep.WillBeClosed()

	s := openSession(t, db)
	total, err := s.ExecuteBatch(context.Background(), "INSERT INTO t VALUES ($1)", 5, [][]any{{1}, {2}, {3}})
	require.ErrorIs(t, err, dbsession.ErrExecution)
	assert.Equal(t, 3, total)
	assert.False(t, s.Conn().AutoCommit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitAndRollback(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	mock.ExpectExec("COMMIT").WillReturnResult(done)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	mock.ExpectExec("ROLLBACK").WillReturnResult(done)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	mock.ExpectExec("COMMIT").WillReturnError(errors.New("could not serialize access"))

	s := openSession(t, db)
	require.NoError(t, s.Commit(context.Background()))
	require.NoError(t, s.Rollback(context.Background()))
	require.ErrorIs(t, s.Commit(context.Background()), dbsession.ErrTransaction)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionClose_CommitsThenReleases(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	mock.ExpectExec("COMMIT").WillReturnResult(done)
	mock.ExpectExec("BEGIN").WillReturnResult(done)
	mock.ExpectExec("ROLLBACK").WillReturnResult(done)

	s := openSession(t, db)
	s.Close(context.Background())
	s.Close(context.Background())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_AutoCommit(t *testing.T) {
	db, mock := newMock(t)
	sqlConn, err := db.Conn(context.Background())
	require.NoError(t, err)

	c := databasesql.New(sqlConn, &databasesql.Options{Begin: "START TRANSACTION"})
	assert.True(t, c.AutoCommit())
	require.ErrorIs(t, c.Commit(context.Background()), databasesql.ErrAutoCommit)
	require.ErrorIs(t, c.Rollback(context.Background()), databasesql.ErrAutoCommit)

	mock.ExpectExec("START TRANSACTION").WillReturnResult(done)
	require.NoError(t, c.SetAutoCommit(context.Background(), false))
	assert.False(t, c.AutoCommit())

	mock.ExpectExec("COMMIT").WillReturnResult(done)
	require.NoError(t, c.SetAutoCommit(context.Background(), true))
	assert.True(t, c.AutoCommit())

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_BeginFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("BEGIN").WillReturnError(errors.New("connection refused"))

	conn, err := databasesql.Open(context.Background(), db, nil)
	require.NoError(t, err)
	_, err = dbsession.Open(context.Background(), conn)
	require.ErrorIs(t, err, dbsession.ErrInvalidConnection)
	require.NoError(t, mock.ExpectationsWereMet())
}
