package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/vouchnet/trustd/internal/errs"
	"github.com/vouchnet/trustd/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func accountColumns() []string {
	return []string{"id", "username", "status", "sponsor_id", "trust_started_at", "demerits", "last_heartbeat_at", "created_at"}
}

func TestAccountRepo_Create_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)

	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO accounts \(id, username, status, sponsor_id, trust_started_at, demerits, last_heartbeat_at, created_at\)`).
		WithArgs(id, "root", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(accountColumns()).
			AddRow(id, "root", "active", nil, &now, 0, now, now))
	mock.ExpectExec(`INSERT INTO account_events`).
		WithArgs(pgxmock.AnyArg(), id, string(model.EventAccountCreated), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	a := &model.Account{ID: id, Username: "root"}
	err := r.Create(ctx, a)
	require.NoError(t, err)
	require.Equal(t, model.StatusActive, a.Status)
	require.NotNil(t, a.TrustStartedAt)
	require.Nil(t, a.SponsorID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_Create_DuplicateUsername(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)

	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO accounts`).
		WithArgs(id, "taken", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := r.Create(ctx, &model.Account{ID: id, Username: "taken"})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestAccountRepo_GetByID_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)

	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	sponsor := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`SELECT id, username, status, sponsor_id, trust_started_at, demerits, last_heartbeat_at, created_at\s+FROM accounts WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(accountColumns()).
			AddRow(id, "alice", "active", &sponsor, &now, 1, now, now))

	a, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "alice", a.Username)
	require.Equal(t, model.StatusActive, a.Status)
	require.Equal(t, sponsor, *a.SponsorID)
	require.Equal(t, 1, a.Demerits)
}

func TestAccountRepo_GetByID_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`FROM accounts WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.GetByID(context.Background(), id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAccountRepo_Heartbeat(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectExec(`UPDATE accounts SET last_heartbeat_at = now\(\) WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, r.Heartbeat(context.Background(), id))
}

func TestAccountRepo_Heartbeat_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectExec(`UPDATE accounts SET last_heartbeat_at = now\(\) WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.ErrorIs(t, r.Heartbeat(context.Background(), id), errs.ErrNotFound)
}

func TestAccountRepo_IsBanned(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`SELECT status = 'banned' FROM accounts WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"banned"}).AddRow(true))

	banned, err := r.IsBanned(context.Background(), id)
	require.NoError(t, err)
	require.True(t, banned)
}

func TestAccountRepo_IsBanned_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`SELECT status = 'banned' FROM accounts WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.IsBanned(context.Background(), id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAccountRepo_ListBannedIDs(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)

	a := uuid.Must(uuid.NewV4())
	b := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`SELECT id FROM accounts WHERE status = 'banned'`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(a).AddRow(b))

	ids, err := r.ListBannedIDs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{a, b}, ids)
}
