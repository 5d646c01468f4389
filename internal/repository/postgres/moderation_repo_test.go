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

func TestModerationRepo_ConvictCascade_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewModerationRepo(db)

	ctx := context.Background()
	root := uuid.Must(uuid.NewV4())
	sponsor := uuid.Must(uuid.NewV4())
	child := uuid.Must(uuid.NewV4())
	grandchild := uuid.Must(uuid.NewV4())

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`SELECT status, sponsor_id FROM accounts WHERE id=\$1 FOR UPDATE`).
		WithArgs(root).
		WillReturnRows(pgxmock.NewRows([]string{"status", "sponsor_id"}).AddRow("active", &sponsor))
	// Subtree lock: root, an active child and an already-banned grandchild.
	mock.ExpectQuery(`WITH RECURSIVE subtree AS`).
		WithArgs(root).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "sponsor_id"}).
			AddRow(root, "active", &sponsor).
			AddRow(child, "active", &root).
			AddRow(grandchild, "banned", &child))
	mock.ExpectExec(`UPDATE accounts SET status = 'banned', trust_started_at = NULL WHERE id=\$1`).
		WithArgs(root).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE accounts SET status = 'revouch_required', trust_started_at = NULL`).
		WithArgs([]uuid.UUID{child}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE invite_codes SET is_active = FALSE WHERE issuer_id = ANY\(\$1\)`).
		WithArgs([]uuid.UUID{root, child, grandchild}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(`UPDATE accounts SET demerits = demerits \+ 1 WHERE id=\$1`).
		WithArgs(sponsor).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO account_events`).
		WithArgs(pgxmock.AnyArg(), root, string(model.EventConvicted), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO account_events`).
		WithArgs(pgxmock.AnyArg(), sponsor, string(model.EventDemeritAdded), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO account_events`).
		WithArgs(pgxmock.AnyArg(), child, string(model.EventDemoted), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := r.ConvictCascade(ctx, root, "spam")
	require.NoError(t, err)
	require.False(t, res.AlreadyBanned)
	require.Equal(t, root, res.AccountID)
	require.Equal(t, sponsor, *res.PenalizedSponsor)
	require.Equal(t, []uuid.UUID{child}, res.DemotedAccountIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationRepo_ConvictCascade_AlreadyBanned(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewModerationRepo(db)

	root := uuid.Must(uuid.NewV4())

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`SELECT status, sponsor_id FROM accounts WHERE id=\$1 FOR UPDATE`).
		WithArgs(root).
		WillReturnRows(pgxmock.NewRows([]string{"status", "sponsor_id"}).AddRow("banned", nil))
	mock.ExpectCommit()

	res, err := r.ConvictCascade(context.Background(), root, "spam")
	require.NoError(t, err)
	require.True(t, res.AlreadyBanned)
	require.Empty(t, res.DemotedAccountIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationRepo_ConvictCascade_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewModerationRepo(db)

	root := uuid.Must(uuid.NewV4())

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`SELECT status, sponsor_id FROM accounts WHERE id=\$1 FOR UPDATE`).
		WithArgs(root).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := r.ConvictCascade(context.Background(), root, "spam")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestModerationRepo_ConvictCascade_SerializationFailure(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewModerationRepo(db)

	root := uuid.Must(uuid.NewV4())

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`SELECT status, sponsor_id FROM accounts WHERE id=\$1 FOR UPDATE`).
		WithArgs(root).
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()

	_, err := r.ConvictCascade(context.Background(), root, "spam")
	require.ErrorIs(t, err, errs.ErrTxContention)
}

func TestModerationRepo_ExpireInactiveSponsors_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewModerationRepo(db)

	child := uuid.Must(uuid.NewV4())
	sponsor := uuid.Must(uuid.NewV4())

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`SELECT c\.id, c\.sponsor_id`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "sponsor_id"}).AddRow(child, sponsor))
	mock.ExpectExec(`UPDATE accounts SET status = 'revouch_required', trust_started_at = NULL`).
		WithArgs([]uuid.UUID{child}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO account_events`).
		WithArgs(pgxmock.AnyArg(), child, string(model.EventSponsorExpired), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	demoted, err := r.ExpireInactiveSponsors(context.Background(), 720*time.Hour)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{child}, demoted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationRepo_ExpireInactiveSponsors_NoneStale(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewModerationRepo(db)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`SELECT c\.id, c\.sponsor_id`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "sponsor_id"}))
	mock.ExpectCommit()

	demoted, err := r.ExpireInactiveSponsors(context.Background(), 720*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, demoted)
	require.Empty(t, demoted)
	require.NoError(t, mock.ExpectationsWereMet())
}
