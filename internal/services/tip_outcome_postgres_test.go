package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tipcircle/backend/internal/logging"
	"github.com/tipcircle/backend/internal/models"
	"github.com/tipcircle/backend/internal/storage/postgres"
)

var profileCols = []string{"id", "team_id", "display_name", "points_received", "jabs_received",
	"points_sent", "jabs_sent", "balance", "last_tip_received_at", "last_tip_sent_at", "updated_at"}

var teamCols = []string{"id", "name", "points_sent", "jabs_sent", "balance", "updated_at"}

func expectLockedRows(mock sqlmock.Sqlmock) {
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout = '5000ms'").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM profiles WHERE id = \\$1 FOR NO KEY UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow(1, 1, "sam", 0, 0, 0, 0, 0, nil, nil, now))
	mock.ExpectQuery("SELECT (.+) FROM profiles WHERE id = \\$1 FOR NO KEY UPDATE").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow(2, 1, "alex", 100, 0, 0, 0, 100, now, nil, now))
	mock.ExpectQuery("SELECT (.+) FROM teams WHERE id = \\$1 FOR NO KEY UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(teamCols).AddRow(1, "Acme", 100, 0, 100, now))
}

func TestTipOutcomeService_Postgres(t *testing.T) {
	t.Run("commits every row once", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		store := postgres.NewPostgresLedgerStore(db, 5*time.Second)
		service := NewTipOutcomeService(store, nil, logging.NewNop())

		expectLockedRows(mock)
		mock.ExpectExec("UPDATE profiles SET").
			WithArgs(int64(0), int64(0), int64(10), int64(0), int64(-10), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE profiles SET").
			WithArgs(int64(110), int64(0), int64(0), int64(0), int64(110), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE teams SET").
			WithArgs(int64(110), int64(0), int64(110), sqlmock.AnyArg(), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = service.Record(context.Background(), []models.Tip{pointsTip(101, 1, 2, 10, 1)})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("check constraint rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		store := postgres.NewPostgresLedgerStore(db, 5*time.Second)
		service := NewTipOutcomeService(store, nil, logging.NewNop())

		expectLockedRows(mock)
		mock.ExpectExec("UPDATE profiles SET").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE profiles SET").WillReturnError(&pq.Error{Code: "23514"})
		mock.ExpectRollback()

		err = service.Record(context.Background(), []models.Tip{pointsTip(101, 1, 2, 10, 1)})
		assert.ErrorIs(t, err, ErrConstraintViolation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lock timeout rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		store := postgres.NewPostgresLedgerStore(db, 5*time.Second)
		service := NewTipOutcomeService(store, nil, logging.NewNop())

		mock.ExpectBegin()
		mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM profiles WHERE id = \\$1 FOR NO KEY UPDATE").
			WithArgs(int64(1)).
			WillReturnError(&pq.Error{Code: "55P03"})
		mock.ExpectRollback()

		err = service.Record(context.Background(), []models.Tip{pointsTip(101, 1, 2, 10, 1)})
		assert.ErrorIs(t, err, ErrLockTimeout)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reverse with delete looks up remaining tips", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		store := postgres.NewPostgresLedgerStore(db, 5*time.Second)
		service := NewTipOutcomeService(store, nil, logging.NewNop())

		remaining := baseTime
		now := time.Now()
		mock.ExpectBegin()
		mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("FROM profiles WHERE id = \\$1 FOR NO KEY UPDATE").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(profileCols).AddRow(1, 1, "sam", 0, 0, 10, 0, -10, nil, now, now))
		mock.ExpectQuery("FROM profiles WHERE id = \\$1 FOR NO KEY UPDATE").
			WithArgs(int64(2)).
			WillReturnRows(sqlmock.NewRows(profileCols).AddRow(2, 1, "alex", 110, 0, 0, 0, 110, now, nil, now))
		mock.ExpectQuery("FROM teams WHERE id = \\$1 FOR NO KEY UPDATE").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(teamCols).AddRow(1, "Acme", 110, 0, 110, now))
		mock.ExpectQuery("SELECT MAX\\(created_at\\) FROM tips WHERE to_profile_id = \\$1").
			WithArgs(int64(2), pq.Array([]int64{101})).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(remaining))
		mock.ExpectQuery("SELECT MAX\\(created_at\\) FROM tips WHERE from_profile_id = \\$1").
			WithArgs(int64(1), pq.Array([]int64{101})).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
		mock.ExpectExec("UPDATE profiles SET").
			WithArgs(int64(0), int64(0), int64(0), int64(0), int64(0), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE profiles SET").
			WithArgs(int64(100), int64(0), int64(0), int64(0), int64(100), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE teams SET").
			WithArgs(int64(100), int64(0), int64(100), sqlmock.AnyArg(), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM tips WHERE id = ANY\\(\\$1\\)").
			WithArgs(pq.Array([]int64{101})).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = service.Retract(context.Background(), []models.Tip{pointsTip(101, 1, 2, 10, 1)})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
