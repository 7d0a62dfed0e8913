package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	apperrors "github.com/medflow/medpredict-backend/pkg/errors"
	"github.com/medflow/medpredict-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlx.NewDb(sqlDB, "postgres"), logger.Nop()), mock
}

func TestReadSnapshot_Commits(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectCommit()

	err := db.ReadSnapshot(context.Background(), func(tx *sqlx.Tx) error {
		var n int
		return tx.Get(&n, "SELECT 1")
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadSnapshot_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := db.ReadSnapshot(context.Background(), func(*sqlx.Tx) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadSnapshot_BeginFails(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	err := db.ReadSnapshot(context.Background(), func(*sqlx.Tx) error {
		t.Fatal("fn must not run")
		return nil
	})

	assert.ErrorContains(t, err, "failed to begin transaction")
}

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantNil bool
		message string
	}{
		{"not a pq error", errors.New("plain"), true, ""},
		{"undefined table", &pq.Error{Code: "42P01"}, false, "inventory schema is missing a table"},
		{"undefined column", &pq.Error{Code: "42703", Message: `column "unit_cost" does not exist`}, false, `inventory schema is missing a column: column "unit_cost" does not exist`},
		{"connection failure", &pq.Error{Code: "08006"}, false, "inventory database connection lost"},
		{"too many connections", &pq.Error{Code: "53300"}, false, "inventory database is overloaded"},
		{"query canceled", &pq.Error{Code: "57014"}, false, "inventory database query was cancelled"},
		{"serialization failure", &pq.Error{Code: "40001"}, false, "inventory snapshot could not be serialized, retry"},
		{"unique violation is unmapped", &pq.Error{Code: "23505"}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapPQError(tt.err)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.message, got.Message)
			assert.Equal(t, 503, got.StatusCode)
			assert.True(t, apperrors.Is(got, apperrors.ErrUnavailable))
		})
	}
}
