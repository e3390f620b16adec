package contacts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/keepr/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestUpsert(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+contacts.*ON\s+CONFLICT\s+\(content_address,\s*role\)`).
		WithArgs("cid", int64(7), "recipient", "0xabc", "r@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &models.Contact{
		ContentAddress: "cid", KeepID: 7, Role: "recipient", Address: "0xabc", Email: "r@example.com",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByContentAddress(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	ts := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"content_address", "keep_id", "role", "address", "email", "created_at"}).
		AddRow("cid", int64(7), "fallback", "0xf", "f@example.com", ts).
		AddRow("cid", int64(7), "recipient", "0xa", "r@example.com", ts)
	mock.ExpectQuery(`(?s)SELECT.*FROM\s+contacts\s+WHERE\s+content_address\s*=\s*\$1`).
		WithArgs("cid").
		WillReturnRows(rows)

	list, err := repo.ListByContentAddress(context.Background(), "cid")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(7), list[0].KeepID)
	assert.Equal(t, "fallback", list[0].Role)
	assert.Equal(t, "r@example.com", list[1].Email)
}

func TestListByContentAddress_QueryError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM\s+contacts`).WillReturnError(errors.New("db down"))

	_, err := repo.ListByContentAddress(context.Background(), "cid")
	assert.ErrorContains(t, err, "db down")
}

func TestListByContentAddress_ScanError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	rows := sqlmock.NewRows([]string{"content_address"}).AddRow("cid")
	mock.ExpectQuery(`FROM\s+contacts`).WillReturnRows(rows)

	_, err := repo.ListByContentAddress(context.Background(), "cid")
	assert.Error(t, err)
}
