package challenges

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/keepr/internal/common"
)

var fixedNow = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	r := NewPostgresRepository(db)
	r.now = func() time.Time { return fixedNow }
	return r, mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+challenges\s*\(address,\s*nonce,\s*expires_at\)`).
		WithArgs("0xabc", "n1", fixedNow.Add(5*time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, err := repo.Create(context.Background(), "0xabc", "n1", 5*time.Minute)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !c.ExpiresAt.Equal(fixedNow.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry: %v", c.ExpiresAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFind_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+address,\s*nonce,\s*expires_at\s+FROM\s+challenges\s+WHERE\s+nonce\s*=\s*\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestFind_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"address", "nonce", "expires_at"}).AddRow("0xabc", "n1", fixedNow)
	mock.ExpectQuery(`FROM\s+challenges`).WithArgs("n1").WillReturnRows(rows)

	c, err := repo.Find(context.Background(), "n1")
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if c.Address != "0xabc" || c.Nonce != "n1" {
		t.Fatalf("unexpected challenge: %+v", c)
	}
}

func TestDelete_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+challenges\s+WHERE\s+nonce`).
		WithArgs("n1").
		WillReturnError(errors.New("db down"))

	if err := repo.Delete(context.Background(), "n1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+challenges\s+WHERE\s+expires_at\s*<\s*\$1`).
		WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background())
	if err != nil {
		t.Fatalf("DeleteExpired error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
}
