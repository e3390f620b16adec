package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/dbx"
	"github.com/dmitrijs2005/keepr/internal/server/models"
	"github.com/dmitrijs2005/keepr/internal/server/repositories/challenges"
	"github.com/dmitrijs2005/keepr/internal/server/repositories/contacts"
	"github.com/dmitrijs2005/keepr/internal/server/repositories/publickeys"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type fakeChallenges struct {
	byNonce   map[string]*models.Challenge
	createErr error
	deleted   []string
}

func (f *fakeChallenges) Create(ctx context.Context, address, nonce string, validity time.Duration) (*models.Challenge, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	c := &models.Challenge{Address: address, Nonce: nonce, ExpiresAt: time.Now().Add(validity)}
	f.byNonce[nonce] = c
	return c, nil
}

func (f *fakeChallenges) Find(ctx context.Context, nonce string) (*models.Challenge, error) {
	c, ok := f.byNonce[nonce]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return c, nil
}

func (f *fakeChallenges) Delete(ctx context.Context, nonce string) error {
	delete(f.byNonce, nonce)
	f.deleted = append(f.deleted, nonce)
	return nil
}

func (f *fakeChallenges) DeleteExpired(ctx context.Context) (int64, error) { return 0, nil }

type fakePublicKeys struct {
	byAddress map[string]*models.PublicKey
	err       error
}

func (f *fakePublicKeys) Upsert(ctx context.Context, key *models.PublicKey) error {
	if f.err != nil {
		return f.err
	}
	f.byAddress[key.Address] = key
	return nil
}

func (f *fakePublicKeys) Get(ctx context.Context, address string) (*models.PublicKey, error) {
	if f.err != nil {
		return nil, f.err
	}
	k, ok := f.byAddress[address]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return k, nil
}

type fakeContacts struct {
	rows []*models.Contact
	err  error
}

func (f *fakeContacts) Upsert(ctx context.Context, c *models.Contact) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, c)
	return nil
}

func (f *fakeContacts) ListByContentAddress(ctx context.Context, contentAddress string) ([]*models.Contact, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Contact
	for _, c := range f.rows {
		if c.ContentAddress == contentAddress {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeRepoManager struct {
	challenges *fakeChallenges
	publicKeys *fakePublicKeys
	contacts   *fakeContacts
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		challenges: &fakeChallenges{byNonce: map[string]*models.Challenge{}},
		publicKeys: &fakePublicKeys{byAddress: map[string]*models.PublicKey{}},
		contacts:   &fakeContacts{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Challenges(db dbx.DBTX) challenges.Repository  { return m.challenges }
func (m *fakeRepoManager) PublicKeys(db dbx.DBTX) publickeys.Repository  { return m.publicKeys }
func (m *fakeRepoManager) Contacts(db dbx.DBTX) contacts.Repository      { return m.contacts }

var errDBDown = errors.New("db down")
